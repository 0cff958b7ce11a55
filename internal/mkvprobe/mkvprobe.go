// Package mkvprobe does a native, in-process pre-flight probe of an
// existing MKV file — duration, track count and codec — ahead of driving
// mkvmerge/mkvinfo, so the remux orchestrator can sanity-check split points
// and track layouts without always paying for an external process round
// trip. It wraps a small native Matroska demuxer rather than shelling out.
package mkvprobe

import (
	"os"

	"github.com/luispater/matroska-go"

	"github.com/kaede-labs/bdalign/internal/bdalignerr"
)

// Matroska track type values, per the Matroska spec's TrackType element.
const (
	TrackTypeVideo    = 1
	TrackTypeAudio    = 2
	TrackTypeSubtitle = 17
)

// Track describes one track of a probed file.
type Track struct {
	Index    uint
	Number   uint8
	Type     uint8
	CodecID  string
}

// Info is the result of a pre-flight probe.
type Info struct {
	DurationSeconds float64
	Tracks          []Track
}

// AudioTracks returns the subset of tracks that are audio, in file order.
func (i Info) AudioTracks() []Track {
	var out []Track
	for _, t := range i.Tracks {
		if t.Type == TrackTypeAudio {
			out = append(out, t)
		}
	}
	return out
}

// Probe opens path and reads its duration and track layout without
// shelling out to mkvinfo.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, &bdalignerr.IoError{Path: path, Err: err}
	}
	defer f.Close()

	demuxer, err := matroska.NewDemuxer(f)
	if err != nil {
		return Info{}, &bdalignerr.ParseError{File: path, Err: err}
	}
	defer demuxer.Close()

	fileInfo, err := demuxer.GetFileInfo()
	if err != nil {
		return Info{}, &bdalignerr.ParseError{File: path, Err: err}
	}
	numTracks, err := demuxer.GetNumTracks()
	if err != nil {
		return Info{}, &bdalignerr.ParseError{File: path, Err: err}
	}

	info := Info{
		// Duration is reported in TimecodeScale units (nanoseconds by
		// default, 1_000_000 per Matroska millisecond convention).
		DurationSeconds: float64(fileInfo.Duration) * float64(fileInfo.TimecodeScale) / 1e9,
	}
	for i := uint(0); i < numTracks; i++ {
		ti, err := demuxer.GetTrackInfo(i)
		if err != nil {
			continue
		}
		info.Tracks = append(info.Tracks, Track{
			Index:   i,
			Number:  ti.Number,
			Type:    ti.Type,
			CodecID: ti.CodecID,
		})
	}
	return info, nil
}
