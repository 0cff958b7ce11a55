// Package mpls decodes Blu-ray MPLS playlist files into the PlayItem and
// chapter-mark data the alignment engine consumes: clip sequence, in/out
// times in 45kHz ticks, and chapter boundaries flattened into playlist-
// relative seconds offsets.
package mpls

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/kaede-labs/bdalign/internal/util"
)

const ticksPerSecond = 45000.0

// PlayItem is one clip entry of a playlist.
type PlayItem struct {
	ClipName string
	InTime   uint32
	OutTime  uint32
}

// DurationSeconds is this item's contribution to playlist length.
func (p PlayItem) DurationSeconds() float64 {
	return float64(p.OutTime-p.InTime) / ticksPerSecond
}

// ChapterMarks maps a play-item index (0-based, into Playlist.Items) to its
// ordered list of chapter timestamps, in 45kHz ticks.
type ChapterMarks map[int][]uint32

// Playlist is a decoded MPLS file.
type Playlist struct {
	Name     string
	FileType string
	Items    []PlayItem
	Chapters ChapterMarks
}

// TotalTime sums every item's duration, including repeated clips.
func (p *Playlist) TotalTime() float64 {
	var total float64
	for _, item := range p.Items {
		total += item.DurationSeconds()
	}
	return total
}

// TotalTimeNoRepeat sums duration once per distinct clip_name; a clip that
// loops (appears more than once) is counted only on its first occurrence.
func (p *Playlist) TotalTimeNoRepeat() float64 {
	seen := make(map[string]bool, len(p.Items))
	var total float64
	for _, item := range p.Items {
		if seen[item.ClipName] {
			continue
		}
		seen[item.ClipName] = true
		total += item.DurationSeconds()
	}
	return total
}

// Boundary is one flattened chapter mark B_{p,k}: the play-item it belongs
// to, its raw timestamp, and its offset in seconds from the playlist start.
type Boundary struct {
	ItemIndex int
	Timestamp uint32
	Offset    float64
}

// Boundaries flattens Chapters into the ordered B_{p,k} list: iteration
// order is play-item index ascending, then timestamp ascending within an
// item (chapter marks inside one play-item are already non-decreasing).
func (p *Playlist) Boundaries() []Boundary {
	indices := make([]int, 0, len(p.Chapters))
	for idx := range p.Chapters {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var prefix float64
	itemOffset := make([]float64, len(p.Items))
	for i, item := range p.Items {
		itemOffset[i] = prefix
		prefix += item.DurationSeconds()
	}

	var boundaries []Boundary
	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Items) {
			continue
		}
		item := p.Items[idx]
		timestamps := p.Chapters[idx]
		sorted := append([]uint32(nil), timestamps...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for _, ts := range sorted {
			offset := itemOffset[idx] + (float64(ts)-float64(item.InTime))/ticksPerSecond
			boundaries = append(boundaries, Boundary{ItemIndex: idx, Timestamp: ts, Offset: offset})
		}
	}
	return boundaries
}

// Decode reads and parses an MPLS file from path.
func Decode(path string) (*Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &bdalignerr.IoError{Path: path, Err: err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &bdalignerr.IoError{Path: path, Err: err}
	}
	return decodeBytes(path, data)
}

// DecodeBytes parses an already-read MPLS file's bytes, for callers (disk
// or mounted-image filesystems) that read the file themselves.
func DecodeBytes(name string, data []byte) (*Playlist, error) {
	return decodeBytes(name, data)
}

func decodeBytes(name string, data []byte) (*Playlist, error) {
	pos := 0
	fileType := util.ReadString(data, 8, &pos)
	if fileType != "MPLS0100" && fileType != "MPLS0200" && fileType != "MPLS0300" {
		return nil, &bdalignerr.ParseError{File: name, Err: fmt.Errorf("unknown file type %q", fileType)}
	}

	playlistOffset := int(util.ReadUint32(data, &pos))
	chaptersOffset := int(util.ReadUint32(data, &pos))
	_ = util.ReadUint32(data, &pos) // extension data offset, unused

	pl := &Playlist{
		Name:     strings.ToUpper(name),
		FileType: fileType,
		Chapters: make(ChapterMarks),
	}

	pos = playlistOffset
	if pos+8 > len(data) {
		return nil, &bdalignerr.ParseError{File: name, Offset: int64(pos), Err: fmt.Errorf("playlist block truncated")}
	}
	_ = util.ReadUint32(data, &pos) // playlist block length
	_ = util.ReadUint16(data, &pos) // reserved
	itemCount := int(util.ReadUint16(data, &pos))
	_ = util.ReadUint16(data, &pos) // subpath count

	for i := 0; i < itemCount; i++ {
		itemStart := pos
		if itemStart+2 > len(data) {
			return nil, &bdalignerr.ParseError{File: name, Offset: int64(itemStart), Err: fmt.Errorf("play item %d truncated", i)}
		}
		itemLength := int(util.ReadUint16(data, &pos))
		if itemLength == 0 {
			// Empty records are skipped rather than decoded; they don't
			// occupy a play-item slot, so later chapter marks'
			// ref_to_play_item_id must not count them either.
			pos = itemStart + 2
			continue
		}
		clipName := util.ReadString(data, 5, &pos)
		_ = util.ReadString(data, 4, &pos) // clip codec id, e.g. "M2TS"

		if pos+11 > len(data) {
			return nil, &bdalignerr.ParseError{File: name, Offset: int64(pos), Err: fmt.Errorf("play item %d times truncated", i)}
		}
		pos += 1 // connection condition / reserved high byte
		pos += 2 // stream ref flags, multi-angle bit among them (angles not modeled here)

		inTime := util.ReadUint32(data, &pos) & 0x7fffffff
		outTime := util.ReadUint32(data, &pos) & 0x7fffffff

		pl.Items = append(pl.Items, PlayItem{
			ClipName: strings.ToUpper(clipName),
			InTime:   inTime,
			OutTime:  outTime,
		})

		pos = itemStart + itemLength + 2
		if pos > len(data) {
			return nil, &bdalignerr.ParseError{File: name, Offset: int64(itemStart), Err: fmt.Errorf("play item %d length overruns file", i)}
		}
	}

	pos = chaptersOffset + 4
	if pos+2 <= len(data) {
		markCount := int(util.ReadUint16(data, &pos))
		for i := 0; i < markCount; i++ {
			if pos+14 > len(data) {
				break
			}
			pos += 2 // mark type / reserved
			itemIndex := int(util.ReadUint16(data, &pos))
			timestamp := util.ReadUint32(data, &pos)
			util.Skip(data, &pos, 6)
			if itemIndex >= 0 && itemIndex < len(pl.Items) {
				pl.Chapters[itemIndex] = append(pl.Chapters[itemIndex], timestamp)
			}
		}
	}

	return pl, nil
}
