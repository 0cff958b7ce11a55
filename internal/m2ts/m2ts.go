// Package m2ts probes a Blu-ray transport-stream clip file for its duration
// by reading the first and last program clock reference (PCR) values,
// without demultiplexing or decoding any elementary stream.
package m2ts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/kaede-labs/bdalign/internal/mpls"
)

const (
	syncByte = 0x47

	tsPacketSize  = 188
	bdPacketSize  = 192 // 4-byte M2TS timecode header + 188-byte TS packet
	scanChunkSize = 4 << 20

	pcrClockHz = 27_000_000
)

// packetSize detects whether a file uses plain 188-byte TS packets or the
// 192-byte BD variant (4-byte timecode prefix), by checking where sync
// bytes recur.
func packetSize(header []byte) (int, int, error) {
	fits := func(size, offset int) bool {
		for p := offset; p+1 <= len(header) && p < size*3; p += size {
			if p >= len(header) || header[p] != syncByte {
				return p > offset
			}
		}
		return len(header) > offset
	}
	if len(header) > 0 && header[0] == syncByte && fits(tsPacketSize, 0) {
		return tsPacketSize, 0, nil
	}
	if len(header) > 4 && header[4] == syncByte && fits(bdPacketSize, 4) {
		return bdPacketSize, 4, nil
	}
	return 0, 0, fmt.Errorf("no recognizable transport-stream sync pattern")
}

// pcrInPacket returns the PCR, in seconds (the 90kHz base field plus the
// 27MHz extension), carried in the adaptation field of packet, if any,
// starting at syncOffset within packet (0 for plain TS, 4 for BD).
func pcrInPacket(packet []byte, syncOffset int) (float64, bool) {
	p := packet[syncOffset:]
	if len(p) < 6 {
		return 0, false
	}
	adaptationFieldControl := (p[3] >> 4) & 0x03
	if adaptationFieldControl != 2 && adaptationFieldControl != 3 {
		return 0, false
	}
	adaptationFieldLength := int(p[4])
	if adaptationFieldLength < 1 || len(p) < 5+adaptationFieldLength {
		return 0, false
	}
	flags := p[5]
	if flags&0x10 == 0 { // PCR flag
		return 0, false
	}
	if len(p) < 12 {
		return 0, false
	}
	base := uint64(p[6])<<25 | uint64(p[7])<<17 | uint64(p[8])<<9 | uint64(p[9])<<1 | uint64(p[10]>>7)
	ext := uint64(p[10]&0x01)<<8 | uint64(p[11])
	pcr := float64(base)/90000.0 + float64(ext)/float64(pcrClockHz)
	return pcr, true
}

// Probe reads the first and last PCR of the transport-stream file at path
// and returns the duration in seconds between them.
func Probe(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &bdalignerr.IoError{Path: path, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return 0, &bdalignerr.IoError{Path: path, Err: err}
	}
	if stat.Size() < bdPacketSize {
		return 0, &bdalignerr.ParseError{File: path, Err: fmt.Errorf("file too small to contain a transport-stream packet")}
	}

	header := make([]byte, min64(scanChunkSize, stat.Size()))
	if _, err := f.ReadAt(header, 0); err != nil && err != io.EOF {
		return 0, &bdalignerr.IoError{Path: path, Err: err}
	}
	size, syncOffset, err := packetSize(header)
	if err != nil {
		return 0, &bdalignerr.ParseError{File: path, Err: err}
	}

	firstPCR, ok := scanForward(header, size, syncOffset)
	if !ok {
		return 0, &bdalignerr.ParseError{File: path, Err: fmt.Errorf("no PCR found near start of file")}
	}

	lastPCR, ok, err := scanBackward(f, stat.Size(), size, syncOffset)
	if err != nil {
		return 0, &bdalignerr.IoError{Path: path, Err: err}
	}
	if !ok {
		return 0, &bdalignerr.ParseError{File: path, Err: fmt.Errorf("no PCR found near end of file")}
	}

	duration := lastPCR - firstPCR
	if duration < 0 {
		duration = 0
	}
	return duration, nil
}

func scanForward(buf []byte, size, syncOffset int) (float64, bool) {
	for off := 0; off+size <= len(buf); off += size {
		if pcr, ok := pcrInPacket(buf[off:off+size], syncOffset); ok {
			return pcr, true
		}
	}
	return 0, false
}

// scanBackward walks the file from the end in chunks aligned to the packet
// size, returning the last PCR it finds. Most clips carry a PCR in nearly
// every packet, so in practice this only reads one chunk.
func scanBackward(f *os.File, fileSize int64, size, syncOffset int) (float64, bool, error) {
	packetCount := fileSize / int64(size)
	if packetCount == 0 {
		return 0, false, nil
	}

	chunkPackets := int64(scanChunkSize / size)
	if chunkPackets < 1 {
		chunkPackets = 1
	}

	end := packetCount
	for end > 0 {
		start := end - chunkPackets
		if start < 0 {
			start = 0
		}
		readLen := (end - start) * int64(size)
		buf := make([]byte, readLen)
		if _, err := f.ReadAt(buf, start*int64(size)); err != nil && err != io.EOF {
			return 0, false, err
		}

		var last float64
		found := false
		for off := 0; off+size <= len(buf); off += size {
			if pcr, ok := pcrInPacket(buf[off:off+size], syncOffset); ok {
				last = pcr
				found = true
			}
		}
		if found {
			return last, true, nil
		}
		end = start
	}
	return 0, false, nil
}

func min64(a int, b int64) int {
	if int64(a) < b {
		return a
	}
	return int(b)
}

// ProbePlaylistTotal measures a playlist's total duration independently of
// its own declared in/out times, by PCR-probing each distinct clip under
// bdmvRoot/BDMV/STREAM and summing. This gives the already-selected main
// playlist a second opinion on TotalTimeNoRepeat that doesn't trust the
// MPLS file's own arithmetic, catching a disc where the playlist's recorded times disagree
// with what the transport stream actually carries.
func ProbePlaylistTotal(bdmvRoot string, pl *mpls.Playlist) (float64, error) {
	streamDir, err := findStreamDir(bdmvRoot)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(pl.Items))
	var total float64
	for _, item := range pl.Items {
		if seen[item.ClipName] {
			continue
		}
		seen[item.ClipName] = true

		clipPath, err := findClipFile(streamDir, item.ClipName)
		if err != nil {
			return 0, err
		}
		d, err := Probe(clipPath)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

func findStreamDir(bdmvRoot string) (string, error) {
	bdmvDir, err := findChildCaseInsensitive(bdmvRoot, "BDMV")
	if err != nil {
		return "", err
	}
	return findChildCaseInsensitive(bdmvDir, "STREAM")
}

func findClipFile(streamDir, clipName string) (string, error) {
	entries, err := os.ReadDir(streamDir)
	if err != nil {
		return "", &bdalignerr.IoError{Path: streamDir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if strings.EqualFold(stem, clipName) {
			return filepath.Join(streamDir, e.Name()), nil
		}
	}
	return "", &bdalignerr.IoError{Path: streamDir, Err: fmt.Errorf("no stream file for clip %s", clipName)}
}

func findChildCaseInsensitive(parent, name string) (string, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", &bdalignerr.IoError{Path: parent, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), name) {
			return filepath.Join(parent, e.Name()), nil
		}
	}
	return "", &bdalignerr.IoError{Path: parent, Err: fmt.Errorf("no %s subfolder under %s", name, parent)}
}
