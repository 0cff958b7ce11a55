package m2ts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaede-labs/bdalign/internal/mpls"
)

// buildPacket creates one 192-byte BD transport packet carrying a PCR of
// pcrSeconds (base field only, extension left at 0) when withPCR is true.
func buildPacket(pcrSeconds float64, withPCR bool) []byte {
	packet := make([]byte, bdPacketSize)
	packet[4] = syncByte
	ts := packet[4:]
	if !withPCR {
		ts[3] = 0x10 // payload only, no adaptation field
		return packet
	}
	ts[3] = 0x20 // adaptation field present, no payload
	ts[4] = 7    // adaptation field length
	ts[5] = 0x10 // PCR flag

	base := uint64(pcrSeconds * 90000)
	ts[6] = byte(base >> 25)
	ts[7] = byte(base >> 17)
	ts[8] = byte(base >> 9)
	ts[9] = byte(base >> 1)
	ts[10] = byte((base&0x01)<<7) | 0x7e
	ts[11] = 0x00
	return packet
}

func TestProbeReturnsGapBetweenFirstAndLastPCR(t *testing.T) {
	var data []byte
	data = append(data, buildPacket(10.0, true)...)
	for i := 0; i < 5; i++ {
		data = append(data, buildPacket(0, false)...)
	}
	data = append(data, buildPacket(70.0, true)...)

	dir := t.TempDir()
	path := filepath.Join(dir, "00001.m2ts")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := Probe(path)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if want := 60.0; got < want-0.01 || got > want+0.01 {
		t.Errorf("Probe() = %v, want ~%v", got, want)
	}
}

func TestProbeRejectsTooSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.m2ts")
	if err := os.WriteFile(path, []byte{0x47, 0x00}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Probe(path); err == nil {
		t.Fatal("Probe() error = nil, want error for too-small file")
	}
}

func TestProbePlaylistTotalSumsDistinctClipsOnce(t *testing.T) {
	bdmvRoot := t.TempDir()
	streamDir := filepath.Join(bdmvRoot, "BDMV", "STREAM")
	if err := os.MkdirAll(streamDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	writeClip := func(name string, seconds float64) {
		var data []byte
		data = append(data, buildPacket(0, true)...)
		data = append(data, buildPacket(seconds, true)...)
		if err := os.WriteFile(filepath.Join(streamDir, name+".m2ts"), data, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	writeClip("00001", 30.0)
	writeClip("00002", 45.0)

	pl := &mpls.Playlist{Items: []mpls.PlayItem{
		{ClipName: "00001"},
		{ClipName: "00002"},
		{ClipName: "00001"}, // repeated clip must not be double-counted
	}}

	got, err := ProbePlaylistTotal(bdmvRoot, pl)
	if err != nil {
		t.Fatalf("ProbePlaylistTotal() error = %v", err)
	}
	if want := 75.0; got < want-0.01 || got > want+0.01 {
		t.Errorf("ProbePlaylistTotal() = %v, want ~%v", got, want)
	}
}

func TestProbePlaylistTotalErrorsWithoutStreamDir(t *testing.T) {
	bdmvRoot := t.TempDir()
	pl := &mpls.Playlist{Items: []mpls.PlayItem{{ClipName: "00001"}}}
	if _, err := ProbePlaylistTotal(bdmvRoot, pl); err == nil {
		t.Fatal("ProbePlaylistTotal() error = nil, want error when BDMV/STREAM is missing")
	}
}
