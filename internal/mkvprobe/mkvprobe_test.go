package mkvprobe

import "testing"

func TestAudioTracksFiltersByType(t *testing.T) {
	info := Info{
		DurationSeconds: 1440,
		Tracks: []Track{
			{Index: 0, Number: 1, Type: TrackTypeVideo, CodecID: "V_MPEG4/ISO/AVC"},
			{Index: 1, Number: 2, Type: TrackTypeAudio, CodecID: "A_PCM/INT/LIT"},
			{Index: 2, Number: 3, Type: TrackTypeAudio, CodecID: "A_PCM/INT/LIT"},
			{Index: 3, Number: 4, Type: TrackTypeSubtitle, CodecID: "S_HDMV/PGS"},
		},
	}
	audio := info.AudioTracks()
	if len(audio) != 2 {
		t.Fatalf("AudioTracks() = %v, want 2 entries", audio)
	}
	if audio[0].Number != 2 || audio[1].Number != 3 {
		t.Errorf("AudioTracks() = %+v, want track numbers 2 then 3 preserved in file order", audio)
	}
}

func TestProbeMissingFileReturnsIoError(t *testing.T) {
	if _, err := Probe("/nonexistent/path/does-not-exist.mkv"); err == nil {
		t.Fatal("Probe() error = nil, want IoError for missing file")
	}
}
