package tool

import (
	"strings"
	"testing"
)

type fakeRunner struct {
	calls [][]string
	stub  func(name string, args ...string) ([]byte, error)
}

func (f *fakeRunner) run(name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.stub != nil {
		return f.stub(name, args...)
	}
	return nil, nil
}

func TestParseMkvDurationReadsHumanReadableDump(t *testing.T) {
	out := []byte("+ Segment\n| + Info\n|  + Duration: 00:24:01.250000000\n")
	got, err := parseMkvDuration(out, "f.mkv")
	if err != nil {
		t.Fatalf("parseMkvDuration() error = %v", err)
	}
	if want := 1441.25; got != want {
		t.Errorf("parseMkvDuration() nanosecond precision = %v, want %v", got, want)
	}

	out2 := []byte("| + Duration: 00:24:01.250\n")
	got2, err := parseMkvDuration(out2, "f.mkv")
	if err != nil {
		t.Fatalf("parseMkvDuration() error = %v", err)
	}
	if want := 1441.25; got2 != want {
		t.Errorf("parseMkvDuration() = %v, want %v", got2, want)
	}
}

func TestParseMkvDurationReturnsParseErrorWhenMissing(t *testing.T) {
	if _, err := parseMkvDuration([]byte("no duration here\n"), "f.mkv"); err == nil {
		t.Fatal("parseMkvDuration() error = nil, want ParseError")
	}
}

func TestMkvDurationUsesConfiguredPath(t *testing.T) {
	fr := &fakeRunner{stub: func(name string, args ...string) ([]byte, error) {
		return []byte("| + Duration: 00:00:10.000\n"), nil
	}}
	a := &Adapters{paths: Paths{MkvInfo: "/opt/mkvinfo"}, run: fr}

	d, err := a.MkvDuration("movie.mkv")
	if err != nil {
		t.Fatalf("MkvDuration() error = %v", err)
	}
	if d != 10.0 {
		t.Errorf("MkvDuration() = %v, want 10", d)
	}
	if len(fr.calls) != 1 || fr.calls[0][0] != "/opt/mkvinfo" {
		t.Errorf("calls = %v, want first call to use configured mkvinfo path", fr.calls)
	}
}

func TestMkvSplitByChaptersBuildsCommaList(t *testing.T) {
	fr := &fakeRunner{}
	a := &Adapters{paths: Paths{}, run: fr}

	if err := a.MkvSplitByChapters("in.mkv", []int{2, 4}, "out-%02d.mkv"); err != nil {
		t.Fatalf("MkvSplitByChapters() error = %v", err)
	}
	joined := strings.Join(fr.calls[0], " ")
	if !strings.Contains(joined, "--split chapters:2,4") {
		t.Errorf("call = %q, want --split chapters:2,4", joined)
	}
}

func TestPcmExtractAndProbeCountsTracksAndExtractsLPCM(t *testing.T) {
	fr := &fakeRunner{stub: func(name string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == "--identify" {
			return []byte(
				"Track ID 0: video (V_MPEG4/ISO/AVC)\n" +
					"Track ID 1: audio (A_LPCM) [language:jpn]\n" +
					"Track ID 2: subtitles (S_HDMV/PGS)\n"), nil
		}
		return nil, nil
	}}
	a := &Adapters{paths: Paths{}, run: fr}

	total, lpcm, err := a.PcmExtractAndProbe("movie.mkv")
	if err != nil {
		t.Fatalf("PcmExtractAndProbe() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if lpcm[1] != "jpn" {
		t.Errorf("lpcm[1] = %q, want jpn", lpcm[1])
	}
}

func TestFlacEncodeRejectsUnreadableOutput(t *testing.T) {
	dir := t.TempDir()
	outPath := dir + "/not-flac.flac"
	fr := &fakeRunner{stub: func(name string, args ...string) ([]byte, error) {
		// The fake encoder "succeeds" without writing a real FLAC stream
		// at outPath, exercising the header read-back check.
		return nil, nil
	}}
	a := &Adapters{paths: Paths{}, run: fr}

	if err := a.FlacEncode("in.wav", outPath); err == nil {
		t.Fatal("FlacEncode() error = nil, want a header-verification error when the output isn't valid FLAC")
	}
}

func TestMkvDurationPropagatesRunnerError(t *testing.T) {
	fr := &fakeRunner{stub: func(name string, args ...string) ([]byte, error) {
		return nil, &toolErrForTest{}
	}}
	a := &Adapters{paths: Paths{}, run: fr}
	if _, err := a.MkvDuration("x.mkv"); err == nil {
		t.Fatal("expected error from failing runner")
	}
}

type toolErrForTest struct{}

func (e *toolErrForTest) Error() string { return "boom" }
