package config

import "testing"

func TestDefault(t *testing.T) {
	o := Default()
	if !o.FilterShortPlaylists {
		t.Errorf("FilterShortPlaylists = false, want true")
	}
	if o.FilterShortPlaylistsMin != 20 {
		t.Errorf("FilterShortPlaylistsMin = %d, want 20", o.FilterShortPlaylistsMin)
	}
	if o.OutputDir != "." {
		t.Errorf("OutputDir = %q, want %q", o.OutputDir, ".")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	o, err := Load("/nonexistent/path/bdalign.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if o.FilterShortPlaylistsMin != want.FilterShortPlaylistsMin || o.OutputDir != want.OutputDir {
		t.Errorf("Load() on missing file = %+v, want defaults %+v", o, want)
	}
}

func TestThresholdConstants(t *testing.T) {
	cases := []struct {
		name string
		got  int
		want int
	}{
		{"TrailingTolerance", TrailingTolerance, 300},
		{"NextFitMargin", NextFitMargin, 180},
		{"MultiEpisodeClipHigh", MultiEpisodeClipHigh, 2600},
		{"MultiEpisodeClipLow", MultiEpisodeClipLow, 1800},
		{"TailMinimum", TailMinimum, 1200},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
}
