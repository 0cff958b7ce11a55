// Package config generalizes the teacher's settings.Settings into the
// library's public options struct: BDMV discovery knobs, the alignment
// engine's fixed heuristic thresholds (named, not hardcoded, constants an
// operator can inspect), tool-path overrides, and output placement.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	validate "gopkg.in/dealancer/validate.v2"
)

// Alignment thresholds, in seconds. The engine's exact behavior depends on
// these literal values (spec's design notes require bit-compatible output),
// so they are named constants rather than configurable fields.
const (
	// TrailingTolerance is how far, in seconds, a play-item's first chapter
	// boundary may sit before the current episode's estimated end and still
	// start the next episode. The subtitle duration estimator applies the
	// same 300s figure through its own constant, not this one.
	TrailingTolerance = 300
	// NextFitMargin is how many seconds longer than the playlist time
	// remaining from the current play-item onward the next episode may be
	// and still be placed at that play-item's first chapter mark.
	NextFitMargin = 180
	// MultiEpisodeClipHigh is the play-item duration above which a single
	// clip is checked for more than one episode; MultiEpisodeClipLow is the
	// ceiling on the distance from the item's first chapter mark to the
	// current episode's estimated end for that check to apply.
	MultiEpisodeClipHigh = 2600
	MultiEpisodeClipLow  = 1800
	// TailMinimum is the shortest remaining span that can still hold a
	// full trailing episode.
	TailMinimum = 1200
	// PCRCrossCheckTolerance is how far, in seconds, a playlist's declared
	// TotalTimeNoRepeat may drift from its PCR-measured stream duration
	// before the mismatch is worth a warning.
	PCRCrossCheckTolerance = 5
)

// Options is the public, user-facing configuration surface.
type Options struct {
	// Discovery
	FilterShortPlaylists    bool `yaml:"filter_short_playlists" default:"true" validate:"empty=false"`
	FilterShortPlaylistsMin int  `yaml:"filter_short_playlists_min_seconds" default:"20"`
	FilterLoopingPlaylists  bool `yaml:"filter_looping_playlists" default:"false"`
	ScanWorkerLimit         int  `yaml:"scan_worker_limit" default:"0"`

	// Subtitle / merge
	SubtitleEncoding string `yaml:"subtitle_encoding" default:"utf-8"`
	OverrideChapters []int  `yaml:"override_chapters"`

	// Output
	OutputDir       string `yaml:"output_dir" default:"."`
	ScratchDir      string `yaml:"scratch_dir" default:""`
	DuplicateWrites []string `yaml:"duplicate_writes"`

	// Tool paths; empty means resolve from PATH lazily on first use.
	MkvInfoPath      string `yaml:"mkvinfo_path" default:""`
	MkvMergePath     string `yaml:"mkvmerge_path" default:""`
	MkvPropEditPath  string `yaml:"mkvpropedit_path" default:""`
	TsMuxerPath      string `yaml:"tsmuxer_path" default:""`
	FlacPath         string `yaml:"flac_path" default:""`
}

// Default returns Options populated with creasty/defaults struct-tag
// values, mirroring the teacher's settings.Default constructor.
func Default() Options {
	o := Options{}
	if err := defaults.Set(&o); err != nil {
		panic(fmt.Sprintf("config: default struct tags are malformed: %v", err))
	}
	return o
}

// Load reads an optional YAML file over the defaults through viper,
// decoding into Options with its existing yaml struct tags, then validates
// the result with dealancer/validate.v2. A missing path is not an error:
// Load returns the defaults unchanged.
func Load(path string) (Options, error) {
	o := Default()
	if path == "" {
		return o, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return o, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return o, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&o, func(c *mapstructure.DecoderConfig) {
		c.TagName = "yaml"
	}); err != nil {
		return o, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate.Validate(&o); err != nil {
		return o, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return o, nil
}
