package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kaede-labs/bdalign/internal/align"
	"github.com/kaede-labs/bdalign/internal/bdalignlog"
	"github.com/kaede-labs/bdalign/internal/config"
	"github.com/kaede-labs/bdalign/pkg/bdalign"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var overridePairs []string

	cmd := &cobra.Command{
		Use:     "bdalign <bdmv-root> <subtitle>...",
		Short:   "Align per-episode subtitles onto a BDMV playlist's chapter marks and merge them",
		Version: version,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			overrides, err := parseOverrides(overridePairs)
			if err != nil {
				return err
			}

			bdmvRoot := args[0]
			episodes := make([]bdalign.Episode, 0, len(args)-1)
			for _, p := range args[1:] {
				episodes = append(episodes, bdalign.Episode{SubtitlePath: p})
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription("aligning"),
				progressbar.OptionSetWriter(os.Stderr),
			)

			logger := bdalignlog.NewConsole(os.Stderr, bdalignlog.DefaultLevel)
			result, err := bdalign.Run(context.Background(), bdalign.Options{
				BDMVRoot:  bdmvRoot,
				Episodes:  episodes,
				Overrides: overrides,
				Config:    cfg,
				Logger:    &logger,
				OnProgress: func(ev bdalign.ProgressEvent) {
					_ = bar.Add(1)
					fmt.Fprintf(os.Stderr, "\n%s: %s\n", ev.Stage, ev.Detail)
				},
			})
			if err != nil {
				return err
			}

			fmt.Printf("main playlist: %s\n", result.MainPlaylistName)
			for ep, placement := range result.Plan {
				fmt.Printf("  episode %d -> playlist %d, chapter %d, offset %s\n",
					ep, placement.PlaylistIndex, placement.ChapterIndex1Based,
					humanize.FormatFloat("#,###.#", placement.OffsetSeconds)+"s")
			}
			for _, p := range result.MergedPaths {
				fmt.Printf("wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file overriding defaults")
	cmd.Flags().StringSliceVar(&overridePairs, "override", nil, "pin episode:playlist:chapter, e.g. 2:0:5")

	return cmd
}

func parseOverrides(pairs []string) (map[int]align.Override, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]align.Override, len(pairs))
	for _, pair := range pairs {
		var episode, playlistIdx, chapter int
		if _, err := fmt.Sscanf(pair, "%d:%d:%d", &episode, &playlistIdx, &chapter); err != nil {
			return nil, fmt.Errorf("invalid --override %q, want episode:playlist:chapter: %w", pair, err)
		}
		out[episode] = align.Override{PlaylistIndex: playlistIdx, ChapterIndex1Based: chapter}
	}
	return out, nil
}
