// Package bdalign is the public library facade over BDMV discovery,
// episode-to-chapter alignment, and subtitle merging: a single Run call
// takes a BDMV root and an ordered list of per-episode subtitle files and
// produces merged, time-shifted subtitle tracks. It writes no files beyond
// the merged subtitle copies described on writeMergedCopies. Run does not
// remux.
package bdalign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kaede-labs/bdalign/internal/align"
	"github.com/kaede-labs/bdalign/internal/bdalignlog"
	"github.com/kaede-labs/bdalign/internal/bdmv"
	"github.com/kaede-labs/bdalign/internal/config"
	"github.com/kaede-labs/bdalign/internal/fs"
	"github.com/kaede-labs/bdalign/internal/m2ts"
	"github.com/kaede-labs/bdalign/internal/mpls"
	"github.com/kaede-labs/bdalign/internal/subtitle"
	"github.com/rs/zerolog"
)

// Stage is a coarse progress phase reported through Options.OnProgress.
type Stage string

const (
	StageDiscovering Stage = "discovering"
	StageSelecting   Stage = "selecting_playlist"
	StageAligning    Stage = "aligning"
	StageMerging     Stage = "merging"
	StageDone        Stage = "done"
)

// ProgressEvent is emitted when Run transitions between major phases.
type ProgressEvent struct {
	Stage      Stage
	Detail     string
	OccurredAt time.Time
}

// Episode is one ordered input: a subtitle file path. Run derives the
// episode's duration estimate from that file.
type Episode struct {
	SubtitlePath string
}

// Options configures one Run call for a single BDMV root.
type Options struct {
	BDMVRoot  string
	Episodes  []Episode
	Overrides map[int]align.Override
	Config    config.Options
	Logger    *zerolog.Logger

	OnProgress func(ProgressEvent)
}

// Result is the outcome of a successful Run: the chosen playlist, the
// placement plan, and the paths of every merged subtitle file written (two
// for the main playlist, one for each other playlist that received
// episodes).
type Result struct {
	MainPlaylistName string
	Plan             align.PlacementPlan
	MergedPaths      []string
}

// Run discovers the BDMV root's playlists, selects the main playlist by
// score (Options has no field to pin one), aligns the given episodes onto
// the chapter marks of the main playlist followed by the remaining
// playlists, merges each playlist's subtitles, and writes each merged
// result next to its MPLS file, plus a root-level copy for the main
// playlist.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.BDMVRoot == "" {
		return Result{}, errors.New("bdalign: BDMVRoot is required")
	}
	if len(opts.Episodes) == 0 {
		return Result{}, errors.New("bdalign: at least one episode is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := bdalignlog.Or(opts.Logger)
	cfg := opts.Config
	if cfg.OutputDir == "" {
		cfg = config.Default()
	}

	report(opts, StageDiscovering, opts.BDMVRoot)
	fileSystem := fs.NewDiskFileSystem()
	scanned, err := bdmv.Scan(fileSystem, opts.BDMVRoot, cfg)
	if err != nil {
		return Result{}, err
	}
	for name, parseErr := range scanned.Errors {
		log.Warn().Str("playlist", name).Err(parseErr).Msg("skipping unreadable playlist")
	}
	if len(scanned.Playlists) == 0 {
		return Result{}, fmt.Errorf("bdalign: no decodable playlists under %s", opts.BDMVRoot)
	}

	report(opts, StageSelecting, "")
	mainName, mainPlaylist, err := bdmv.Select(scanned, cfg)
	if err != nil {
		return Result{}, err
	}
	crossCheckPlaylistDuration(log, opts.BDMVRoot, mainName, mainPlaylist)

	subtitles := make([]subtitle.Subtitle, len(opts.Episodes))
	durations := make([]float64, len(opts.Episodes))
	for i, ep := range opts.Episodes {
		sub, err := decodeSubtitleFile(ep.SubtitlePath)
		if err != nil {
			return Result{}, err
		}
		subtitles[i] = sub
		durations[i] = sub.MaxEnd()
	}

	report(opts, StageAligning, mainName)
	playlists, playlistNames := orderedPlaylistsForAlign(scanned, mainName)
	plan, err := align.Align(playlists, durations, opts.Overrides)
	if err != nil {
		return Result{}, err
	}

	report(opts, StageMerging, mainName)
	mergedByPlaylist, err := mergeByPlaylist(subtitles, plan)
	if err != nil {
		return Result{}, err
	}

	var paths []string
	for _, p := range sortedPlaylistIndices(mergedByPlaylist) {
		name := playlistNames[p]
		got, err := writeMergedCopies(opts.BDMVRoot, name, mergedByPlaylist[p], name == mainName)
		if err != nil {
			return Result{}, err
		}
		paths = append(paths, got...)
	}

	report(opts, StageDone, "")
	_ = mainPlaylist
	return Result{MainPlaylistName: mainName, Plan: plan, MergedPaths: paths}, nil
}

// crossCheckPlaylistDuration PCR-probes the main playlist's own clip files
// and compares the result against its declared TotalTimeNoRepeat, logging a
// warning on a large mismatch. Missing STREAM files (e.g. a playlist
// decoded from a partial disc image) are not fatal to Run, so a probe
// failure is logged and otherwise ignored.
func crossCheckPlaylistDuration(log *zerolog.Logger, bdmvRoot, mainName string, pl *mpls.Playlist) {
	measured, err := m2ts.ProbePlaylistTotal(bdmvRoot, pl)
	if err != nil {
		log.Warn().Str("playlist", mainName).Err(err).Msg("could not PCR cross-check playlist duration")
		return
	}
	declared := pl.TotalTimeNoRepeat()
	if diff := measured - declared; diff > config.PCRCrossCheckTolerance || diff < -config.PCRCrossCheckTolerance {
		log.Warn().Str("playlist", mainName).Float64("declared_seconds", declared).
			Float64("measured_seconds", measured).Msg("playlist duration disagrees with PCR-measured stream duration")
	}
}

func report(opts Options, stage Stage, detail string) {
	if opts.OnProgress == nil {
		return
	}
	opts.OnProgress(ProgressEvent{Stage: stage, Detail: detail})
}

// orderedPlaylistsForAlign puts the selected main playlist first, so
// alignment's playlist-index-0 corresponds to the feature the caller cares
// about; remaining playlists follow in map iteration order flattened to a
// deterministic slice by name. The returned name slice is index-parallel
// with the playlist slice, so a Placement.PlaylistIndex can be turned back
// into the MPLS file it came from.
func orderedPlaylistsForAlign(root *bdmv.Root, mainName string) ([]*mpls.Playlist, []string) {
	playlists := make([]*mpls.Playlist, 0, len(root.Playlists))
	names := make([]string, 0, len(root.Playlists))
	playlists = append(playlists, root.Playlists[mainName])
	names = append(names, mainName)

	rest := make([]string, 0, len(root.Playlists))
	for name := range root.Playlists {
		if name != mainName {
			rest = append(rest, name)
		}
	}
	sortStrings(rest)
	for _, name := range rest {
		playlists = append(playlists, root.Playlists[name])
		names = append(names, name)
	}
	return playlists, names
}

func sortStrings(xs []string) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func decodeSubtitleFile(path string) (subtitle.Subtitle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ass", ".ssa":
		return subtitle.ParseASS(data)
	case ".srt":
		return subtitle.ParseSRT(data)
	case ".sup", ".pgs":
		return subtitle.ParsePGS(data)
	default:
		return nil, fmt.Errorf("bdalign: unrecognized subtitle extension %q", path)
	}
}

// mergeByPlaylist groups episodes by the playlist they were placed onto and
// folds each group's subtitles onto the group's chapter-1 episode, per §2's
// "one merged subtitle per playlist" and §4.3. Within a group, an episode
// placed at a later chapter is shifted by the offset between its own
// placement and the base episode's, so its subtitle lands on the base
// episode's timeline rather than the playlist's absolute one.
func mergeByPlaylist(subtitles []subtitle.Subtitle, plan align.PlacementPlan) (map[int]subtitle.Subtitle, error) {
	groups := make(map[int][]int)
	for ep, p := range plan {
		groups[p.PlaylistIndex] = append(groups[p.PlaylistIndex], ep)
	}

	merged := make(map[int]subtitle.Subtitle, len(groups))
	for playlistIdx, episodes := range groups {
		sortByChapter(episodes, plan)
		baseEp := episodes[0]
		base := subtitles[baseEp]
		baseOffset := plan[baseEp].OffsetSeconds

		for _, ep := range episodes[1:] {
			shift := plan[ep].OffsetSeconds - baseOffset
			if err := subtitle.Merge(base, subtitles[ep], shift); err != nil {
				return nil, fmt.Errorf("bdalign: merging episode %d onto episode %d: %w", ep, baseEp, err)
			}
		}
		merged[playlistIdx] = base
	}
	return merged, nil
}

// sortByChapter orders episodes by their placement's chapter index, so the
// chapter-1 episode of a group is always episodes[0] regardless of episode
// numbering.
func sortByChapter(episodes []int, plan align.PlacementPlan) {
	for i := 1; i < len(episodes); i++ {
		for j := i; j > 0 && plan[episodes[j-1]].ChapterIndex1Based > plan[episodes[j]].ChapterIndex1Based; j-- {
			episodes[j-1], episodes[j] = episodes[j], episodes[j-1]
		}
	}
}

// sortedPlaylistIndices returns m's keys in ascending order, so multi-file
// output ordering is deterministic.
func sortedPlaylistIndices(m map[int]subtitle.Subtitle) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// writeMergedCopies writes playlistName's merged subtitle next to its own
// MPLS file, as <mpls_stem>.{ext}. The root-level <folder_name>.{ext} copy
// §6 names is singular by construction (one name, one disc root), so it is
// only written for the main playlist; a non-main playlist's merged
// subtitle would otherwise collide with it at that path.
func writeMergedCopies(bdmvRoot, playlistName string, merged subtitle.Subtitle, isMain bool) ([]string, error) {
	ext := extensionFor(merged)
	mplsStem := strings.TrimSuffix(playlistName, filepath.Ext(playlistName))
	data := serialize(merged)

	pathNextToMPLS := filepath.Join(bdmvRoot, "BDMV", "PLAYLIST", mplsStem+ext)
	paths := []string{pathNextToMPLS}
	if isMain {
		folderName := filepath.Base(filepath.Clean(bdmvRoot))
		paths = append(paths, filepath.Join(bdmvRoot, folderName+ext))
	}

	for _, p := range paths {
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func extensionFor(s subtitle.Subtitle) string {
	switch s.Kind() {
	case subtitle.KindAss:
		return ".ass"
	case subtitle.KindSrt:
		return ".srt"
	default:
		return ".sup"
	}
}

func serialize(s subtitle.Subtitle) []byte {
	switch v := s.(type) {
	case interface{ Serialize() []byte }:
		return v.Serialize()
	default:
		return nil
	}
}
