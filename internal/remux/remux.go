// Package remux drives the two top-level remux operations — chapter
// injection and BD remux — across a PlacementPlan, tool adapters, and the
// native MKV pre-flight probe. It follows the single-threaded cooperative
// driving loop §5 describes: CPU-light parsing stays in the calling
// goroutine, CPU-heavy work is delegated to external tool processes, and
// cancellation is polled between tool invocations rather than interrupting
// one mid-flight.
package remux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kaede-labs/bdalign/internal/align"
	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/kaede-labs/bdalign/internal/bdalignlog"
	"github.com/kaede-labs/bdalign/internal/chaptertext"
	"github.com/kaede-labs/bdalign/internal/langtag"
	"github.com/kaede-labs/bdalign/internal/mkvprobe"
	"github.com/kaede-labs/bdalign/internal/mpls"
	"github.com/kaede-labs/bdalign/internal/tool"
	"github.com/rs/zerolog"
)

// Stage names a point in the driving loop, reported to ProgressFunc and
// used when a CancelledError needs to name where the run stopped.
type Stage string

const (
	StageChapterInject Stage = "chapter_inject"
	StageSplit          Stage = "split"
	StageExtractPCM     Stage = "extract_pcm"
	StageEncodeFLAC     Stage = "encode_flac"
	StageReassemble     Stage = "reassemble"
)

// ProgressFunc is invoked between tool invocations; it is the suspension
// point a UI progress bar repaints from.
type ProgressFunc func(stage Stage, episodeIndex int, detail string)

// Orchestrator binds tool adapters and an optional logger/progress sink.
type Orchestrator struct {
	Tools    *tool.Adapters
	Progress ProgressFunc
	Logger   *zerolog.Logger
}

func (o *Orchestrator) report(stage Stage, episode int, detail string) {
	if o.Progress != nil {
		o.Progress(stage, episode, detail)
	}
}

func (o *Orchestrator) log() *zerolog.Logger {
	return bdalignlog.Or(o.Logger)
}

// InjectChapters synthesizes an OGM chapter-text file from a playlist's
// flattened boundaries restricted to the given 1-based chapter window, and
// passes it to the "edit chapters" tool adapter, editing mkvPath in place.
func (o *Orchestrator) InjectChapters(ctx context.Context, pl *mpls.Playlist, mkvPath string, firstChapter1Based, lastChapter1Based int) error {
	if err := checkCancelled(ctx, StageChapterInject); err != nil {
		return err
	}
	boundaries := pl.Boundaries()
	if firstChapter1Based < 1 || lastChapter1Based > len(boundaries) || firstChapter1Based > lastChapter1Based {
		return &bdalignerr.AlignmentError{Reason: "chapter window out of range for playlist"}
	}

	base := boundaries[firstChapter1Based-1].Offset
	offsets := make([]float64, 0, lastChapter1Based-firstChapter1Based+1)
	for _, b := range boundaries[firstChapter1Based-1 : lastChapter1Based] {
		offsets = append(offsets, b.Offset-base)
	}

	text := chaptertext.Write(offsets)
	o.report(StageChapterInject, 0, mkvPath)
	if err := o.Tools.MkvSetChapters(mkvPath, text); err != nil {
		o.log().Error().Str("tool", "mkvpropedit").Str("path", mkvPath).Err(err).Msg("chapter injection failed")
		return err
	}
	return nil
}

// RemuxPlaylist drives the BD-remux operation for one playlist: split into
// per-episode MKVs at the plan's chapter boundaries, then for each episode
// probe tracks, extract and re-encode LPCM to FLAC, and reassemble with the
// FLAC streams substituted in. Chapters are not injected here; that is
// InjectChapters' job. Episode outputs are
// emitted strictly in episode order; per-episode FLAC conversions may
// proceed in any order but must complete before that episode's reassembly.
//
// Split and intermediate (wav/flac) files live under a uuid-named staging
// directory inside outDir, per §5: a cancelled or failed run leaves those
// partial outputs there rather than among, or overwriting, final output.
// The staging directory is only removed once every episode has reassembled
// successfully.
func (o *Orchestrator) RemuxPlaylist(ctx context.Context, pl *mpls.Playlist, sourceMKV string, plan align.PlacementPlan, playlistIndex int, outDir string) ([]string, error) {
	chapterIdx := episodesForPlaylist(plan, playlistIndex)
	if len(chapterIdx) == 0 {
		return nil, nil
	}

	if err := checkCancelled(ctx, StageSplit); err != nil {
		return nil, err
	}
	stagingDir := filepath.Join(outDir, "bdalign-staging-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, &bdalignerr.IoError{Path: stagingDir, Err: err}
	}

	splitPoints := make([]int, 0, len(chapterIdx))
	for _, ep := range chapterIdx {
		splitPoints = append(splitPoints, plan[ep].ChapterIndex1Based)
	}
	outPattern := filepath.Join(stagingDir, "episode-%02d.mkv")
	if err := o.Tools.MkvSplitByChapters(sourceMKV, splitPoints, outPattern); err != nil {
		return nil, err
	}

	var outputs []string
	for i, ep := range chapterIdx {
		if err := checkCancelled(ctx, StageReassemble); err != nil {
			return outputs, err
		}
		episodePath := fmt.Sprintf(outPattern, i+1)
		out, err := o.remuxEpisode(ctx, ep, episodePath, outDir)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, out)
		o.report(StageReassemble, ep, out)
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		o.log().Warn().Str("dir", stagingDir).Err(err).Msg("failed to clean up remux staging directory")
	}
	return outputs, nil
}

func (o *Orchestrator) remuxEpisode(ctx context.Context, episodeIndex int, episodePath, outDir string) (string, error) {
	if err := checkCancelled(ctx, StageExtractPCM); err != nil {
		return "", err
	}
	if _, err := mkvprobe.Probe(episodePath); err != nil {
		o.log().Warn().Str("path", episodePath).Err(err).Msg("pre-flight probe failed, continuing with tool adapters only")
	}

	total, lpcmTracks, err := o.Tools.PcmExtractAndProbe(episodePath)
	if err != nil {
		return "", err
	}
	o.report(StageExtractPCM, episodeIndex, fmt.Sprintf("%d tracks, %d LPCM", total, len(lpcmTracks)))

	if err := checkCancelled(ctx, StageEncodeFLAC); err != nil {
		return "", err
	}
	var replacements []tool.TrackReplacement
	var dropTracks []int
	for trackID, lang := range lpcmTracks {
		wavPath := fmt.Sprintf("%s.track%d.wav", episodePath, trackID)
		flacPath := fmt.Sprintf("%s.track%d.flac", episodePath, trackID)
		if err := o.Tools.FlacEncode(wavPath, flacPath); err != nil {
			return "", err
		}
		o.report(StageEncodeFLAC, episodeIndex, flacPath)
		replacements = append(replacements, tool.TrackReplacement{
			OriginalTrackID: trackID,
			ReplacementPath: flacPath,
			Language:        lang,
		})
		dropTracks = append(dropTracks, trackID)
	}

	if err := checkCancelled(ctx, StageReassemble); err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, strconv.Itoa(episodeIndex)+"-final.mkv")
	if err := o.Tools.RemuxWithNewTracks(episodePath, replacements, "", outPath, nil, dropTracks); err != nil {
		return "", err
	}
	return outPath, nil
}

func episodesForPlaylist(plan align.PlacementPlan, playlistIndex int) []int {
	var out []int
	for ep, p := range plan {
		if p.PlaylistIndex == playlistIndex {
			out = append(out, ep)
		}
	}
	sortInts(out)
	return out
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func checkCancelled(ctx context.Context, stage Stage) error {
	select {
	case <-ctx.Done():
		return &bdalignerr.CancelledError{Stage: string(stage)}
	default:
		return nil
	}
}

// TsMuxMeta renders a tsMuxeR meta file for muxing an M2TS stream plus a
// subtitle track, per §6's literal format. language goes through langtag,
// which lower-cases and trims it; the code is not otherwise translated, so
// a non-3-letter alias is written as given, lower-cased.
func TsMuxMeta(m2tsPath, subtitlePath string, subtitleIsPGS bool, language string) string {
	lang := langtag.Resolve(language).Code3
	if lang == "" {
		lang = strings.ToLower(language)
	}

	var b strings.Builder
	b.WriteString("MUXOPT --no-pcr-on-video-pid --new-audio-pes --vbr --vbv-len=500\n")
	fmt.Fprintf(&b, "V_MPEG4/ISO/AVC, \"%s\"\n", m2tsPath)
	if subtitlePath != "" {
		if subtitleIsPGS {
			fmt.Fprintf(&b, "S_HDMV/PGS, \"%s\", fps=23.976, lang=%s\n", subtitlePath, lang)
		} else {
			fmt.Fprintf(&b, "S_TEXT/UTF8, \"%s\", font-name=\"Arial\", font-size=65, font-color=0xffffffff, bottom-offset=24, font-border=5, text-align=center, video-width=1920, video-height=1080, fps=23.976, lang=%s\n", subtitlePath, lang)
		}
	}
	return b.String()
}
