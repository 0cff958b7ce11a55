// Package tool adapts the external collaborators the remux orchestrator
// drives — mkvinfo, mkvmerge, mkvpropedit, tsMuxeR, flac — behind small
// interfaces with documented pre/post-conditions, following the
// exec.Command-plus-runner shape used for exactly this kind of narrow tool
// wrapping in the Matroska-tooling lineage this package borrows from.
package tool

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaede-labs/bdalign/internal/bdalignerr"
	"github.com/mewkiz/flac"
)

// runner executes an external command and captures its stderr for
// diagnostics. The real implementation shells out via os/exec; tests supply
// a fake.
type runner interface {
	run(name string, args ...string) (stdout []byte, err error)
}

type execRunner struct{}

func (execRunner) run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &bdalignerr.ToolError{Tool: name, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// Paths holds the location of each external tool. An empty field falls
// back to the bare command name at each call, letting os/exec search PATH.
type Paths struct {
	MkvInfo     string
	MkvMerge    string
	MkvPropEdit string
	TsMuxer     string
	Flac        string
}

func (p Paths) resolve(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// Adapters is the bound set of tool operations §4.7 requires, resolved
// against a fixed Paths for the life of a run.
type Adapters struct {
	paths Paths
	run   runner
}

// New binds tool adapters to the given paths using real subprocess
// execution.
func New(paths Paths) *Adapters {
	return &Adapters{paths: paths, run: execRunner{}}
}

var durationLine = regexp.MustCompile(`\|\s*\+\s*Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// MkvDuration parses the "| + Duration:" line from mkvinfo's human-readable
// dump and returns the file's duration in seconds.
func (a *Adapters) MkvDuration(path string) (float64, error) {
	out, err := a.run.run(a.paths.resolve(a.paths.MkvInfo, "mkvinfo"), path)
	if err != nil {
		return 0, err
	}
	return parseMkvDuration(out, path)
}

func parseMkvDuration(out []byte, path string) (float64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := durationLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		frac, _ := strconv.ParseFloat("0."+m[4], 64)
		return float64(h*3600+min*60+s) + frac, nil
	}
	return 0, &bdalignerr.ParseError{File: path, Err: fmt.Errorf("no Duration line in mkvinfo output")}
}

// MkvSetChapters edits path in place, replacing its chapters with the given
// OGM-format chapter text.
func (a *Adapters) MkvSetChapters(path string, chapterText []byte) error {
	tmp, err := writeScratchFile("chapter.txt", chapterText)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	_, err = a.run.run(a.paths.resolve(a.paths.MkvPropEdit, "mkvpropedit"), path, "--chapters", tmp)
	return err
}

// MkvMergeWithChapters produces a new file at outPath containing path's
// streams plus the given chapters.
func (a *Adapters) MkvMergeWithChapters(path string, chapterText []byte, outPath string) error {
	tmp, err := writeScratchFile("chapter.txt", chapterText)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	_, err = a.run.run(a.paths.resolve(a.paths.MkvMerge, "mkvmerge"), "-o", outPath, "--chapters", tmp, path)
	return err
}

// MkvSplitByChapters splits path at the given 1-based chapter numbers,
// writing files named from outPattern (mkvmerge's %d split-naming).
func (a *Adapters) MkvSplitByChapters(path string, chapterNumbers []int, outPattern string) error {
	parts := make([]string, len(chapterNumbers))
	for i, n := range chapterNumbers {
		parts[i] = strconv.Itoa(n)
	}
	split := "chapters:" + strings.Join(parts, ",")
	_, err := a.run.run(a.paths.resolve(a.paths.MkvMerge, "mkvmerge"), "-o", outPattern, "--split", split, path)
	return err
}

// LpcmTrack is one LPCM audio track discovered by PcmExtractAndProbe.
type LpcmTrack struct {
	ID       int
	Language string
	WavPath  string
}

var trackLine = regexp.MustCompile(`Track ID (\d+):.*\(A_LPCM\)`)
var languageLine = regexp.MustCompile(`language:(\w+)`)

// PcmExtractAndProbe runs mkvmerge --identify, extracts every LPCM track to
// a scratch WAV file, and reports the total track count alongside a map of
// LPCM track ID to language tag.
func (a *Adapters) PcmExtractAndProbe(path string) (totalTracks int, lpcm map[int]string, err error) {
	out, err := a.run.run(a.paths.resolve(a.paths.MkvMerge, "mkvmerge"), "--identify", path)
	if err != nil {
		return 0, nil, err
	}
	lpcm = make(map[int]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Track ID") {
			totalTracks++
		}
		if m := trackLine.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			lang := "und"
			if lm := languageLine.FindStringSubmatch(line); lm != nil {
				lang = lm[1]
			}
			lpcm[id] = lang
		}
	}
	for id := range lpcm {
		wavPath := fmt.Sprintf("%s.track%d.wav", path, id)
		if _, err := a.run.run(a.paths.resolve(a.paths.MkvMerge, "mkvmerge"), "-o", wavPath, "--tracks", strconv.Itoa(id), path); err != nil {
			return 0, nil, err
		}
	}
	return totalTracks, lpcm, nil
}

// FlacEncode re-encodes a WAV file to FLAC at maximum compression, then
// reads the encoded file's own header back as a correctness check: a FLAC
// stream that fails to parse, or reports no samples, means the external
// encoder produced a corrupt or truncated file even though it exited
// cleanly.
func (a *Adapters) FlacEncode(wavPath, outPath string) error {
	if _, err := a.run.run(a.paths.resolve(a.paths.Flac, "flac"), "--best", "-f", "-o", outPath, wavPath); err != nil {
		return err
	}
	return verifyFlacHeader(outPath)
}

func verifyFlacHeader(path string) error {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return &bdalignerr.ParseError{File: path, Err: fmt.Errorf("encoded FLAC header unreadable: %w", err)}
	}
	defer stream.Close()
	if stream.Info.NSamples == 0 {
		return &bdalignerr.ParseError{File: path, Err: fmt.Errorf("encoded FLAC stream reports zero samples")}
	}
	return nil
}

// TrackReplacement swaps an original track for a replacement file (e.g. a
// re-encoded FLAC standing in for its source LPCM track).
type TrackReplacement struct {
	OriginalTrackID int
	ReplacementPath string
	Language        string
}

// RemuxWithNewTracks remuxes src into outPath, dropping dropTracks,
// substituting replacements for their original tracks, optionally adding a
// subtitle, and preserving trackOrder.
func (a *Adapters) RemuxWithNewTracks(src string, replacements []TrackReplacement, subtitleOptional string, outPath string, trackOrder []int, dropTracks []int) error {
	args := []string{"-o", outPath}
	for _, id := range dropTracks {
		args = append(args, "-d", strconv.Itoa(id))
	}
	args = append(args, src)
	for _, r := range replacements {
		if r.Language != "" {
			args = append(args, "--language", "0:"+r.Language)
		}
		args = append(args, r.ReplacementPath)
	}
	if subtitleOptional != "" {
		args = append(args, subtitleOptional)
	}
	if len(trackOrder) > 0 {
		parts := make([]string, len(trackOrder))
		for i, id := range trackOrder {
			parts[i] = fmt.Sprintf("0:%d", id)
		}
		args = append(args, "--track-order", strings.Join(parts, ","))
	}
	_, err := a.run.run(a.paths.resolve(a.paths.MkvMerge, "mkvmerge"), args...)
	return err
}

func writeScratchFile(name string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "bdalign-"+name)
	if err != nil {
		return "", &bdalignerr.IoError{Path: name, Err: err}
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", &bdalignerr.IoError{Path: f.Name(), Err: err}
	}
	return f.Name(), nil
}
