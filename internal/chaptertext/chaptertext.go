// Package chaptertext writes OGM-compatible chapter text files: the plain
// CHAPTERnn/CHAPTERnnNAME pairs several muxers (mkvmerge among them) accept
// as chapter input, encoded UTF-8 with a byte-order mark.
package chaptertext

import (
	"fmt"
	"strings"

	"github.com/kaede-labs/bdalign/internal/util"
)

// Write renders offsets (playlist-local chapter marks, in seconds, already
// ascending) as OGM chapter text: two-digit zero-padded numbering,
// HH:MM:SS.mmm timestamps, "Chapter NN" default names.
func Write(offsets []float64) []byte {
	var b strings.Builder
	for i, offset := range offsets {
		n := i + 1
		fmt.Fprintf(&b, "CHAPTER%02d=%s\n", n, util.FormatClock(offset, 3, true))
		fmt.Fprintf(&b, "CHAPTER%02dNAME=Chapter %02d\n", n, n)
	}
	out := []byte(b.String())
	return append([]byte{0xEF, 0xBB, 0xBF}, out...)
}
