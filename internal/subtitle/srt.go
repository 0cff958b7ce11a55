package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kaede-labs/bdalign/internal/util"
)

// SrtEntry is one numbered SRT block.
type SrtEntry struct {
	Index int
	Start float64
	End   float64
	Text  string // multi-line text, preserved verbatim with internal newlines
}

// Srt is a parsed .srt file.
type Srt struct {
	Entries        []SrtEntry
	DeletedIndices map[int]bool
}

func (s *Srt) Kind() Kind { return KindSrt }

func (s *Srt) MaxEnd() float64 {
	ends := make([]float64, 0, len(s.Entries))
	for _, e := range s.Entries {
		if s.DeletedIndices[e.Index] {
			continue
		}
		ends = append(ends, e.End)
	}
	return outlierGuardedMax(ends)
}

// ShiftTimes adds delta seconds to every (non-deleted) entry's Start/End.
func (s *Srt) ShiftTimes(delta float64) {
	for i := range s.Entries {
		if s.DeletedIndices[s.Entries[i].Index] {
			continue
		}
		s.Entries[i].Start += delta
		s.Entries[i].End += delta
	}
}

// LastIndex returns the highest entry index, 0 if there are no entries.
func (s *Srt) LastIndex() int {
	max := 0
	for _, e := range s.Entries {
		if e.Index > max {
			max = e.Index
		}
	}
	return max
}

// ParseSRT parses an SRT file. A period is accepted in the timestamp in
// place of the canonical comma. Malformed blocks are skipped.
func ParseSRT(data []byte) (*Srt, error) {
	text := decodeText(data)
	// Normalize line endings so block-splitting on blank lines is reliable.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	blocks := strings.Split(text, "\n\n")

	s := &Srt{DeletedIndices: map[int]bool{}}
	for _, block := range blocks {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		if len(lines) < 2 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		start, end, ok := parseSrtTimeRange(lines[1])
		if !ok {
			continue
		}
		text := strings.Join(lines[2:], "\n")
		s.Entries = append(s.Entries, SrtEntry{Index: index, Start: start, End: end, Text: text})
	}
	return s, nil
}

func parseSrtTimeRange(line string) (float64, float64, bool) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok1 := parseSrtTime(strings.TrimSpace(parts[0]))
	end, ok2 := parseSrtTime(strings.TrimSpace(parts[1]))
	return start, end, ok1 && ok2
}

func parseSrtTime(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ".", ",")
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	secMs := strings.SplitN(parts[2], ",", 2)
	sec, err3 := strconv.Atoi(secMs[0])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	var ms int
	if len(secMs) == 2 {
		ms, _ = strconv.Atoi(secMs[1])
	}
	return float64(h)*3600 + float64(m)*60 + float64(sec) + float64(ms)/1000.0, true
}

// Serialize renders the file back to bytes: comma timestamps, UTF-8 BOM.
func (s *Srt) Serialize() []byte {
	var b strings.Builder
	for _, e := range s.Entries {
		if s.DeletedIndices[e.Index] {
			continue
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			e.Index,
			strings.Replace(util.FormatClock(e.Start, 3, true), ".", ",", 1),
			strings.Replace(util.FormatClock(e.End, 3, true), ".", ",", 1),
			e.Text,
		)
	}
	return encodeUTF8BOM(b.String())
}
