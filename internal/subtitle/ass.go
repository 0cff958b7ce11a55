package subtitle

import (
	"strconv"
	"strings"

	"github.com/kaede-labs/bdalign/internal/util"
)

// Style is one [V4/V4+ Styles] row: the name plus every other attribute
// named by the section's Format: line.
type Style struct {
	Name   string
	Fields map[string]string
}

func (s Style) equalTo(o Style) bool {
	if s.Name != o.Name || len(s.Fields) != len(o.Fields) {
		return false
	}
	for k, v := range s.Fields {
		if ov, ok := o.Fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Event is one [Events] row: Dialogue/Comment/etc, its timing and style
// reference pulled out, everything else left in Fields.
type Event struct {
	Kind      string
	Start     float64
	End       float64
	StyleName string
	Fields    map[string]string
}

// Ass is a parsed .ass/.ssa script.
type Ass struct {
	ScriptHeader        []string
	GarbageHeader       []string
	ScriptType          string // "v4.00" or "v4.00+"
	StyleFormat         []string
	Styles              []Style
	EventFormat         []string
	Events              []Event
	DeletedEventIndices map[int]bool
}

func (a *Ass) Kind() Kind { return KindAss }

func (a *Ass) MaxEnd() float64 {
	ends := make([]float64, 0, len(a.Events))
	for i, e := range a.Events {
		if a.DeletedEventIndices[i] {
			continue
		}
		ends = append(ends, e.End)
	}
	return outlierGuardedMax(ends)
}

// ShiftTimes adds delta seconds to every (non-deleted) event's Start/End.
func (a *Ass) ShiftTimes(delta float64) {
	for i := range a.Events {
		if a.DeletedEventIndices[i] {
			continue
		}
		a.Events[i].Start += delta
		a.Events[i].End += delta
	}
}

// ParseASS parses an ASS/SSA script. Malformed lines are skipped; parsing
// is tolerant and never fails outright for content-level problems.
func ParseASS(data []byte) (*Ass, error) {
	text := decodeText(data)
	lines := strings.Split(text, "\n")

	a := &Ass{DeletedEventIndices: map[int]bool{}}
	section := ""
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			switch trimmed {
			case "[Script Info]":
				section = "script"
			case "[Aegisub Project Garbage]":
				section = "garbage"
			case "[V4 Styles]":
				section = "styles"
				a.ScriptType = "v4.00"
			case "[V4+ Styles]":
				section = "styles"
				a.ScriptType = "v4.00+"
			case "[Events]":
				section = "events"
			default:
				section = ""
			}
			continue
		}
		switch section {
		case "script":
			a.ScriptHeader = append(a.ScriptHeader, line)
		case "garbage":
			a.GarbageHeader = append(a.GarbageHeader, line)
		case "styles":
			parseStyleLine(a, trimmed)
		case "events":
			parseEventLine(a, trimmed)
		}
	}
	if a.ScriptType == "" {
		a.ScriptType = "v4.00+"
	}
	return a, nil
}

func parseStyleLine(a *Ass, line string) {
	if strings.HasPrefix(line, ";") {
		return
	}
	if a.StyleFormat == nil {
		if !strings.HasPrefix(line, "Format:") {
			return
		}
		a.StyleFormat = splitTrim(strings.TrimPrefix(line, "Format:"))
		return
	}
	if !strings.HasPrefix(line, "Style:") {
		return
	}
	values := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(line, "Style:")), ",", len(a.StyleFormat))
	if len(values) < len(a.StyleFormat) {
		return
	}
	st := Style{Fields: make(map[string]string, len(a.StyleFormat))}
	for i, attr := range a.StyleFormat {
		val := strings.TrimSpace(values[i])
		if strings.EqualFold(attr, "Name") {
			st.Name = val
			continue
		}
		st.Fields[attr] = val
	}
	a.Styles = append(a.Styles, st)
}

func parseEventLine(a *Ass, line string) {
	if strings.HasPrefix(line, ";") {
		return
	}
	if a.EventFormat == nil {
		if !strings.HasPrefix(line, "Format:") {
			return
		}
		a.EventFormat = splitTrim(strings.TrimPrefix(line, "Format:"))
		return
	}
	colon := strings.Index(line, ":")
	if colon < 0 {
		return
	}
	kind := line[:colon]
	rest := strings.TrimSpace(line[colon+1:])
	values := strings.SplitN(rest, ",", len(a.EventFormat))
	if len(values) < len(a.EventFormat) {
		return
	}
	ev := Event{Kind: kind, Fields: make(map[string]string, len(a.EventFormat))}
	for i, attr := range a.EventFormat {
		val := strings.TrimSpace(values[i])
		switch {
		case strings.EqualFold(attr, "Start"):
			ev.Start = parseAssTime(val)
		case strings.EqualFold(attr, "End"):
			ev.End = parseAssTime(val)
		case strings.EqualFold(attr, "Style"):
			ev.StyleName = val
		default:
			ev.Fields[attr] = val
		}
	}
	a.Events = append(a.Events, ev)
}

func parseAssTime(s string) float64 {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	secParts := strings.SplitN(parts[2], ".", 2)
	sec, _ := strconv.Atoi(secParts[0])
	var frac float64
	if len(secParts) == 2 {
		frac, _ = strconv.ParseFloat("0."+secParts[1], 64)
	}
	return float64(h)*3600 + float64(m)*60 + float64(sec) + frac
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// Serialize renders the script back to bytes: the four sections in
// canonical order, UTF-8 with BOM.
func (a *Ass) Serialize() []byte {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	for _, l := range a.ScriptHeader {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n[Aegisub Project Garbage]\n")
	for _, l := range a.GarbageHeader {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if a.ScriptType == "v4.00" {
		b.WriteString("[V4 Styles]\n")
	} else {
		b.WriteString("[V4+ Styles]\n")
	}
	b.WriteString("Format: " + strings.Join(a.StyleFormat, ", ") + "\n")
	for _, st := range a.Styles {
		b.WriteString("Style: " + buildRow(a.StyleFormat, styleLookup(st)) + "\n")
	}
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: " + strings.Join(a.EventFormat, ", ") + "\n")
	for i, ev := range a.Events {
		if a.DeletedEventIndices[i] {
			continue
		}
		b.WriteString(ev.Kind + ": " + buildRow(a.EventFormat, eventLookup(ev)) + "\n")
	}
	return encodeUTF8BOM(b.String())
}

func styleLookup(st Style) func(string) (string, bool) {
	return func(attr string) (string, bool) {
		if strings.EqualFold(attr, "Name") {
			return st.Name, true
		}
		v, ok := st.Fields[attr]
		return v, ok
	}
}

func eventLookup(ev Event) func(string) (string, bool) {
	return func(attr string) (string, bool) {
		switch {
		case strings.EqualFold(attr, "Start"):
			return util.FormatClock(ev.Start, 2, false), true
		case strings.EqualFold(attr, "End"):
			return util.FormatClock(ev.End, 2, false), true
		case strings.EqualFold(attr, "Style"):
			return ev.StyleName, true
		default:
			v, ok := ev.Fields[attr]
			return v, ok
		}
	}
}

func buildRow(format []string, lookup func(string) (string, bool)) string {
	vals := make([]string, len(format))
	for i, attr := range format {
		if v, ok := lookup(attr); ok {
			vals[i] = v
		}
	}
	return strings.Join(vals, ",")
}
