package subtitle

import "fmt"

// MergeSRT appends other's entries onto base, renumbering from base's last
// index and shifting timestamps by timeShift. base is mutated.
func MergeSRT(base, other *Srt, timeShift float64) {
	offset := base.LastIndex()
	for _, e := range other.Entries {
		if other.DeletedIndices[e.Index] {
			continue
		}
		base.Entries = append(base.Entries, SrtEntry{
			Index: e.Index + offset,
			Start: e.Start + timeShift,
			End:   e.End + timeShift,
			Text:  e.Text,
		})
	}
}

// MergeASS reconciles other's styles into base (deduping identical styles,
// suffixing "1" on name clashes until unique), then appends other's events
// with times shifted by timeShift and style names rewritten through the
// reconciliation map. base is mutated.
func MergeASS(base, other *Ass, timeShift float64) {
	rename := reconcileStyles(base, other)

	for i, ev := range other.Events {
		if other.DeletedEventIndices[i] {
			continue
		}
		newEv := Event{
			Kind:      ev.Kind,
			Start:     ev.Start + timeShift,
			End:       ev.End + timeShift,
			StyleName: ev.StyleName,
			Fields:    ev.Fields,
		}
		if mapped, ok := rename[ev.StyleName]; ok {
			newEv.StyleName = mapped
		}
		base.Events = append(base.Events, newEv)
	}
}

// reconcileStyles merges other.Styles into base.Styles, returning a map
// from other's original style names to the name they now carry in base.
func reconcileStyles(base, other *Ass) map[string]string {
	existingNames := make(map[string]bool, len(base.Styles))
	for _, st := range base.Styles {
		existingNames[st.Name] = true
	}

	rename := make(map[string]string, len(other.Styles))
	for _, st := range other.Styles {
		if dup, ok := findIdentical(base.Styles, st); ok {
			rename[st.Name] = dup
			continue
		}

		candidate := st
		for existingNames[candidate.Name] {
			if dup, ok := findIdenticalNamed(base.Styles, candidate.Name, candidate); ok {
				rename[st.Name] = dup
				candidate.Name = ""
				break
			}
			candidate.Name = candidate.Name + "1"
		}
		if candidate.Name == "" {
			continue
		}

		rename[st.Name] = candidate.Name
		existingNames[candidate.Name] = true
		base.Styles = append(base.Styles, candidate)
	}
	return rename
}

// findIdentical reports whether styles already contains a style whose full
// field-by-field representation (name included) matches st.
func findIdentical(styles []Style, st Style) (string, bool) {
	for _, existing := range styles {
		if existing.equalTo(st) {
			return existing.Name, true
		}
	}
	return "", false
}

// findIdenticalNamed reports whether styles contains a style named `name`
// whose fields match candidate's fields (name clash resolved as identical).
func findIdenticalNamed(styles []Style, name string, candidate Style) (string, bool) {
	for _, existing := range styles {
		if existing.Name != name {
			continue
		}
		probe := candidate
		probe.Name = name
		if existing.equalTo(probe) {
			return existing.Name, true
		}
	}
	return "", false
}

// Merge dispatches to MergeASS or MergeSRT; base and other must be the same
// concrete variant. PGS subtitles carry no mergeable content.
func Merge(base, other Subtitle, timeShift float64) error {
	switch b := base.(type) {
	case *Ass:
		o, ok := other.(*Ass)
		if !ok {
			return fmt.Errorf("merge: cannot merge %s into ass", other.Kind())
		}
		MergeASS(b, o, timeShift)
		return nil
	case *Srt:
		o, ok := other.(*Srt)
		if !ok {
			return fmt.Errorf("merge: cannot merge %s into srt", other.Kind())
		}
		MergeSRT(b, o, timeShift)
		return nil
	default:
		return fmt.Errorf("merge: %s subtitles cannot be content-merged", base.Kind())
	}
}
