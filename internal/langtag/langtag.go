// Package langtag resolves the 3-letter language codes embedded in MPLS
// stream entries and written into tsMuxeR meta-file lang= tags into a
// display name and ISO 639-1 code, backed by the iso639-3 registry instead
// of a hand-rolled table.
package langtag

import (
	"strings"

	iso6393 "github.com/barbashov/iso639-3"
)

// Info is the resolved form of a language code.
type Info struct {
	Code3 string // ISO 639-2/3, as found in the MPLS stream entry
	Code1 string // ISO 639-1, empty if the language has none
	Name  string // English reference name, empty if unknown
}

// Resolve looks up a 3-letter code (case-insensitive). Info.Code3 always
// carries the input trimmed and lower-cased; if the registry has no entry,
// Info.Name is empty and callers fall back to that code when rendering.
func Resolve(code3 string) Info {
	code := strings.ToLower(strings.TrimSpace(code3))
	info := Info{Code3: code}
	if code == "" {
		return info
	}
	lang := iso6393.FromPart3Code(code)
	if lang == nil {
		return info
	}
	info.Code1 = lang.Part1
	info.Name = lang.RefName
	return info
}

// DisplayName returns the registry name if known, otherwise the raw code
// upper-cased, so callers always have something presentable.
func (i Info) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return strings.ToUpper(i.Code3)
}
