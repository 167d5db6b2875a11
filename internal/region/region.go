// Package region validates requested chart regions against the closed set of
// supported territories.
package region

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ignite/chart-gateway/internal/chart"
)

// Global is the worldwide chart region and the default when none is given.
const Global = "global"

// Validator checks region codes against a fixed set. It is read-only after
// construction and safe for concurrent use.
type Validator struct {
	codes map[string]struct{}
}

// NewValidator builds a Validator for the given codes.
func NewValidator(codes []string) *Validator {
	lower := cases.Lower(language.Und)
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[lower.String(strings.TrimSpace(c))] = struct{}{}
	}
	return &Validator{codes: set}
}

// Normalize returns the requested regions in request order, or ["global"]
// when nothing was requested. Every unsupported code is reported at once.
func (v *Validator) Normalize(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return []string{Global}, nil
	}

	lower := cases.Lower(language.Und)
	out := make([]string, 0, len(requested))
	var invalid []string
	for _, raw := range requested {
		code := lower.String(strings.TrimSpace(raw))
		if _, ok := v.codes[code]; !ok {
			invalid = append(invalid, raw)
			continue
		}
		out = append(out, code)
	}
	if len(invalid) > 0 {
		return nil, &chart.InvalidRegionError{Codes: invalid}
	}
	return out, nil
}

// Supported reports whether code is in the set.
func (v *Validator) Supported(code string) bool {
	_, ok := v.codes[code]
	return ok
}

// Codes returns the supported codes sorted.
func (v *Validator) Codes() []string {
	out := make([]string, 0, len(v.codes))
	for c := range v.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
