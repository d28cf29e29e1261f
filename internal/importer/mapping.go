package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"surveycore/pkg/domain"
)

var folder = cases.Fold()

// Fold normalises a header or label for comparison: accents removed,
// case folded, surrounding space trimmed.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(folder.String(out))
}

// Suggest returns the target field for a header, or "" when nothing fits.
// An exact id match wins; otherwise the longest target id contained in the
// header, ties broken by schema order.
func Suggest(header string, schema *domain.Schema) string {
	h := Fold(header)
	if h == "" {
		return ""
	}
	fields := schema.Fields()
	for _, f := range fields {
		if h == Fold(f) {
			return f
		}
	}
	best := ""
	for _, f := range fields {
		if strings.Contains(h, Fold(f)) && len(f) > len(best) {
			best = f
		}
	}
	return best
}

// AutoMap suggests a target for every header. A target is assigned to the
// left-most column suggesting it; later columns suggesting the same target
// stay unmapped.
func AutoMap(headers []string, schema *domain.Schema) []string {
	out := make([]string, len(headers))
	taken := make(map[string]bool, len(headers))
	for i, h := range headers {
		target := Suggest(h, schema)
		if target == "" || taken[target] {
			continue
		}
		taken[target] = true
		out[i] = target
	}
	return out
}
