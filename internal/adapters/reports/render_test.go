package reports

import (
	"strings"
	"testing"

	"surveycore/internal/stats"
	"surveycore/pkg/domain"
)

func TestFormatMetadata(t *testing.T) {
	cases := map[Format]struct{ ct, ext string }{
		FormatCSV:      {"text/csv", ".csv"},
		FormatJSON:     {"application/json", ".json"},
		FormatPNG:      {"image/png", ".png"},
		FormatMarkdown: {"text/markdown", ".md"},
	}
	for f, want := range cases {
		if f.ContentType() != want.ct || f.Extension() != want.ext {
			t.Fatalf("%s: got %s %s", f, f.ContentType(), f.Extension())
		}
	}
	formats, err := normalizeFormats(nil)
	if err != nil || len(formats) != 2 || formats[0] != FormatCSV {
		t.Fatalf("default formats: %v %v", formats, err)
	}
}

func TestRenderEmptySummary(t *testing.T) {
	schema := domain.DefaultSchema()
	in := renderInput{
		title:    "Empty",
		schema:   schema,
		settings: domain.DefaultSettings(),
		summary:  stats.Summarize(nil, schema, domain.DefaultSettings().Analysis, fixedNow),
	}
	md, err := render(FormatMarkdown, in)
	if err != nil {
		t.Fatalf("render markdown: %v", err)
	}
	if !strings.Contains(string(md), "| Leadership | n/a | 0 |") || strings.Contains(string(md), "## Correlations") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
	if _, err := render(FormatPNG, in); err != nil {
		t.Fatalf("render png: %v", err)
	}
	if _, err := render(Format("pdf"), in); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
