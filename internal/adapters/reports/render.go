package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"surveycore/internal/delimited"
	"surveycore/internal/stats"
	"surveycore/pkg/domain"
)

// Format is a report artifact type.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatPNG      Format = "png"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name, case-insensitively. "md" is an alias for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "png":
		return FormatPNG, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unsupported report format %q", domain.ErrMalformedInput, s)
}

// ContentType is the MIME type of the artifact.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatPNG:
		return "image/png"
	case FormatMarkdown:
		return "text/markdown"
	}
	return "application/octet-stream"
}

// Extension is the file suffix used in artifact keys.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

func normalizeFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		return []Format{FormatCSV, FormatJSON}, nil
	}
	out := make([]Format, 0, len(in))
	seen := make(map[Format]struct{}, len(in))
	for _, f := range in {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return nil, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		out = append(out, parsed)
	}
	return out, nil
}

type renderInput struct {
	title    string
	schema   *domain.Schema
	settings domain.Settings
	records  []domain.SurveyRecord
	summary  stats.Summary
}

func render(format Format, in renderInput) ([]byte, error) {
	switch format {
	case FormatCSV:
		var buf bytes.Buffer
		if err := delimited.Write(&buf, in.records, in.schema, delimited.ExportOptionsFrom(in.settings.Export)); err != nil {
			return nil, fmt.Errorf("render csv: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		payload, err := json.MarshalIndent(struct {
			Title string `json:"title"`
			stats.Summary
		}{in.title, in.summary}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatPNG:
		return buildPNG(in.summary)
	case FormatMarkdown:
		return buildMarkdown(in), nil
	}
	return nil, fmt.Errorf("unsupported report format %s", format)
}

var areaColors = []color.RGBA{
	{0, 102, 204, 255},
	{0, 153, 102, 255},
	{204, 102, 0, 255},
	{153, 51, 153, 255},
	{204, 0, 51, 255},
}

// buildPNG draws one bar per Likert question, scaled to the 1..5 range and
// coloured by area. Questions without answers are left blank.
func buildPNG(summary stats.Summary) ([]byte, error) {
	const width, height, margin = 400, 200, 10
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	areaIdx := make(map[string]int, len(summary.Areas))
	for i, a := range summary.Areas {
		areaIdx[a.AreaID] = i
	}
	n := len(summary.Questions)
	if n == 0 {
		n = 1
	}
	barWidth := max((width-2*margin)/n, 1)
	for i, q := range summary.Questions {
		if q.Average == nil {
			continue
		}
		x0 := margin + i*barWidth
		x1 := max(x0+barWidth-2, x0+1)
		barHeight := int(float64(height-2*margin) * (*q.Average / domain.LikertMax))
		rect := image.Rect(x0, height-margin-barHeight, x1, height-margin)
		c := areaColors[areaIdx[q.Area]%len(areaColors)]
		draw.Draw(img, rect, &image.Uniform{c}, image.Point{}, draw.Src)
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildMarkdown(in renderInput) []byte {
	s := in.summary
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", in.title)
	fmt.Fprintf(&b, "Generated %s from %d responses (average completeness %.0f%%).\n\n",
		s.GeneratedAt.Format("2006-01-02 15:04 MST"), s.TotalResponses, s.AverageCompleteness*100)
	if s.OverallAverage != nil {
		fmt.Fprintf(&b, "Overall average: **%.2f**\n\n", *s.OverallAverage)
	}

	b.WriteString("## Areas\n\n| Area | Average | Answers |\n|---|---|---|\n")
	for _, a := range s.Areas {
		fmt.Fprintf(&b, "| %s | %s | %d |\n", a.Name, optional(a.Average), a.Responses)
	}

	b.WriteString("\n## Strengths\n\n")
	for _, q := range s.Ranking.Strengths {
		fmt.Fprintf(&b, "- %s (%s): %.2f\n", q.Text, q.QuestionID, q.Average)
	}
	b.WriteString("\n## Weaknesses\n\n")
	for _, q := range s.Ranking.Weaknesses {
		fmt.Fprintf(&b, "- %s (%s): %.2f\n", q.Text, q.QuestionID, q.Average)
	}

	if len(s.Correlations) > 0 {
		b.WriteString("\n## Correlations\n\n| Questions | r | Strength | n |\n|---|---|---|---|\n")
		for _, c := range s.Correlations {
			fmt.Fprintf(&b, "| %s / %s | %.2f | %s %s | %d |\n", c.QuestionID, c.OtherID, c.R, c.Strength, c.Direction, c.SampleSize)
		}
	}

	b.WriteString("\n## Questions\n\n| Question | Average | Median | Std. dev. | n |\n|---|---|---|---|---|\n")
	for _, q := range s.Questions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n", q.QuestionID, optional(q.Average), optional(q.Median), optional(q.StandardDeviation), q.SampleSize)
	}
	return []byte(b.String())
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
