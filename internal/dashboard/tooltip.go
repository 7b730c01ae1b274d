package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/types"
)

// Field is one labelled line of a tooltip row.
type Field struct {
	Label    string
	Property string
	Format   func(any) string // nil formats with types.FormatValue
}

// Tooltip renders hovered features into popup HTML, one row per feature.
type Tooltip struct {
	Fields []Field
	// BoldLabels renders labels in <strong>.
	BoldLabels bool
}

type tooltipLine struct {
	Label string
	Value string
}

var tooltipTmpl = template.Must(template.New("tooltip").Parse(
	`<div class="tooltip">{{range .Rows}}<div class="tooltip-row">` +
		`{{range .}}<p>{{if $.Bold}}<strong>{{.Label}}:</strong>{{else}}{{.Label}}:{{end}} {{.Value}}</p>{{end}}` +
		`</div>{{end}}</div>`))

// Render returns the popup HTML for features in the given order. Missing
// properties render as empty strings; values are HTML-escaped.
func (t Tooltip) Render(features []types.Feature) (string, error) {
	rows := make([][]tooltipLine, len(features))
	for i, f := range features {
		row := make([]tooltipLine, len(t.Fields))
		for j, fd := range t.Fields {
			format := fd.Format
			if format == nil {
				format = types.FormatValue
			}
			row[j] = tooltipLine{Label: fd.Label, Value: format(f.Get(fd.Property))}
		}
		rows[i] = row
	}

	var buf bytes.Buffer
	err := tooltipTmpl.Execute(&buf, struct {
		Rows [][]tooltipLine
		Bold bool
	}{rows, t.BoldLabels})
	if err != nil {
		return "", fmt.Errorf("failed to render tooltip: %w", err)
	}
	return buf.String(), nil
}

// formatDate renders a timestamp property as YYYY-MM-DD.
func formatDate(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.DateOnly)
	}
	if len(s) >= len(time.DateOnly) {
		if t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

// formatAmount drops the value when it is zero, matching how missing fines
// are shown.
func formatAmount(v any) string {
	if f, ok := v.(float64); ok && f == 0 {
		return ""
	}
	return types.FormatValue(v)
}
