package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var documentTemplate = template.Must(template.New("ocg").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(ocgTemplate))

// RenderHTML renders the OCG document template.
func RenderHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const ocgTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { margin: 1.5rem 0; }
    .negotiable { border-left: 3px solid #2a6b9c; padding-left: 1rem; }
    .alternative { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.5rem 0; }
    .alternative.selected { background: #e8f2e8; border-left: 3px solid #3a7d3a; }
    .points { float: right; color: #666; font-size: 0.85em; }
    .subsection { margin-left: 1.5rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">
    {{.ClientName}} | Version {{.Version}} | {{lower .Status}} | {{formatDate .GeneratedAt "Jan 2, 2006"}}
    {{if .FirmName}}<br>Prepared for {{.FirmName}} — {{.PointsUsed}} of {{.PointBudget}} points used{{end}}
  </div>
  {{range .Sections}}{{template "section" .}}{{end}}
</body>
</html>

{{define "section"}}
<div class="section{{if .IsNegotiable}} negotiable{{end}}">
  <h2>{{.Title}}</h2>
  {{if .Selected}}
    <div class="alternative selected">
      <span class="points">{{.Selected.Points}} pts</span>
      <strong>{{.Selected.Title}}</strong>
      <p>{{.Selected.Content}}</p>
    </div>
  {{else}}
    <p>{{.Content}}</p>
    {{range .Alternatives}}
    <div class="alternative{{if .IsSelected}} selected{{end}}">
      <span class="points">{{.Points}} pts</span>
      <strong>{{.Title}}</strong>{{if .IsDefault}} (default){{end}}
      <p>{{.Content}}</p>
    </div>
    {{end}}
  {{end}}
  {{range .Subsections}}<div class="subsection">{{template "section" .}}</div>{{end}}
</div>
{{end}}`
