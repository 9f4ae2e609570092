package export

import (
	"bytes"
	"html/template"
	"time"
)

var contractTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"safeHTML": func(s string) template.HTML { return template.HTML(s) },
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	contractTemplate = template.Must(template.New("contract").Funcs(funcMap).Parse(contractPageTemplate))
}

// TemplateData holds data for contract page rendering
type TemplateData struct {
	Title        string
	TemplateName string
	Variant      string
	Author       string
	GeneratedAt  time.Time
	Cells        []CellView
}

// RenderContractHTML renders the contract page template with provided data
func RenderContractHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := contractTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const contractPageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 1.5rem; font-size: 1.1em; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #999; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.TemplateName}}{{if .Variant}} ({{.Variant}}){{end}} | {{.Author}} | {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>
  {{range .Cells}}
  <section>
    {{if .Title}}<h2>{{.Title}}</h2>{{end}}
    <div>{{.Content | safeHTML}}</div>
  </section>
  {{end}}
</body>
</html>`
