package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}

// TemplateData holds data for report template rendering.
type TemplateData struct {
	Address     string
	City        string
	PostalCode  string
	Stage       string
	Status      string
	StatusLabel string
	GeneratedAt time.Time
	Sections    []TemplateSection
	History     []TemplateHistoryEntry
}

// TemplateSection holds one review section row.
type TemplateSection struct {
	Title             string
	AnswerLabel       string
	Comments          string
	SubmittedComments string
	HasIssue          bool
}

// TemplateHistoryEntry holds one comment submission for the report.
type TemplateHistoryEntry struct {
	SectionTitle string
	Comments     string
	SubmittedAt  time.Time
}

// RenderReportHTML renders the review report template with provided data.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <title>{{.Address}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 1.5rem; }
    .status { display: inline-block; padding: 0.2rem 0.6rem; border-radius: 4px; font-weight: bold; }
    .status-none { background: #d9f2d9; }
    .status-pending_review { background: #fdf3cd; }
    .status-pending_information { background: #f8d7da; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { border: 1px solid #ccc; padding: 0.5rem; text-align: left; vertical-align: top; }
    th { background: #f5f5f5; }
    .issue { color: #a33; }
    .history { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.75rem 0; border-left: 3px solid #333; }
    .history .date { color: #666; font-size: 0.85em; }
    pre { margin: 0.25rem 0 0; font: inherit; white-space: pre-wrap; }
  </style>
</head>
<body>
  <h1>{{.Address}}</h1>
  <div class="meta">{{.PostalCode}} {{.City}} | {{.Stage}} | {{formatDate .GeneratedAt "02/01/2006 15:04"}}</div>
  <p>Estado de la revisión:
    <span class="status status-{{lower .Status}}">{{.StatusLabel}}</span>
  </p>
  <table>
    <tr><th>Sección</th><th>Resultado</th><th>Comentarios</th></tr>
    {{range .Sections}}
    <tr>
      <td>{{.Title}}{{if .HasIssue}} <span class="issue">&#9888;</span>{{end}}</td>
      <td>{{.AnswerLabel}}</td>
      <td>{{if .Comments}}<pre>{{.Comments}}</pre>{{end}}{{if .SubmittedComments}}<pre>Enviado: {{.SubmittedComments}}</pre>{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{if .History}}
  <h2>Historial de envíos</h2>
  {{range .History}}
  <div class="history">
    <strong>{{.SectionTitle}}</strong>
    <div class="date">{{formatDate .SubmittedAt "02/01/2006 15:04"}}</div>
    <pre>{{.Comments}}</pre>
  </div>
  {{end}}
  {{end}}
</body>
</html>`
