package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// HTMLConfig controls GenerateHTML.
type HTMLConfig struct {
	OutputPath string // default <reportDir>/report.html
	Title      string // default "droidprobe report"
}

// GenerateHTML renders a self-contained summary page for the run in reportDir.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, cases, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	if cfg.Title == "" {
		cfg.Title = "droidprobe report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, HTMLFile)
	}

	html, err := renderHTML(buildHTMLData(index, cases, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData is the template input.
type HTMLData struct {
	Title       string
	GeneratedAt string
	Index       *Index
	Duration    string
	Cases       []CaseHTMLData
}

// CaseHTMLData is one row of the page.
type CaseHTMLData struct {
	CaseEntry
	ErrorText   string
	Output      string
	Sub         []SubResult
	DurationStr string
}

func buildHTMLData(index *Index, cases []CaseDetail, cfg HTMLConfig) HTMLData {
	rows := make([]CaseHTMLData, len(index.Cases))
	for i, e := range index.Cases {
		row := CaseHTMLData{CaseEntry: e, DurationStr: formatDuration(e.Duration)}
		if e.Error != nil {
			row.ErrorText = *e.Error
		}
		if i < len(cases) {
			row.Output = cases[i].Output
			row.Sub = cases[i].Sub
		}
		rows[i] = row
	}
	total := "-"
	if index.EndTime != nil {
		ms := index.EndTime.Sub(index.StartTime).Milliseconds()
		total = formatDuration(&ms)
	}
	return HTMLData{
		Title:       cfg.Title,
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Index:       index,
		Duration:    total,
		Cases:       rows,
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func subDuration(ms int64) string {
	return formatDuration(&ms)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{"subDuration": subDuration}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  :root { --bg: #1a1a2e; --panel: #16213e; --text: #eee; --muted: #aaa;
          --passed: #22c55e; --failed: #ef4444; --skipped: #eab308; --running: #3b82f6; }
  body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background: var(--bg); color: var(--text); margin: 0; }
  header { background: var(--panel); padding: 16px 24px; display: flex; gap: 24px; align-items: center; }
  header h1 { font-size: 18px; margin: 0; }
  .stat { padding: 4px 12px; border-radius: 4px; background: #0f3460; font-size: 14px; }
  main { padding: 16px 24px; }
  details { background: var(--panel); margin-bottom: 8px; border-radius: 4px; border-left: 4px solid var(--muted); }
  details.passed { border-color: var(--passed); }
  details.failed { border-color: var(--failed); }
  details.skipped { border-color: var(--skipped); }
  details.running { border-color: var(--running); }
  summary { padding: 8px 12px; cursor: pointer; display: flex; gap: 16px; }
  summary .name { flex: 1; }
  .muted { color: var(--muted); }
  pre { margin: 0; padding: 12px; background: #0b0b18; overflow-x: auto; font-size: 12px; white-space: pre-wrap; }
  .error { color: var(--failed); padding: 0 12px 8px; white-space: pre-wrap; }
  table { margin: 0 12px 8px; border-collapse: collapse; font-size: 13px; }
  td { padding: 2px 12px 2px 0; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <span class="stat">Run {{.Index.RunID}}</span>
  {{if .Index.Serial}}<span class="stat">Device {{.Index.Serial}}</span>{{end}}
  <span class="stat">Total {{.Index.Summary.Total}}</span>
  <span class="stat" style="color: var(--passed)">Passed {{.Index.Summary.Passed}}</span>
  <span class="stat" style="color: var(--failed)">Failed {{.Index.Summary.Failed}}</span>
  <span class="stat" style="color: var(--skipped)">Skipped {{.Index.Summary.Skipped}}</span>
  <span class="stat">Duration {{.Duration}}</span>
</header>
<main>
{{range .Cases}}
<details class="{{.Status}}">
  <summary><span class="name">{{.Module}} / {{.Name}}</span><span>{{.Status}}</span><span class="muted">{{.DurationStr}}</span></summary>
  {{if .ErrorText}}<div class="error">{{.ErrorText}}</div>{{end}}
  {{if .Sub}}<table>{{range .Sub}}<tr><td>{{.Name}}</td><td>{{.Status}}</td><td class="muted">{{subDuration .Duration}}</td><td>{{.Error}}</td></tr>{{end}}</table>{{end}}
  <pre>{{.Output}}</pre>
</details>
{{end}}
<p class="muted">Generated {{.GeneratedAt}}</p>
</main>
</body>
</html>
`
