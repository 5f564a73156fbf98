package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"
)

// ReportFormat represents the report output format.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted run reports from a RunReport.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{logger: logger}
}

// GenerateReport generates a report in the specified format.
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (f *Formatter) generateHTMLReport(report *RunReport, outputPath string) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
		"statusClass": func(status RunStatus) string {
			if status == StatusCompleted {
				return "pass"
			}
			return "fail"
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML report generated", "path", outputPath)
	return nil
}

func (f *Formatter) generateTextReport(report *RunReport, outputPath string) error {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 80) + "\n")
	buf.WriteString("   CEFLAGS RUN REPORT\n")
	buf.WriteString(strings.Repeat("=", 80) + "\n\n")

	buf.WriteString("RUN SUMMARY\n")
	buf.WriteString(strings.Repeat("-", 80) + "\n")
	buf.WriteString(fmt.Sprintf("Status:       %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("Run ID:       %s\n", report.RunID))
	buf.WriteString(fmt.Sprintf("Context:      %s\n", report.Context))
	buf.WriteString(fmt.Sprintf("Benchmark:    %s\n", report.Benchmark))
	buf.WriteString(fmt.Sprintf("Terminated:   %s\n", report.TerminateOn))
	buf.WriteString(fmt.Sprintf("Start Time:   %s\n", report.StartTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("End Time:     %s\n", report.EndTime.Format("2006-01-02 15:04:05")))
	buf.WriteString(fmt.Sprintf("Duration:     %s\n", report.Duration))
	buf.WriteString(fmt.Sprintf("Iterations:   %d\n", report.Iterations))
	buf.WriteString(fmt.Sprintf("Baseline:     %g\n", report.BaselineScore))
	buf.WriteString(fmt.Sprintf("Final score:  %g\n", report.FinalScore))
	buf.WriteString("\n")

	if len(report.Promotions) > 0 {
		buf.WriteString("PROMOTIONS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, p := range report.Promotions {
			buf.WriteString(fmt.Sprintf("%d. iteration %d: %s -> state %d (score %g, baseline %g)\n",
				p.Iteration, p.Iteration, p.FlagName, p.State, p.Score, p.Baseline))
		}
		buf.WriteString("\n")
	}

	if len(report.Errors) > 0 {
		buf.WriteString("ERRORS\n")
		buf.WriteString(strings.Repeat("-", 80) + "\n")
		for _, e := range report.Errors {
			buf.WriteString(fmt.Sprintf("- %s\n", e))
		}
		buf.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("text report generated", "path", outputPath)
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<title>ceflags run {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
.pass { color: #2a7; }
.fail { color: #c33; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
<h1>ceflags run {{.RunID}}</h1>
<p class="{{statusClass .Status}}">Status: {{.Status}} ({{.TerminateOn}})</p>
<p>Context: {{.Context}} / {{.Benchmark}}</p>
<p>Start: {{formatTime .StartTime}} &mdash; End: {{formatTime .EndTime}} ({{.Duration}})</p>
<p>Iterations: {{.Iterations}} &mdash; Baseline: {{.BaselineScore}} &mdash; Final: {{.FinalScore}}</p>
<h2>Promotions</h2>
<table>
<tr><th>Iteration</th><th>Flag</th><th>State</th><th>Score</th><th>Baseline</th></tr>
{{range .Promotions}}<tr><td>{{.Iteration}}</td><td>{{.FlagName}}</td><td>{{.State}}</td><td>{{.Score}}</td><td>{{.Baseline}}</td></tr>
{{end}}
</table>
</body>
</html>
`
