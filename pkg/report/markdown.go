package report

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/batch"
	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

const markdownTemplate = `# Batch run {{ .RunID }}

| | |
|---|---|
| Mutation | {{ .Mutation }}{{ if .DryRun }} (dry run){{ end }} |
| State | {{ .State }} |
| Started | {{ time .StartedAt }} |
| Duration | {{ duration .StartedAt .FinishedAt }} |
| Total | {{ .Stats.Total }} |
| Succeeded | {{ .Stats.Succeeded }} |
| Skipped | {{ .Stats.Skipped }} |
| Failed | {{ .Stats.Failed }} |
| Dry run | {{ .Stats.DryRun }} |
| Retries | {{ .Stats.TotalRetries }} |
| Success rate | {{ percent .Stats.SuccessRate }} |
{{ if .Aborted }}
> **Aborted:** {{ .AbortReason }}
{{ end }}
{{- with failures .Outcomes }}
## Failures

| Item | Name | Reason | Attempts | Error |
|---|---|---|---|---|
{{- range . }}
| {{ cell .ItemID }} | {{ cell .Name }} | {{ cell .Reason }} | {{ .Attempts }} | {{ if .Error }}{{ cell .Error.Message }}{{ end }} |
{{- end }}
{{ end }}
{{- with skipped .Outcomes }}
## Skipped

| Item | Name | Status | Reason |
|---|---|---|---|
{{- range . }}
| {{ cell .ItemID }} | {{ cell .Name }} | {{ .Status }} | {{ cell .Reason }} |
{{- end }}
{{ end -}}
`

var markdown = template.Must(template.New("report").Funcs(template.FuncMap{
	"time": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}

		return t.UTC().Format(time.RFC3339)
	},
	"duration": func(from, to time.Time) string {
		if from.IsZero() || to.IsZero() {
			return "-"
		}

		return to.Sub(from).Round(time.Millisecond).String()
	},
	"percent": func(rate float64) string {
		return fmt.Sprintf("%.1f%%", rate*100)
	},
	"cell": func(s string) string {
		s = strings.ReplaceAll(s, "|", `\|`)

		return strings.ReplaceAll(s, "\n", " ")
	},
	"failures": func(outcomes []models.ItemOutcome) []models.ItemOutcome {
		return filter(outcomes, func(s models.OutcomeStatus) bool { return s == models.OutcomeFailed })
	},
	"skipped": func(outcomes []models.ItemOutcome) []models.ItemOutcome {
		return filter(outcomes, models.OutcomeStatus.IsSkipped)
	},
}).Parse(markdownTemplate))

// WriteMarkdown writes a summary table followed by the failed and skipped items.
func WriteMarkdown(w io.Writer, result batch.Result) error {
	if err := markdown.Execute(w, result); err != nil {
		return fmt.Errorf("failed to render markdown report: %w", err)
	}

	return nil
}

func filter(outcomes []models.ItemOutcome, keep func(models.OutcomeStatus) bool) []models.ItemOutcome {
	var out []models.ItemOutcome

	for _, outcome := range outcomes {
		if keep(outcome.Status) {
			out = append(out, outcome)
		}
	}

	return out
}
