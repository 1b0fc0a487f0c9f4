package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/techtag/internal/model"
)

// Renderer writes run reports and analyses to files
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderJSON writes v as indented JSON to path
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a Markdown summary of a run report to path
func (r *Renderer) RenderMarkdown(report model.RunReport, path string) error {
	return writeFile(path, []byte(r.RunMarkdown(report)))
}

// RunMarkdown renders a run report as Markdown
func (r *Renderer) RunMarkdown(report model.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Classification run %s\n\n", report.RunID)
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Duration: %s\n", report.Duration().Round(time.Millisecond))
	if report.Cancelled {
		b.WriteString("- Status: cancelled before all items were enqueued\n")
	}
	b.WriteString("\n| Processed | Suggested | No match | Errors |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n", report.Processed, report.Suggested, report.NoMatch, len(report.Errors))

	if len(report.Errors) > 0 {
		b.WriteString("\n## Errors\n\nThe run completed partially. Investigate these items:\n\n")
		for _, e := range report.Errors {
			fmt.Fprintf(&b, "- `%s`\n", e)
		}
	}
	return b.String()
}

// AnalysisMarkdown renders a single chunk analysis as Markdown
func (r *Renderer) AnalysisMarkdown(a model.Analysis) string {
	var b strings.Builder

	b.WriteString("# Analysis\n\n")
	if a.Result.HasPrimary() {
		fmt.Fprintf(&b, "**Primary:** `%s`\n\n", a.Result.Primary)
	} else {
		b.WriteString("**Primary:** none\n\n")
	}
	if len(a.Matches) == 0 {
		b.WriteString("No technique matched.\n")
		return b.String()
	}

	b.WriteString("| Technique | Kind | Score | Anchors | Support |\n")
	b.WriteString("|---|---|---:|---|---|\n")
	for _, m := range a.Matches {
		fmt.Fprintf(&b, "| %s | %s | %.2f | %s | %s |\n",
			m.ID, m.Kind, m.Score, strings.Join(m.MatchedAnchors, ", "), strings.Join(m.MatchedSupport, ", "))
	}
	return b.String()
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
