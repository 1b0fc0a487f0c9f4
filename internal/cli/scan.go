package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/pipeline"
)

var (
	analyzeFile string
	analyzeJSON bool
	analyzeMD   bool
)

// analyzeCmd classifies a single chunk without touching the store
var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Classify one text chunk and explain the result",
	Long: `Analyze normalizes and scores a chunk against the rule configuration and
shows the primary technique, the mentions and which anchor and support
phrases matched. Text is read from the arguments, --file, or stdin.

Example:
  techtag analyze "We bespreken de pingpongtechniek"
  techtag analyze --file transcript.txt --json`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read the chunk from a file ('-' for stdin)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the analysis as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeMD, "md", false, "print the analysis as Markdown")
}

func readChunk(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read chunk: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	content, err := readChunk(args, analyzeFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("no text to analyze")
	}

	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	analysis, err := a.engine.Analyze(content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case analyzeJSON:
		return writeJSON(out, analysis)
	case analyzeMD:
		_, err := fmt.Fprint(out, pipeline.NewRenderer().AnalysisMarkdown(*analysis))
		return err
	}

	printAnalysis(out, *analysis)
	return nil
}

func printAnalysis(out io.Writer, a model.Analysis) {
	if a.Result.HasPrimary() {
		fmt.Fprintf(out, "Primary:   %s\n", a.Result.Primary)
	} else {
		fmt.Fprintln(out, "Primary:   none")
	}
	mentions := make([]string, len(a.Result.Mentions))
	for i, m := range a.Result.Mentions {
		mentions[i] = string(m)
	}
	fmt.Fprintf(out, "Mentions:  %s\n", strings.Join(mentions, ", "))

	if len(a.Matches) == 0 {
		fmt.Fprintln(out, "\nNo technique matched.")
		return
	}

	rows := make([][]string, 0, len(a.Matches))
	for _, m := range a.Matches {
		rows = append(rows, []string{
			string(m.ID),
			string(m.Kind),
			fmt.Sprintf("%.2f", m.Score),
			fmt.Sprintf("%d/%d", m.AnchorHits, m.SupportHits),
			strings.Join(m.MatchedAnchors, ", "),
			strings.Join(m.MatchedSupport, ", "),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Technique", "Kind", "Score", "Hits", "Anchors", "Support"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	))
}
