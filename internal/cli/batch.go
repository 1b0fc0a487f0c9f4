package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/techtag/internal/model"
	"github.com/ppiankov/techtag/internal/pipeline"
)

var (
	runLimit   int
	runJSON    string
	runMD      string
	runTimeout time.Duration
)

const banner = "═══════════════════════════════════════════════════════════"

// runCmd represents the batch classification command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify untagged items and store suggestions",
	Long: `Run fetches up to --limit untagged items from the store, scores each
against the rule configuration and stores a suggestion for every item that
resolves to a primary technique.

Configuration is reloaded and validated before any item is touched; an
invalid configuration aborts the run. A failure on a single item is
reported and the run continues. Ctrl-C stops enqueueing new items and
lets accepted items finish.

Example:
  techtag run
  techtag run --limit 100 --json run.json --md run.md`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Revert all suggested and pending items to untagged",
	Long: `Reset clears every stored suggestion whose item is still suggested or
pending, so the next run re-classifies it with the current rules.
Approved, corrected and rejected items are not touched.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)

	runCmd.Flags().IntVar(&runLimit, "limit", 0, "maximum items to classify (default: batch.max_items)")
	runCmd.Flags().StringVar(&runJSON, "json", "", "write the run report as JSON to this path")
	runCmd.Flags().StringVar(&runMD, "md", "", "write the run report as Markdown to this path")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "stop enqueueing after this long (0 = no limit)")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	limit := runLimit
	if limit <= 0 {
		limit = a.cfg.Batch.MaxItems
	}

	fmt.Fprintf(os.Stderr, "\n%s\n  techtag classification run\n%s\n\n", banner, banner)
	fmt.Fprintf(os.Stderr, "  Rules:     %s\n", a.cfg.Rules.Path)
	fmt.Fprintf(os.Stderr, "  Ontology:  %s\n", a.cfg.Ontology.Path)
	fmt.Fprintf(os.Stderr, "  Limit:     %d items\n", limit)
	fmt.Fprintf(os.Stderr, "  Workers:   %d\n\n", a.cfg.Batch.Workers)

	rs, err := a.engine.Reload()
	if err != nil {
		return fmt.Errorf("rule configuration rejected: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d techniques\n", len(rs.Rules))

	report, err := a.batch.ClassifyBatch(ctx, limit)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printRunReport(report)

	renderer := pipeline.NewRenderer()
	if runJSON != "" {
		if err := renderer.RenderJSON(report, runJSON); err != nil {
			return fmt.Errorf("write JSON report: %w", err)
		}
	}
	if runMD != "" {
		if err := renderer.RenderMarkdown(report, runMD); err != nil {
			return fmt.Errorf("write Markdown report: %w", err)
		}
	}
	return nil
}

func printRunReport(report model.RunReport) {
	fmt.Println(renderTable(
		[]string{"Run", "Processed", "Suggested", "No match", "Errors", "Duration"},
		[][]string{{
			report.RunID,
			strconv.Itoa(report.Processed),
			strconv.Itoa(report.Suggested),
			strconv.Itoa(report.NoMatch),
			strconv.Itoa(len(report.Errors)),
			report.Duration().Round(time.Millisecond).String(),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if report.Cancelled {
		fmt.Fprintln(os.Stderr, "⚠️  Run cancelled: remaining items were not enqueued")
	}
	if len(report.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Partially completed, investigate %d item(s):\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "  ✗ %s\n", e)
		}
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	// Caches are dropped so the next run sees current rules.
	a.engine.Invalidate()

	n, err := a.batch.ResetSuggestions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Reset %d item(s) to untagged\n", n)
	return nil
}
