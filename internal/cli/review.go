package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/techtag/internal/model"
)

var (
	reviewLimit   int
	reviewReplace string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect and decide on suggested classifications",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items awaiting review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		items, err := a.reviewer.List(ctx, reviewLimit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Nothing to review.")
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{
				it.ID,
				string(it.SuggestedTechniqueID),
				joinIDs(it.SuggestedMentions),
				string(it.ReviewStatus),
				truncate(it.Title, 40),
			})
		}
		fmt.Println(renderTable(
			[]string{"Item", "Suggested", "Mentions", "Status", "Title"},
			rows,
			nil,
		))
		return nil
	},
}

var reviewStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review queue statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.reviewer.Stats(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(stats.ByStatus))
		for _, st := range model.AllStatuses() {
			rows = append(rows, []string{string(st), strconv.Itoa(stats.ByStatus[st])})
		}
		fmt.Println(renderTable([]string{"Status", "Items"}, rows, []columnAlignment{alignLeft, alignRight}))
		fmt.Printf("\nNeeds review: %d\n\n", stats.NeedsReview)

		if len(stats.TopSuggested) > 0 {
			top := make([][]string, 0, len(stats.TopSuggested))
			for _, tc := range stats.TopSuggested {
				top = append(top, []string{string(tc.TechniqueID), strconv.Itoa(tc.Count)})
			}
			fmt.Println(renderTable([]string{"Suggested technique", "Items"}, top, []columnAlignment{alignLeft, alignRight}))
		}
		return nil
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <item-id>",
	Short: "Approve an item's suggested technique",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		item, err := a.reviewer.Approve(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s approved as %s\n", item.ID, item.TechniqueID)
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <item-id>",
	Short: "Reject an item's suggestion, optionally correcting it",
	Long: `Reject dismisses the suggestion. With --replace the item is marked
corrected and the replacement technique is confirmed instead; the
replacement must exist in the ontology.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		item, err := a.reviewer.Reject(ctx, args[0], model.TechniqueID(reviewReplace))
		if err != nil {
			return err
		}
		if item.ReviewStatus == model.StatusCorrected {
			fmt.Printf("✓ %s corrected to %s\n", item.ID, item.TechniqueID)
		} else {
			fmt.Printf("✓ %s rejected\n", item.ID)
		}
		return nil
	},
}

var reviewBulkCmd = &cobra.Command{
	Use:   "approve-bulk <technique-id>",
	Short: "Approve every suggested item with this suggested technique",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.reviewer.BulkApproveByTechnique(ctx, model.TechniqueID(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("✓ Approved %d item(s) suggested as %s\n", n, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewListCmd, reviewStatsCmd, reviewApproveCmd, reviewRejectCmd, reviewBulkCmd)

	reviewListCmd.Flags().IntVar(&reviewLimit, "limit", 50, "maximum items to list")
	reviewRejectCmd.Flags().StringVar(&reviewReplace, "replace", "", "confirm this technique id instead (marks the item corrected)")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
