package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/techtag/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the rule configuration",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the rule configuration against the ontology",
	Long: `Check loads the ontology and the rule document and validates every
technique id, kind, threshold and phrase. Any unknown id rejects the whole
configuration. Exits non-zero when the configuration is invalid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		ids, err := a.ontology.LoadIDs()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Ontology %s: %d technique ids\n", a.ontology.Path(), len(ids))

		rs, err := a.rules.LoadConfig()
		if err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				printValidationError(verr)
			}
			return err
		}

		fmt.Printf("✓ Rules %s (version %s): %d techniques valid\n\n", a.rules.Path(), rs.Version, len(rs.Rules))
		rows := make([][]string, 0, len(rs.Rules))
		for _, r := range rs.Rules {
			rows = append(rows, []string{
				string(r.ID),
				string(r.Kind),
				truncate(r.Name, 32),
				strconv.Itoa(len(r.Anchors)),
				strconv.Itoa(len(r.Support)),
				fmt.Sprintf("%d/%d", r.MinAnchorMatches, r.MinSupportMatches),
			})
		}
		fmt.Println(renderTable(
			[]string{"Technique", "Kind", "Name", "Anchors", "Support", "Min a/s"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

func printValidationError(verr *model.ValidationError) {
	fmt.Fprintf(os.Stderr, "✗ Rule configuration rejected: %s\n", verr.Source)
	for _, id := range verr.InvalidIDs {
		fmt.Fprintf(os.Stderr, "  unknown technique id: %s\n", id)
	}
	for _, p := range verr.Problems {
		fmt.Fprintf(os.Stderr, "  %s\n", p)
	}
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}
