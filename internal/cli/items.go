package cli

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/techtag/internal/model"
)

var (
	exportFormat string
	exportOut    string
)

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Load classifiable items from a JSON Lines file",
	Long: `Import reads one JSON object per line with the fields id, source_id,
title and content. Items without an id receive a generated one. Blank
lines and lines starting with '#' are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export items with their effective technique",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv, json)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
}

// importRecord is one line of an import file.
type importRecord struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

// readImport parses JSON Lines into items. Line numbers in errors are 1-based.
func readImport(r io.Reader) ([]model.Item, error) {
	var items []model.Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec importRecord
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(rec.Content) == "" {
			return nil, fmt.Errorf("line %d: content is required", line)
		}
		items = append(items, model.Item{
			ID:       rec.ID,
			SourceID: rec.SourceID,
			Title:    rec.Title,
			Content:  rec.Content,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return items, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	items, err := readImport(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	for i := range items {
		if err := a.store.AddItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("imported %d of %d: %w", i, len(items), err)
		}
	}
	fmt.Printf("✓ Imported %d item(s)\n", len(items))
	return nil
}

// exportRecord is the flat export shape of an item.
type exportRecord struct {
	ID                 string              `json:"id"`
	SourceID           string              `json:"source_id"`
	Title              string              `json:"title"`
	ReviewStatus       model.ReviewStatus  `json:"review_status"`
	TagSource          string              `json:"tag_source"`
	EffectiveTechnique model.TechniqueID   `json:"effective_technique,omitempty"`
	SuggestedTechnique model.TechniqueID   `json:"suggested_technique,omitempty"`
	SuggestedMentions  []model.TechniqueID `json:"suggested_mentions,omitempty"`
}

func toExport(items []model.Item) []exportRecord {
	out := make([]exportRecord, 0, len(items))
	for _, it := range items {
		out = append(out, exportRecord{
			ID:                 it.ID,
			SourceID:           it.SourceID,
			Title:              it.Title,
			ReviewStatus:       it.ReviewStatus,
			TagSource:          it.TagSource(),
			EffectiveTechnique: it.EffectiveTechnique(),
			SuggestedTechnique: it.SuggestedTechniqueID,
			SuggestedMentions:  it.SuggestedMentions,
		})
	}
	return out
}

func writeExport(w io.Writer, format string, records []exportRecord) error {
	switch format {
	case "json":
		return writeJSON(w, records)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "source_id", "title", "review_status", "tag_source", "effective_technique", "suggested_technique", "suggested_mentions"}); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write([]string{
				r.ID,
				r.SourceID,
				r.Title,
				string(r.ReviewStatus),
				r.TagSource,
				string(r.EffectiveTechnique),
				string(r.SuggestedTechnique),
				joinIDs(r.SuggestedMentions),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown export format %q (want csv or json)", format)
	}
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("unknown export format %q (want csv or json)", exportFormat)
	}

	ctx, stop := signalContext()
	defer stop()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	items, err := a.store.ListAll(ctx)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		w = f
	}

	if err := writeExport(w, exportFormat, toExport(items)); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "✓ Exported %d item(s) to %s\n", len(items), exportOut)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinIDs(ids []model.TechniqueID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " ")
}
