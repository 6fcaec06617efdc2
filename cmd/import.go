package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/importer"
	"github.com/sells-group/lead-engine/internal/ingest"
)

var (
	importFilePath string
	importSheet    string
	importSkipDups bool
	importTags     []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX file",
	Long:  "Detects the column layout from the header row, normalizes phone numbers, emails, and websites, and writes leads to the store. Rows without a business name are skipped and reported.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var table *ingest.Table
		if strings.EqualFold(filepath.Ext(importFilePath), ".xlsx") {
			table, err = ingest.StreamXLSX(ctx, importFilePath, ingest.XLSXOptions{SheetName: importSheet})
		} else {
			f, openErr := os.Open(importFilePath)
			if openErr != nil {
				return eris.Wrap(openErr, "open import file")
			}
			defer f.Close()
			table, err = ingest.StreamCSV(ctx, f, ingest.CSVOptions{})
		}
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		im := importer.New(st, st)
		result, err := im.Run(ctx, table.Header, table.Rows, table.Err, importer.Options{
			SkipDuplicates: importSkipDups,
			Tags:           importTags,
		})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("file", importFilePath),
			zap.Int("imported", result.Imported),
			zap.Int("skipped", result.SkippedDuplicate),
			zap.Int("errors", result.Errors),
		)

		formatImportResult(result)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	importCmd.Flags().BoolVar(&importSkipDups, "skip-duplicates", false, "skip rows matching an existing lead by name, phone, or email")
	importCmd.Flags().StringSliceVar(&importTags, "tags", nil, "tags to apply to every imported lead")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func formatImportResult(r *importer.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total rows:\t%d\n", r.TotalRows)
	_, _ = fmt.Fprintf(w, "Imported:\t%d\n", r.Imported)
	_, _ = fmt.Fprintf(w, "Skipped (duplicate):\t%d\n", r.SkippedDuplicate)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", r.Errors)
	_ = w.Flush()

	for _, msg := range r.ErrorMessages {
		fmt.Fprintf(os.Stderr, "  %s\n", msg)
	}
}
