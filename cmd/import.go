package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import pantry records from a CSV or XLSX file",
	Long: `Reads a flat-file export, resolves its columns against the known
header spellings, and ingests every usable row. Prints the per-row outcome.

Examples:
  pantryctl import --file pantries.csv
  pantryctl import --file export.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importFile)
		if err != nil {
			return eris.Wrapf(err, "import: read %s", importFile)
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		report, err := e.Pipeline.IngestFlatFile(ctx, data)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int("accepted", report.AcceptedCount),
			zap.Int("rejected", report.RejectedCount),
		)
		fmt.Printf("accepted %d, rejected %d\n", report.AcceptedCount, report.RejectedCount)
		for _, rej := range report.Rejections {
			fmt.Printf("  row %d: %s\n", rej.Position, rej.Reason)
		}
		if report.Truncated {
			fmt.Printf("  (%d further rejections not itemized)\n", report.RejectedCount-len(report.Rejections))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the CSV or XLSX file (required)")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
