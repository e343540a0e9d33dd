package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/tabular"
)

var (
	processInput   string
	processOutput  string
	processFormat  string
	processWorkers int
	processQuiet   bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a contact file and write the enriched export",
	Long:  "Reads a CSV, TSV or XLSX contact file, runs extraction, MX classification, deduplication and enrichment, and writes the result as CSV or JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("process"); err != nil {
			return err
		}
		format, err := resolveFormat(processFormat, processOutput)
		if err != nil {
			return err
		}

		tbl, err := tabular.ReadFile(ctx, processInput)
		if err != nil {
			return eris.Wrap(err, "read input")
		}

		env, err := initPipeline(ctx, cfg, processWorkers)
		if err != nil {
			return err
		}
		defer env.Close()

		sink := func(model.ProcessingStatus) {}
		if !processQuiet {
			sink = progressPrinter(os.Stderr)
		}

		result, err := env.Pipeline.Run(ctx, tbl.Rows, sink)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		for _, d := range result.Degraded {
			zap.L().Warn("degraded classification",
				zap.String("domain", d.Domain),
				zap.String("source", string(d.Source)),
				zap.Int("attempts", d.Attempts),
				zap.String("error", d.Err),
			)
		}

		out := io.Writer(os.Stdout)
		if processOutput != "" && processOutput != "-" {
			f, err := os.Create(processOutput)
			if err != nil {
				return eris.Wrap(err, "create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		if err := writeExport(out, format, result.Records, tbl.Header); err != nil {
			return err
		}

		zap.L().Info("processing complete",
			zap.String("input", processInput),
			zap.String("scenario", string(result.Scenario)),
			zap.Int("records", len(result.Records)),
			zap.Int("duplicates", result.Stats.Duplicates),
			zap.Int("enriched", result.Stats.Enriched),
			zap.Int("degraded", len(result.Degraded)),
			zap.Duration("duration", result.Stats.Duration),
		)
		return nil
	},
}

// resolveFormat picks the export format from the flag, falling back to the
// output file extension and then csv.
func resolveFormat(format, output string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		if strings.EqualFold(filepath.Ext(output), ".json") {
			return "json", nil
		}
		return "csv", nil
	}
	switch format {
	case "csv", "json":
		return format, nil
	default:
		return "", eris.Errorf("unsupported format %q (want csv or json)", format)
	}
}

func writeExport(w io.Writer, format string, records []model.ContactRecord, header []string) error {
	var err error
	if format == "json" {
		err = tabular.WriteJSON(w, records)
	} else {
		err = tabular.WriteCSV(w, records, header)
	}
	return eris.Wrap(err, "write export")
}

// progressPrinter renders status updates as a single rewritten line.
func progressPrinter(w io.Writer) model.StatusFunc {
	return func(s model.ProcessingStatus) {
		line := fmt.Sprintf("[%5.1f%%] %s", s.Progress, s.CurrentTask)
		if s.ETASeconds > 0 && !s.IsComplete {
			line += fmt.Sprintf(" (eta %ds)", s.ETASeconds)
		}
		fmt.Fprintf(w, "\r\033[K%s", line)
		if s.IsComplete {
			fmt.Fprintln(w)
		}
	}
}

func init() {
	processCmd.Flags().StringVarP(&processInput, "input", "i", "", "input file: .csv, .tsv, .txt or .xlsx (required)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file (default stdout)")
	processCmd.Flags().StringVar(&processFormat, "format", "", "export format: csv or json (default from --output extension, else csv)")
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "concurrent MX lookups (default from config)")
	processCmd.Flags().BoolVarP(&processQuiet, "quiet", "q", false, "suppress progress output")
	_ = processCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(processCmd)
}
