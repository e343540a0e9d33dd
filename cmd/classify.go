package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/contact-mx/internal/model"
)

var (
	classifyWorkers int
	classifyJSON    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify DOMAIN...",
	Short: "Classify the mail provider of one or more domains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("classify"); err != nil {
			return err
		}
		env, err := initClassifier(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		workers := classifyWorkers
		if workers <= 0 {
			workers = cfg.Pipeline.Workers
		}
		results := env.Classifier.ClassifyAll(ctx, args, workers, nil)

		ordered := make([]model.Classification, 0, len(args))
		for _, d := range args {
			ordered = append(ordered, results[d])
		}
		if classifyJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ordered)
		}
		return printClassifications(os.Stdout, ordered)
	},
}

func printClassifications(w io.Writer, results []model.Classification) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tPROVIDER\tSOURCE\tATTEMPTS\tERROR")
	for _, c := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", c.Domain, c.Provider, c.Source, c.Attempts, c.Err)
	}
	return tw.Flush()
}

func init() {
	classifyCmd.Flags().IntVar(&classifyWorkers, "workers", 0, "concurrent MX lookups (default from config)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(classifyCmd)
}
