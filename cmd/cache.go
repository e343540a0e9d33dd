package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/contact"
	"github.com/sells-group/contact-mx/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the persistent domain cache",
	Long:  "Commands for listing, warming, and deleting stored domain classifications. Requires cache.store.driver.",
}

// -- cache list --

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored domain classifications, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListProviders(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "cache list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No cached domains.")
			return nil
		}
		return printEntries(os.Stdout, entries)
	},
}

func printEntries(w io.Writer, entries []model.DomainEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tPROVIDER\tUPDATED")
	for _, e := range entries {
		updated := "-"
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Domain, e.Provider, updated)
	}
	return tw.Flush()
}

// -- cache warm --

var cacheWarmCmd = &cobra.Command{
	Use:   "warm DOMAIN...",
	Short: "Resolve domains and store their classifications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		env, err := initClassifier(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Pipeline.Workers
		}

		results := env.Classifier.ClassifyAll(ctx, args, workers, nil)

		ordered := make([]model.Classification, 0, len(args))
		for _, d := range args {
			ordered = append(ordered, results[d])
		}
		stored, degraded := summarizeWarm(ordered)
		zap.L().Info("cache warm complete",
			zap.Int("domains", len(args)),
			zap.Int("stored", stored),
			zap.Int("degraded", degraded),
		)
		return printClassifications(os.Stdout, ordered)
	},
}

// summarizeWarm counts results the store accepted and results that fell back
// after a failed lookup.
func summarizeWarm(results []model.Classification) (stored, degraded int) {
	for _, c := range results {
		if c.Persisted {
			stored++
		}
		if c.Degraded {
			degraded++
		}
	}
	return stored, degraded
}

// -- cache delete --

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete DOMAIN...",
	Short: "Remove stored classifications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("cache"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		for _, d := range args {
			if err := st.DeleteProvider(ctx, contact.CleanWebsite(d)); err != nil {
				return eris.Wrapf(err, "cache delete %s", d)
			}
		}
		fmt.Fprintf(os.Stderr, "Deleted %d domain(s).\n", len(args))
		return nil
	},
}

func init() {
	cacheListCmd.Flags().Int("limit", 50, "maximum entries to show (0 for all)")
	cacheWarmCmd.Flags().Int("workers", 0, "concurrent MX lookups (default from config)")

	cacheCmd.AddCommand(cacheListCmd, cacheWarmCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}
