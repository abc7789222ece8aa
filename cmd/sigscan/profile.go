package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var profileTop int

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Show the signatures that are slowest to verify",
	Long:  "Scan one file and report per-part verification cost around trie anchor hits",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	addRulesFlags(profileCmd)
	profileCmd.Flags().IntVar(&profileTop, "top", 20, "Number of entries to show (0 for all)")
}

func runProfile(cmd *cobra.Command, args []string) error {
	log := logger(cmd)
	db, err := loadDatabase(log)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	defer db.Matcher.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	start := time.Now()
	timings := db.Matcher.VerifyProfile(data)
	elapsed := time.Since(start)
	if profileTop > 0 && len(timings) > profileTop {
		timings = timings[:profileTop]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGNATURE\tPART\tANCHOR\tHITS\tMATCHES\tTIME")
	for _, t := range timings {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%s\n", t.Signature, t.Part, t.Anchor, t.Hits, t.Matches, t.Duration)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "profiled %d bytes in %s\n", len(data), elapsed)
	return nil
}
