package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sansecio/sigmatch/cmd/internal"
	"github.com/sansecio/sigmatch/matcher"
)

var (
	verbose bool
	quiet   bool

	rulesPath   string
	skipInvalid bool
	prune       bool
	forceTrie   bool
	distinctAlt bool
	minDepth    int
	maxDepth    int
)

var rootCmd = &cobra.Command{
	Use:   "sigscan",
	Short: "Scan files with hex signatures",
	Long: `sigscan builds a signature database from a YAML rules file and scans files
for hex signatures with wildcards, byte distances and file-relative offsets.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(profileCmd)
}

// addMatcherFlags registers the flags that shape the compiled database.
func addMatcherFlags(cmd *cobra.Command) {
	d := matcher.DefaultOptions()
	cmd.Flags().BoolVar(&prune, "prune", false, "Drop signatures whose anchors are shorter than --min-depth")
	cmd.Flags().BoolVar(&forceTrie, "force-trie", false, "Serve literal signatures from the trie")
	cmd.Flags().BoolVar(&distinctAlt, "distinct-alternatives", false, "Report every matching alternation branch")
	cmd.Flags().IntVar(&minDepth, "min-depth", d.MinDepth, "Anchor length below which a signature is weak")
	cmd.Flags().IntVar(&maxDepth, "max-depth", d.MaxDepth, "Longest anchor inserted into the trie")
}

// addRulesFlags registers the flags of commands that load a rules file.
func addRulesFlags(cmd *cobra.Command) {
	addMatcherFlags(cmd)
	cmd.Flags().StringVar(&rulesPath, "rules", "", "Path to the YAML rules file")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip rules that fail to compile instead of aborting")
	cmd.MarkFlagRequired("rules") //nolint:errcheck
}

func matcherOptions(log *slog.Logger) matcher.Options {
	opts := matcher.DefaultOptions()
	opts.MinDepth = minDepth
	opts.MaxDepth = maxDepth
	opts.Prune = prune
	opts.ForceTrie = forceTrie
	opts.DistinctAlternatives = distinctAlt
	opts.Logger = log
	return opts
}

func loadDatabase(log *slog.Logger) (*internal.Database, error) {
	rf, err := internal.LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	db, err := internal.Compile(rf, matcherOptions(log), skipInvalid)
	if err != nil {
		return nil, err
	}
	st := db.Matcher.Stats()
	log.Info("compiled rules",
		"signatures", st.Signatures,
		"logical", st.Logical,
		"literal", st.Literal,
		"parts", st.Parts,
		"skipped", db.Skipped,
		"pruned", st.Pruned,
	)
	return db, nil
}

func logger(cmd *cobra.Command) *slog.Logger {
	return internal.NewLogger(cmd.ErrOrStderr(), verbose, quiet)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
