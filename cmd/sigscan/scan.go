package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fatih/color"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sansecio/sigmatch/cmd/internal"
	"github.com/sansecio/sigmatch/matcher"
)

var (
	scanJobs        int
	scanMode        string
	scanMaxFileSize int64
	scanColor       string
	scanExclude     []string
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>...",
	Short: "Scan files or directories",
	Long:  "Scan files, recursing into directories, and print every signature that matched",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	addRulesFlags(scanCmd)
	scanCmd.Flags().IntVarP(&scanJobs, "jobs", "j", runtime.NumCPU(), "Number of files scanned in parallel")
	scanCmd.Flags().StringVar(&scanMode, "mode", "signature", "Signature kinds to report: signature, fingerprint, all")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 64*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.Flags().StringSliceVar(&scanExclude, "exclude", nil, "Gitignore-style patterns of paths to skip, relative to each scanned root")
}

type scanTotals struct {
	mu      sync.Mutex
	scanned int
	matched int
	hits    map[string]int
}

func (t *scanTotals) add(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scanned++
	if len(names) > 0 {
		t.matched++
	}
	for _, n := range names {
		t.hits[n]++
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger(cmd)
	mode, err := internal.ParseMode(scanMode)
	if err != nil {
		return err
	}
	var colored bool
	switch scanColor {
	case "always":
		colored = true
	case "auto":
		colored = !color.NoColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	case "never":
	default:
		return fmt.Errorf("unknown color mode: %s", scanColor)
	}

	db, err := loadDatabase(log)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	defer db.Matcher.Close()

	var exclude *gitignore.GitIgnore
	if len(scanExclude) > 0 {
		exclude = gitignore.CompileIgnoreLines(scanExclude...)
	}
	files, err := collectFiles(args, exclude, scanMaxFileSize)
	if err != nil {
		return err
	}

	out := internal.NewPrinter(cmd.OutOrStdout(), colored)
	totals := &scanTotals{hits: make(map[string]int)}

	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(scanJobs, 1))
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			names, err := scanFile(db, path, mode, out)
			if err != nil {
				log.Error("scan failed", "path", path, "error", err)
				return nil
			}
			totals.add(names)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always done once Wait returns; only an interrupt of the
	// command itself aborts the summary.
	if err := cmd.Context().Err(); err != nil {
		return err
	}

	if !quiet {
		out.Summary(totals.scanned, totals.matched, totals.hits)
	}
	return nil
}

// scanFile scans one file and returns the names of every standalone and
// logical signature that matched.
func scanFile(db *internal.Database, path string, mode matcher.Mode, out *internal.Printer) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	target, fileType := internal.Target(data)

	st := db.Matcher.AcquireState(target)
	defer db.Matcher.ReleaseState(st)

	rs, err := db.Matcher.Scan(data, matcher.ScanOptions{Mode: mode, FileType: fileType}, st)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, r := range rs {
		out.Match(path, r)
		names = append(names, r.Name)
	}
	for _, l := range db.Logical {
		if !l.Eligible(mode, fileType) {
			continue
		}
		counts := st.Tracker().Counts(l.ID)
		if l.Expr.Eval(counts) {
			out.Logical(path, l.Name, counts)
			names = append(names, l.Name)
		}
	}
	return names, nil
}

// collectFiles lists the regular files under paths that are at most
// maxSize bytes and not matched by exclude.
func collectFiles(paths []string, exclude *gitignore.GitIgnore, maxSize int64) ([]string, error) {
	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if exclude != nil {
				rel, err := filepath.Rel(root, path)
				if err != nil {
					return err
				}
				if rel != "." && exclude.MatchesPath(rel) {
					return nil
				}
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxSize {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return files, nil
}
