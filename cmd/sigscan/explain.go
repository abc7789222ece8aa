package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wasilibs/go-re2/experimental"

	"github.com/sansecio/sigmatch/matcher"
)

var (
	explainOffset string
	explainFlags  []string
)

var explainCmd = &cobra.Command{
	Use:   "explain <hex>",
	Short: "Show how a signature compiles",
	Long:  "Compile one hex signature and print its parts, anchors and RE2 rendering",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	addMatcherFlags(explainCmd)
	explainCmd.Flags().StringVar(&explainOffset, "offset", "", "Offset descriptor, such as EP+0,40 or EOF-512")
	explainCmd.Flags().StringSliceVar(&explainFlags, "flags", nil, "Comma-separated flags: nocase, fullword, wide, ascii, once, lineend, distinct")
}

func runExplain(cmd *cobra.Command, args []string) error {
	flags, err := matcher.ParseFlags(explainFlags)
	if err != nil {
		return err
	}
	m := matcher.New(matcherOptions(logger(cmd)))
	d, err := m.Describe(matcher.Signature{Hex: args[0], Offset: explainOffset, Flags: flags})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "offset:  %s\n", d.Offset)
	fmt.Fprintf(w, "flags:   %s\n", flags)
	engine := "trie"
	if d.Literal {
		engine = "literal"
	}
	fmt.Fprintf(w, "engine:  %s\n", engine)
	if d.Weak {
		fmt.Fprintf(w, "warning: anchor shorter than %d bytes\n", minDepth)
	}
	for i, parts := range d.Chains {
		if len(d.Chains) > 1 {
			fmt.Fprintf(w, "chain %d:\n", i+1)
		}
		for _, p := range parts {
			fmt.Fprintf(w, "  part %d: %s  len %d-%d", p.Index, p.Pattern, p.MinLength, p.MaxLength)
			if p.Index > 1 {
				if p.MaxDist < 0 {
					fmt.Fprintf(w, "  after {%d-}", p.MinDist)
				} else {
					fmt.Fprintf(w, "  after {%d-%d}", p.MinDist, p.MaxDist)
				}
			}
			fmt.Fprintf(w, "\n    anchor @%d: %s\n", p.AnchorAt, strings.Join(p.Anchors, " "))
		}
	}

	if !d.RegexOK {
		fmt.Fprintln(w, "regex:   not expressible")
		return nil
	}
	fmt.Fprintf(w, "regex:   %s\n", d.Regex)
	if _, err := experimental.CompileLatin1(d.Regex); err != nil {
		return fmt.Errorf("regex rendering does not compile: %w", err)
	}
	return nil
}
