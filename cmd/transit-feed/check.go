package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/transit-feed/internal/formula"
	"github.com/i474232898/transit-feed/internal/parts"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and formula set",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	set, err := parts.LoadSet(cfg.Parts.Set)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "config ok: %d bodies, %d sites\n", len(cfg.Bodies), len(cfg.Sites))
	fmt.Fprintf(w, "builtin formula sets: %s\n", strings.Join(parts.BuiltinSets(), ", "))
	fmt.Fprintf(w, "formula set %s: %d points\n", set.Name, len(set.Parts))

	var bad int
	for _, d := range set.Parts {
		for _, src := range []string{d.Day, d.Night} {
			if strings.TrimSpace(src) == "" {
				continue
			}
			expr, err := formula.Compile(src)
			if err != nil {
				bad++
				fmt.Fprintf(w, "  %s: %v\n", d.Name, err)
				continue
			}
			fmt.Fprintf(w, "  %s: %s  [%s]\n", d.Name, expr.Root, strings.Join(expr.References(), " "))
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d invalid formulas", bad)
	}
	return nil
}
