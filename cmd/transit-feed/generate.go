package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/transit-feed/internal/feed"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a feed snapshot for one site",
	RunE:  runGenerate,
}

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Write a feed with one snapshot per step over several days",
	RunE:  runRange,
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, rangeCmd} {
		c.Flags().String("site", "", "configured site name (default first site)")
		c.Flags().StringP("output", "o", "", "output file (default output.path)")
	}
	generateCmd.Flags().String("at", "", "RFC3339 time (default now)")

	rangeCmd.Flags().String("from", "", "RFC3339 start time (default now)")
	rangeCmd.Flags().Int("days", 0, "number of days (default output.range_days)")
	rangeCmd.Flags().Duration("step", 0, "time between snapshots (default output.range_step)")
}

func parseFlagTime(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t.UTC(), nil
}

// prepare loads the configuration, wires the pipeline and checks the
// output path, which are the run's only fatal failures.
func prepare(cmd *cobra.Command) (*application, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = cfg.Output.Path
	}
	if err := feed.CheckWritable(out); err != nil {
		return nil, "", err
	}
	a, err := newApplication(cfg)
	if err != nil {
		return nil, "", err
	}
	return a, out, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	a, out, err := prepare(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("site")
	site, err := a.site(name)
	if err != nil {
		return err
	}
	at, err := parseFlagTime(cmd, "at")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := a.service.Build(ctx, site, at)
	if err := feed.WriteFile(out, f); err != nil {
		return err
	}
	log.Printf("INFO: wrote %s (%d objects, %d points)", out, len(f.Objects), len(f.Points))
	return nil
}

func runRange(cmd *cobra.Command, _ []string) error {
	a, out, err := prepare(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("site")
	site, err := a.site(name)
	if err != nil {
		return err
	}
	from, err := parseFlagTime(cmd, "from")
	if err != nil {
		return err
	}
	days, _ := cmd.Flags().GetInt("days")
	if days <= 0 {
		days = a.cfg.Output.RangeDays
	}
	step, _ := cmd.Flags().GetDuration("step")
	if step <= 0 {
		step = a.cfg.Output.RangeStep
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rf, err := a.service.BuildRange(ctx, site, from, days, step)
	if err != nil {
		return err
	}
	if err := feed.WriteFile(out, rf); err != nil {
		return err
	}
	log.Printf("INFO: wrote %s (%d snapshots)", out, len(rf.Snapshots))
	return nil
}
