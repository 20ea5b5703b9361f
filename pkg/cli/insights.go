package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	minScoreFlagName = "min-score"
	maxScoreFlagName = "max-score"
)

func newInsightsCmd() *cli.Command {
	return &cli.Command{
		Name:            "insights",
		Usage:           "Prints dashboard insights for the loaded snapshot",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "summary",
				Usage:  "Headline lead and customer metrics",
				Action: cmdInsightsSummary,
				Flags:  filterFlags(),
			},
			{
				Name:   "alerts",
				Usage:  "Priority leads and customers at risk of churning",
				Action: cmdInsightsAlerts,
				Flags:  filterFlags(),
			},
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  industryFlagName,
			Usage: "Limits results to industry (repeatable, default: all)",
		},
		&cli.IntFlag{
			Name:  minScoreFlagName,
			Usage: "Minimum lead score (default: from config)",
		},
		&cli.IntFlag{
			Name:  maxScoreFlagName,
			Usage: "Maximum lead score (default: from config)",
		},
	}
}

// filterFromFlags starts from the configured default filter and applies
// the flags that were set.
func filterFromFlags(cmd *cli.Command, def data.Filter) (data.Filter, error) {
	f := def
	if cmd.IsSet(industryFlagName) {
		f.Industries = cmd.StringSlice(industryFlagName)
	}
	if cmd.IsSet(minScoreFlagName) {
		f.MinScore = cmd.Int(minScoreFlagName)
	}
	if cmd.IsSet(maxScoreFlagName) {
		f.MaxScore = cmd.Int(maxScoreFlagName)
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func cmdInsightsSummary(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	f, err := filterFromFlags(cmd, cfg.Config.Filter)
	if err != nil {
		return err
	}
	if err := ensureSnapshot(cfg); err != nil {
		return err
	}

	s, err := data.GetSummary(cfg.DB, f, cfg.Config.Thresholds)
	if err != nil {
		return fmt.Errorf("getting summary: %w", err)
	}
	return printResult(cmd, s)
}

func cmdInsightsAlerts(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	f, err := filterFromFlags(cmd, cfg.Config.Filter)
	if err != nil {
		return err
	}
	if err := ensureSnapshot(cfg); err != nil {
		return err
	}

	a, err := data.GetAlerts(cfg.DB, f, cfg.Config.Thresholds)
	if err != nil {
		return fmt.Errorf("getting alerts: %w", err)
	}
	return printResult(cmd, a)
}
