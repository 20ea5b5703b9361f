package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	seedFlagName      = "seed"
	leadsFlagName     = "leads"
	customersFlagName = "customers"
	dsnFlagName       = "dsn"
)

func newDataCmd() *cli.Command {
	return &cli.Command{
		Name:            "data",
		Usage:           "Manage the lead and customer snapshot",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Generates a new snapshot, replacing the cache",
				Action: cmdDataGenerate,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  seedFlagName,
						Usage: "Random seed for the generated snapshot (default: from config)",
					},
					&cli.IntFlag{
						Name:  leadsFlagName,
						Usage: "Number of leads to generate (default: from config)",
					},
					&cli.IntFlag{
						Name:  customersFlagName,
						Usage: "Number of customers to generate (default: from config)",
					},
				},
			},
			{
				Name:   "load",
				Usage:  "Loads the cached snapshot, generating one if the cache is missing",
				Action: cmdDataLoad,
			},
			{
				Name:   "export",
				Usage:  "Exports the snapshot to a Postgres warehouse",
				Action: cmdDataExport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     dsnFlagName,
						Usage:    "Postgres connection string of the warehouse",
						Sources:  cli.EnvVars("LEADPULSE_WAREHOUSE_DSN"),
						Required: true,
					},
				},
			},
			{
				Name:   "state",
				Usage:  "Prints row counts and snapshot details",
				Action: cmdDataState,
			},
		},
	}
}

type snapshotResult struct {
	Source    data.Source `json:"source" yaml:"source"`
	Dir       string      `json:"dir" yaml:"dir"`
	Leads     int         `json:"leads" yaml:"leads"`
	Customers int         `json:"customers" yaml:"customers"`
}

type stateResult struct {
	Snapshot *data.SnapshotInfo `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Counts   map[string]int64   `json:"counts" yaml:"counts"`
}

func cmdDataGenerate(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	ds := &cfg.Config.Dataset
	if cmd.IsSet(seedFlagName) {
		ds.Seed = cmd.Uint64(seedFlagName)
	}
	if cmd.IsSet(leadsFlagName) {
		ds.Leads = cmd.Int(leadsFlagName)
	}
	if cmd.IsSet(customersFlagName) {
		ds.Customers = cmd.Int(customersFlagName)
	}
	if ds.Leads < 0 || ds.Customers < 0 {
		return fmt.Errorf("record counts must not be negative: %w", data.ErrInvalidInput)
	}

	snap, src, err := loadSnapshot(cfg, true)
	if err != nil {
		return err
	}

	slog.Info("snapshot generated", "seed", ds.Seed, "leads", len(snap.Leads), "customers", len(snap.Customers))
	return printResult(cmd, newSnapshotResult(cfg, snap, src))
}

func cmdDataLoad(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	snap, src, err := loadSnapshot(cfg, false)
	if err != nil {
		if errors.Is(err, data.ErrDataUnavailable) {
			slog.Error("cache is unreadable, run 'data generate' to replace it", "dir", cfg.CacheDir())
		}
		return err
	}

	return printResult(cmd, newSnapshotResult(cfg, snap, src))
}

func cmdDataExport(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	snap, src, err := loadSnapshot(cfg, false)
	if err != nil {
		return err
	}

	if err := data.ExportToWarehouse(ctx, cmd.String(dsnFlagName), snap); err != nil {
		return fmt.Errorf("exporting snapshot: %w", err)
	}

	slog.Info("snapshot exported", "leads", len(snap.Leads), "customers", len(snap.Customers))
	return printResult(cmd, newSnapshotResult(cfg, snap, src))
}

func cmdDataState(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	counts, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("reading data state: %w", err)
	}
	info, err := data.GetSnapshotInfo(cfg.DB)
	if err != nil {
		return fmt.Errorf("reading snapshot info: %w", err)
	}

	return printResult(cmd, &stateResult{Snapshot: info, Counts: counts})
}

func newSnapshotResult(cfg *appConfig, ds *data.Dataset, src data.Source) *snapshotResult {
	return &snapshotResult{
		Source:    src,
		Dir:       cfg.CacheDir(),
		Leads:     len(ds.Leads),
		Customers: len(ds.Customers),
	}
}
