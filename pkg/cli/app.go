package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "leadpulse"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

const (
	debugFlagName  = "debug"
	dirFlagName    = "dir"
	formatFlagName = "format"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir    string
	DBPath string
	Debug  bool
	Format string
	Config *config.Config
	DB     *sqlx.DB
}

// CacheDir is the resolved CSV cache directory.
func (a *appConfig) CacheDir() string {
	return a.Config.CachePath(a.Dir)
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Lead scoring and customer value dashboard",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:    dirFlagName,
				Usage:   "App directory holding config, cache and database (default: $HOME/.leadpulse)",
				Sources: cli.EnvVars("LEADPULSE_DIR"),
			},
			&cli.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			newDataCmd(),
			newScoreCmd(),
			newInsightsCmd(),
			newServerCmd(),
			newResetCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			debug := cmd.Bool(debugFlagName)
			if debug {
				logging.SetDefaultCLILogger("debug")
			}

			format := cmd.String(formatFlagName)
			switch format {
			case formatJSON:
			case formatYAML, "yml":
				format = formatYAML
			default:
				return ctx, fmt.Errorf("unsupported output format: %s", format)
			}

			dir := cmd.String(dirFlagName)
			if dir == "" {
				d, _, err := config.GetOrCreateHomeDir(appName)
				if err != nil {
					return ctx, fmt.Errorf("resolving app dir: %w", err)
				}
				dir = d
			}

			c, err := config.ReadOrCreate(dir)
			if err != nil {
				return ctx, fmt.Errorf("loading config: %w", err)
			}

			dbPath := filepath.Join(dir, data.DataFileName)
			if err := data.Init(dbPath); err != nil {
				return ctx, fmt.Errorf("initializing database: %w", err)
			}

			db, err := data.GetDB(dbPath)
			if err != nil {
				return ctx, fmt.Errorf("opening database: %w", err)
			}

			slog.Debug("app initialized", "dir", dir, "db", dbPath)
			cmd.Metadata[appConfigKey] = &appConfig{
				Dir:    dir,
				DBPath: dbPath,
				Debug:  debug,
				Format: format,
				Config: c,
				DB:     db,
			}
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

// loadSnapshot reads the cached snapshot, or generates one when the cache
// is absent or regenerate is set, and imports it into the dashboard store.
func loadSnapshot(cfg *appConfig, regenerate bool) (*data.Dataset, data.Source, error) {
	ds := cfg.Config.Dataset
	now := time.Now()

	if regenerate {
		snap := data.GenerateN(ds.Seed, now, ds.Leads, ds.Customers)
		if err := data.SaveCache(cfg.CacheDir(), snap); err != nil {
			return nil, "", fmt.Errorf("saving cache: %w", err)
		}
		if err := data.Import(cfg.DB, snap, data.SourceGenerated); err != nil {
			return nil, "", fmt.Errorf("importing snapshot: %w", err)
		}
		return snap, data.SourceGenerated, nil
	}

	snap, src, err := data.LoadOrGenerateN(cfg.CacheDir(), ds.Seed, now, ds.Leads, ds.Customers)
	if err != nil {
		return nil, "", fmt.Errorf("loading snapshot: %w", err)
	}
	if err := data.Import(cfg.DB, snap, src); err != nil {
		return nil, "", fmt.Errorf("importing snapshot: %w", err)
	}
	return snap, src, nil
}

// ensureSnapshot loads the snapshot unless the store already holds one.
func ensureSnapshot(cfg *appConfig) error {
	info, err := data.GetSnapshotInfo(cfg.DB)
	if err != nil {
		return fmt.Errorf("reading snapshot info: %w", err)
	}
	if info != nil {
		return nil
	}
	_, src, err := loadSnapshot(cfg, false)
	if err != nil {
		return err
	}
	slog.Debug("snapshot loaded", "source", src)
	return nil
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// printResult encodes v to the root command writer in the selected format.
func printResult(cmd *cli.Command, v any) error {
	return encode(cmd.Root().Writer, getConfig(cmd).Format, v)
}
