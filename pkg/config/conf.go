package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/score"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	SeedDefault      uint64 = 42
	CacheDirDefault         = "data"
	ServerPortDefault       = 8080
)

// Dataset controls how the snapshot is generated and where it is cached.
// A relative cache dir resolves against the app dir.
type Dataset struct {
	Seed      uint64 `yaml:"seed"`
	CacheDir  string `yaml:"cacheDir"`
	Leads     int    `yaml:"leads"`
	Customers int    `yaml:"customers"`
}

// Scoring holds the defaults for ad-hoc predictions.
type Scoring struct {
	CLV   score.CLVParams   `yaml:"clv"`
	Churn score.ChurnParams `yaml:"churn"`
}

// Server configures the dashboard server.
type Server struct {
	Port int `yaml:"port"`
}

// Config represents app config object.
type Config struct {
	Dataset    Dataset         `yaml:"dataset"`
	Thresholds data.Thresholds `yaml:"thresholds"`
	Filter     data.Filter     `yaml:"filter"`
	Scoring    Scoring         `yaml:"scoring"`
	Server     Server          `yaml:"server"`
}

// Default returns the config written on first run.
func Default() *Config {
	return &Config{
		Dataset: Dataset{
			Seed:      SeedDefault,
			CacheDir:  CacheDirDefault,
			Leads:     data.LeadCountDefault,
			Customers: data.CustomerCountDefault,
		},
		Thresholds: data.DefaultThresholds(),
		Filter:     data.DefaultFilter(),
		Scoring: Scoring{
			CLV:   score.DefaultCLVParams(),
			Churn: score.DefaultChurnParams(),
		},
		Server: Server{Port: ServerPortDefault},
	}
}

// Validate checks the config values are usable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config required")
	}
	if c.Dataset.CacheDir == "" {
		return errors.New("dataset cache dir required")
	}
	if c.Dataset.Leads < 0 || c.Dataset.Customers < 0 {
		return fmt.Errorf("invalid dataset size: %d leads, %d customers", c.Dataset.Leads, c.Dataset.Customers)
	}
	t := c.Thresholds
	if t.HotLeadScore < data.LeadScoreMin || t.HotLeadScore > data.LeadScoreMax {
		return fmt.Errorf("hot lead score %d outside [%d,%d]", t.HotLeadScore, data.LeadScoreMin, data.LeadScoreMax)
	}
	if t.ChurnRisk < 0 || t.ChurnRisk > 1 {
		return fmt.Errorf("churn risk %v outside [0,1]", t.ChurnRisk)
	}
	if t.AlertLimit < 1 {
		return fmt.Errorf("alert limit must be positive: %d", t.AlertLimit)
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("invalid default filter: %w", err)
	}
	if err := c.Scoring.CLV.Validate(); err != nil {
		return fmt.Errorf("invalid CLV defaults: %w", err)
	}
	if err := c.Scoring.Churn.Validate(); err != nil {
		return fmt.Errorf("invalid churn defaults: %w", err)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// CachePath resolves the cache dir against the app dir.
func (c *Config) CachePath(dirPath string) string {
	if filepath.IsAbs(c.Dataset.CacheDir) {
		return c.Dataset.CacheDir
	}
	return filepath.Join(dirPath, c.Dataset.CacheDir)
}

func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
// Keys missing from the file keep their default values.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if err := os.MkdirAll(dirPath, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, Default()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
