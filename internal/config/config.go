package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SyncInterval      time.Duration    `yaml:"-"`
	RawSyncInterval   string           `yaml:"sync_interval"`
	ActiveInterval    time.Duration    `yaml:"-"`
	RawActiveInterval string           `yaml:"active_interval"`
	LookbackDays      int              `yaml:"lookback_days"`
	Username          string           `yaml:"username"`
	Orgs              []string         `yaml:"orgs"`
	Repos             []RepoConfig     `yaml:"repos"`
	Automation        AutomationConfig `yaml:"automation"`
	Diagnostics       DiagnosticConfig `yaml:"diagnostics"`
	Store             StoreConfig      `yaml:"store"`
	Workdir           string           `yaml:"workdir"`
	LogFile           string           `yaml:"log_file"`
	Log               LogConfig        `yaml:"log"`
	TUI               TUIConfig        `yaml:"tui"`
}

type RepoConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

type AutomationConfig struct {
	AutoFix         bool `yaml:"auto_fix"`
	AutoApprove     bool `yaml:"auto_approve"`
	ResumeOnFailure bool `yaml:"resume_on_failure"`
	// MaxSessions caps Copilot sessions per pull request; 0 means no cap.
	MaxSessions int `yaml:"max_sessions"`
}

type DiagnosticConfig struct {
	IgnoreJobs []string `yaml:"ignore_jobs"`
	MaxRecords int      `yaml:"max_records"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	var err error
	if c.SyncInterval, err = parseInterval("sync_interval", &c.RawSyncInterval, "5m"); err != nil {
		return err
	}
	if c.ActiveInterval, err = parseInterval("active_interval", &c.RawActiveInterval, "30s"); err != nil {
		return err
	}
	if c.TUI.RefreshInterval, err = parseInterval("tui.refresh_interval", &c.TUI.RawInterval, "1s"); err != nil {
		return err
	}

	if c.LookbackDays == 0 {
		c.LookbackDays = 7
	}
	if c.Workdir == "" {
		c.Workdir = "/tmp/copilot-monitor"
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.Workdir, "logs", "copilot-monitor.log")
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.Workdir, "sessions.db")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Diagnostics.MaxRecords == 0 {
		c.Diagnostics.MaxRecords = 20
	}
	return nil
}

func parseInterval(name string, raw *string, def string) (time.Duration, error) {
	if *raw == "" {
		*raw = def
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, *raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, *raw)
	}
	return d, nil
}

func (c *Config) validate() error {
	if len(c.Orgs) == 0 && len(c.Repos) == 0 {
		return fmt.Errorf("no orgs or repos configured")
	}
	for i, org := range c.Orgs {
		if strings.TrimSpace(org) == "" {
			return fmt.Errorf("orgs[%d]: name required", i)
		}
	}
	for i, r := range c.Repos {
		if r.Owner == "" {
			return fmt.Errorf("repos[%d]: owner required", i)
		}
		if r.Name == "" {
			return fmt.Errorf("repos[%d]: name required", i)
		}
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback_days must not be negative, got %d", c.LookbackDays)
	}
	if c.Automation.MaxSessions < 0 {
		return fmt.Errorf("automation.max_sessions must not be negative, got %d", c.Automation.MaxSessions)
	}
	if c.Diagnostics.MaxRecords < 0 {
		return fmt.Errorf("diagnostics.max_records must not be negative, got %d", c.Diagnostics.MaxRecords)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (debug|info|warn|error)", c.Log.Level)
	}
	return nil
}

// Lookback is the window of pull request activity to monitor.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}
