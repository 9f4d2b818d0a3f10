package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

const (
	xdgAppName = "taskslot"
	configFile = "config.yaml"
)

// Config is the application configuration stored in ~/.config/taskslot/config.yaml.
type Config struct {
	Policy Policy `yaml:"policy" json:"policy"`

	// TaskSource is one of "graph", "google", "taskwarrior", "orgmode" or "local".
	TaskSource  string            `yaml:"task_source" json:"task_source"`
	Calendar    CalendarConfig    `yaml:"calendar" json:"calendar"`
	Graph       GraphConfig       `yaml:"graph,omitempty" json:"graph,omitempty"`
	Org         OrgConfig         `yaml:"org,omitempty" json:"org,omitempty"`
	Taskwarrior TaskwarriorConfig `yaml:"taskwarrior,omitempty" json:"taskwarrior,omitempty"`
	Store       StoreConfig       `yaml:"store,omitempty" json:"store,omitempty"`
	Server      ServerConfig      `yaml:"server,omitempty" json:"server,omitempty"`
	Log         LogConfig         `yaml:"log,omitempty" json:"log,omitempty"`
}

type CalendarConfig struct {
	// Provider is "graph" or "google".
	Provider string `yaml:"provider" json:"provider"`
	// Name is the Google calendar summary to book into.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

type GraphConfig struct {
	BaseURL  string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	ClientID string `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	Tenant   string `yaml:"tenant,omitempty" json:"tenant,omitempty"`
	// TokenEnv names an environment variable holding a ready access token.
	// When set it takes precedence over the interactive OAuth flow.
	TokenEnv string `yaml:"token_env,omitempty" json:"token_env,omitempty"`
	// RatePerSec paces Graph requests; 0 disables pacing.
	RatePerSec int `yaml:"rate_per_sec,omitempty" json:"rate_per_sec,omitempty"`
}

type OrgConfig struct {
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

type TaskwarriorConfig struct {
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
	// Cron, when set, triggers a scheduling run on that schedule while serving.
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Policy:     DefaultPolicy(),
		TaskSource: "graph",
		Calendar:   CalendarConfig{Provider: "graph", Name: "Tasks"},
		Graph: GraphConfig{
			BaseURL:  "https://graph.microsoft.com/v1.0",
			Tenant:   "common",
			TokenEnv: "OUTLOOK_ACCESS_TOKEN",
		},
		Server: ServerConfig{Addr: ":8000"},
		Log:    LogConfig{Level: "info", Format: "console"},
	}
}

func GetConfigDir() (string, error) {
	xdgHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(xdgHome, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config at path. A missing file yields Default().
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return parse(b)
}

func parse(b []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Policy = cfg.Policy.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the policy and the provider selections.
func (c *Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch c.TaskSource {
	case "graph", "google", "taskwarrior", "orgmode", "local":
	default:
		return errs.NewConfigError("task_source", "unknown source %q", c.TaskSource)
	}
	switch c.Calendar.Provider {
	case "graph", "google":
	default:
		return errs.NewConfigError("calendar.provider", "unknown provider %q", c.Calendar.Provider)
	}
	if c.TaskSource == "orgmode" && len(c.Org.Files) == 0 {
		return errs.NewConfigError("org.files", "orgmode source needs at least one file")
	}
	return nil
}

// Save writes cfg to path, creating the directory when needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	return os.Rename(tmp, path)
}
