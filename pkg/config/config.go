// Package config loads effitime's YAML configuration from
// ~/.config/effitime/config.yaml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/oracle"
)

const (
	xdgAppName = "effitime"
	configFile = "config.yaml"
	dbFile     = "effitime.db"

	// DefaultUser owns tasks created from the CLI.
	DefaultUser = "local"
)

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

type Oracle struct {
	Endpoint       string   `yaml:"endpoint"`
	Model          string   `yaml:"model"`
	APIKey         string   `yaml:"api_key,omitempty"`
	MaxRetries     int      `yaml:"max_retries"`
	Timeout        Duration `yaml:"timeout"`
	AttemptTimeout Duration `yaml:"attempt_timeout,omitempty"`
	Temperature    float64  `yaml:"temperature"`
	Debug          bool     `yaml:"debug"`
	SiteURL        string   `yaml:"site_url"`
	Title          string   `yaml:"title"`
}

type Scheduling struct {
	// Horizon bounds the search for tasks without a deadline.
	Horizon  Duration `yaml:"horizon"`
	LeadTime Duration `yaml:"lead_time"`
	WakeUp   string   `yaml:"wake_up"`
	BedTime  string   `yaml:"bed_time"`
}

type Store struct {
	Path string `yaml:"path"`
}

type Calendar struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

type Config struct {
	User       string     `yaml:"user"`
	Oracle     Oracle     `yaml:"oracle"`
	Scheduling Scheduling `yaml:"scheduling"`
	Store      Store      `yaml:"store"`
	Calendar   Calendar   `yaml:"calendar"`
}

// Dir returns ~/.config/effitime.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// Path returns the config file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		User: DefaultUser,
		Oracle: Oracle{
			Endpoint:    oracle.DefaultEndpoint,
			Model:       oracle.DefaultModel,
			MaxRetries:  oracle.DefaultMaxAttempts,
			Timeout:     Duration(oracle.DefaultTimeout),
			Temperature: oracle.DefaultTemperature,
			SiteURL:     "http://localhost",
			Title:       "effitime",
		},
		Scheduling: Scheduling{
			Horizon:  Duration(168 * time.Hour),
			LeadTime: Duration(30 * time.Minute),
			WakeUp:   "08:00",
			BedTime:  "23:00",
		},
		Store:    Store{Path: filepath.Join(dir, dbFile)},
		Calendar: Calendar{Name: "primary"},
	}
}

// Load reads the config at path over the defaults for dir and applies
// environment overrides. A missing file yields the defaults.
func Load(dir, path string) (*Config, error) {
	cfg := Default(dir)
	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Oracle.APIKey = key
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if url := os.Getenv("OPENROUTER_URL"); url != "" {
		c.Oracle.Endpoint = url
	}
	if v := os.Getenv("OPENROUTER_DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Oracle.Debug = debug
		}
	}
	if path := os.Getenv("EFFITIME_DB"); path != "" {
		c.Store.Path = path
	}
}

// Validate rejects values the scheduler cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.User) == "" {
		return fmt.Errorf("user is empty")
	}
	if c.Oracle.MaxRetries < 1 {
		return fmt.Errorf("oracle.max_retries must be at least 1, got %d", c.Oracle.MaxRetries)
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}
	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 2 {
		return fmt.Errorf("oracle.temperature %.2f is outside [0, 2]", c.Oracle.Temperature)
	}
	if c.Scheduling.Horizon <= 0 {
		return fmt.Errorf("scheduling.horizon must be positive")
	}
	if c.Scheduling.LeadTime < 0 {
		return fmt.Errorf("scheduling.lead_time must not be negative")
	}
	if _, err := biorhythm.ParseClock(c.Scheduling.WakeUp); err != nil {
		return fmt.Errorf("scheduling.wake_up: %w", err)
	}
	if _, err := biorhythm.ParseClock(c.Scheduling.BedTime); err != nil {
		return fmt.Errorf("scheduling.bed_time: %w", err)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is empty")
	}
	return nil
}

// OracleConfig returns the OpenRouter client settings.
func (c *Config) OracleConfig() oracle.Config {
	return oracle.Config{
		Endpoint:    c.Oracle.Endpoint,
		Model:       c.Oracle.Model,
		APIKey:      c.Oracle.APIKey,
		Timeout:     c.Oracle.Timeout.Std(),
		Temperature: c.Oracle.Temperature,
		SiteURL:     c.Oracle.SiteURL,
		Title:       c.Oracle.Title,
		Debug:       c.Oracle.Debug,
	}
}

// Save writes cfg to path. The API key is left out when it came from the
// environment so it is never copied to disk.
func Save(path string, cfg *Config) error {
	out := *cfg
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && key == out.Oracle.APIKey {
		out.Oracle.APIKey = ""
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	b, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
