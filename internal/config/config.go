// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Host modes select how the live page and chat history are reached.
const (
	HostModeFile    = "file"    // saved page + JSONL chat log on disk
	HostModeHTTP    = "http"    // plain HTTP fetch of the page
	HostModeRender  = "render"  // one-shot headless render per refresh
	HostModeBrowser = "browser" // attached Chrome over DevTools
)

// Storage drivers understood by store.Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the terminal configuration that can be loaded from a JSON
// or YAML file. Missing values are filled by MergeWithDefaults.
type Config struct {
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Host    HostConfig    `json:"host" yaml:"host"`
	Refresh RefreshConfig `json:"refresh" yaml:"refresh"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Officer OfficerConfig `json:"officer" yaml:"officer"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"` // Print detailed debug information
}

// StorageConfig selects the snapshot/preference backend.
type StorageConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty" validate:"omitempty,oneof=memory sqlite postgres"`
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"` // file path for sqlite, URL for postgres
}

// HostConfig describes where the chat host lives.
type HostConfig struct {
	Mode         string   `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=file http render browser"`
	PageURL      string   `json:"page_url,omitempty" yaml:"page_url,omitempty" validate:"omitempty,url"`
	PageFile     string   `json:"page_file,omitempty" yaml:"page_file,omitempty"`
	ChatLog      string   `json:"chat_log,omitempty" yaml:"chat_log,omitempty"`
	DevToolsURL  string   `json:"devtools_url,omitempty" yaml:"devtools_url,omitempty"`
	PollInterval Duration `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// RefreshConfig tunes the refresh controller.
type RefreshConfig struct {
	Debounce    Duration          `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	Timeout     Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RunTimeout  Duration          `json:"run_timeout,omitempty" yaml:"run_timeout,omitempty"`
	Commands    map[string]string `json:"commands,omitempty" yaml:"commands,omitempty" validate:"omitempty,dive,keys,oneof=map monitor news,endkeys,required"`
	MapKeywords []string          `json:"map_keywords,omitempty" yaml:"map_keywords,omitempty" validate:"omitempty,dive,required"`
}

// ServerConfig configures the companion HTTP API.
type ServerConfig struct {
	Addr        string   `json:"addr,omitempty" yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// OfficerConfig holds the single officer login.
type OfficerConfig struct {
	Badge        string `json:"badge,omitempty" yaml:"badge,omitempty"`
	PasscodeHash string `json:"passcode_hash,omitempty" yaml:"passcode_hash,omitempty"` // bcrypt, see hash-passcode
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(".police_terminal", "terminal.db"),
		},
		Host: HostConfig{
			Mode:         HostModeFile,
			PollInterval: Duration(time.Second),
		},
		Refresh: RefreshConfig{
			Debounce:   Duration(100 * time.Millisecond),
			Timeout:    Duration(60 * time.Second),
			RunTimeout: Duration(30 * time.Second),
			Commands: map[string]string{
				"map":     "@查看地图",
				"monitor": "@查看监控",
				"news":    "@查看新闻",
			},
			MapKeywords: []string{"位置", "所在地"},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Officer: OfficerConfig{
			Badge: "0451",
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	for name, d := range map[string]Duration{
		"host.poll_interval":  c.Host.PollInterval,
		"refresh.debounce":    c.Refresh.Debounce,
		"refresh.timeout":     c.Refresh.Timeout,
		"refresh.run_timeout": c.Refresh.RunTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("config error: '%s' must be non-negative", name)
		}
	}

	switch c.Host.Mode {
	case HostModeHTTP, HostModeRender:
		if c.Host.PageURL == "" {
			return fmt.Errorf("config error: host mode %q requires 'page_url'", c.Host.Mode)
		}
	case HostModeBrowser:
		if c.Host.DevToolsURL == "" && c.Host.PageURL == "" {
			return fmt.Errorf("config error: host mode %q requires 'devtools_url' or 'page_url'", c.Host.Mode)
		}
	}

	// Validate file paths exist (if specified)
	if c.Host.PageFile != "" {
		if _, err := os.Stat(c.Host.PageFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: page file not found: %s", c.Host.PageFile)
		}
	}

	if c.Storage.Driver == DriverPostgres && c.Storage.DSN == "" {
		return fmt.Errorf("config error: postgres storage requires 'dsn'")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Storage.Driver == "" {
		result.Storage.Driver = defaults.Storage.Driver
		// A DSN only makes sense for the driver it was written for.
		if result.Storage.DSN == "" {
			result.Storage.DSN = defaults.Storage.DSN
		}
	}
	if result.Host.Mode == "" {
		result.Host.Mode = defaults.Host.Mode
	}
	if result.Host.PageURL == "" {
		result.Host.PageURL = defaults.Host.PageURL
	}
	if result.Host.PageFile == "" {
		result.Host.PageFile = defaults.Host.PageFile
	}
	if result.Host.ChatLog == "" {
		result.Host.ChatLog = defaults.Host.ChatLog
	}
	if result.Host.DevToolsURL == "" {
		result.Host.DevToolsURL = defaults.Host.DevToolsURL
	}
	if result.Server.Addr == "" {
		result.Server.Addr = defaults.Server.Addr
	}
	if result.Officer.Badge == "" {
		result.Officer.Badge = defaults.Officer.Badge
	}
	if result.Officer.PasscodeHash == "" {
		result.Officer.PasscodeHash = defaults.Officer.PasscodeHash
	}

	// Durations: use default if zero
	if result.Host.PollInterval == 0 {
		result.Host.PollInterval = defaults.Host.PollInterval
	}
	if result.Refresh.Debounce == 0 {
		result.Refresh.Debounce = defaults.Refresh.Debounce
	}
	if result.Refresh.Timeout == 0 {
		result.Refresh.Timeout = defaults.Refresh.Timeout
	}
	if result.Refresh.RunTimeout == 0 {
		result.Refresh.RunTimeout = defaults.Refresh.RunTimeout
	}

	// Commands merge per panel so a file can override just one
	commands := make(map[string]string, len(defaults.Refresh.Commands))
	for k, v := range defaults.Refresh.Commands {
		commands[k] = v
	}
	for k, v := range result.Refresh.Commands {
		commands[k] = v
	}
	result.Refresh.Commands = commands

	if len(result.Refresh.MapKeywords) == 0 {
		result.Refresh.MapKeywords = defaults.Refresh.MapKeywords
	}
	if len(result.Server.CORSOrigins) == 0 {
		result.Server.CORSOrigins = defaults.Server.CORSOrigins
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Duration is a time.Duration written as "250ms" or "1m" in config files.
// Bare numbers are read as milliseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val * float64(time.Millisecond)))
	case int:
		*d = Duration(time.Duration(val) * time.Millisecond)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
