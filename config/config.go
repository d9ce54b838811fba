// Package config loads sitegraph settings from YAML.
//
// Config file locations (priority order):
//  1. $SITEGRAPH_CONFIG
//  2. ./sitegraph.yaml
//  3. ~/.config/sitegraph/config.yaml
//
// Keys missing from the file keep their default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/sitegraph/physics"
)

const (
	// EnvConfigPath names the environment variable holding an explicit config path
	EnvConfigPath = "SITEGRAPH_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "sitegraph.yaml"
	// ConfigDirName is the directory under ~/.config
	ConfigDirName = "sitegraph"
)

var validate = validator.New()

// Config is the full configuration
type Config struct {
	Layout LayoutConfig `yaml:"layout"`
	Driver DriverConfig `yaml:"driver"`
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// LayoutConfig holds the physics parameters and initial placement
type LayoutConfig struct {
	RepulsiveK  float64 `yaml:"repulsive_k"`
	AttractiveK float64 `yaml:"attractive_k"`
	Margin      float64 `yaml:"margin" validate:"gte=0,lt=1"`
	Smoothing   float64 `yaml:"smoothing" validate:"gt=0,lte=1"`
	Workers     int     `yaml:"workers" validate:"gte=0"`
	Placement   string  `yaml:"placement" validate:"oneof=uniform noise"`
	// Seed 0 means seed from the clock
	Seed int64 `yaml:"seed"`
}

// DriverConfig controls the live stepping loop
type DriverConfig struct {
	Tick            Duration `yaml:"tick" validate:"gt=0"`
	MaxSteps        int      `yaml:"max_steps" validate:"gte=0"`
	CheckpointEvery int      `yaml:"checkpoint_every" validate:"gte=0"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// StoreConfig holds checkpoint database settings. An empty path disables checkpoints.
type StoreConfig struct {
	Path string `yaml:"path"`
	// Keep is the number of snapshots retained per graph; 0 keeps all of them
	Keep int `yaml:"keep" validate:"gte=0"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns the settings of the original per-frame loop: 60 steps a second
func DefaultConfig() *Config {
	p := physics.DefaultParams()
	return &Config{
		Layout: LayoutConfig{
			RepulsiveK:  p.RepulsiveK,
			AttractiveK: p.AttractiveK,
			Margin:      p.Margin,
			Smoothing:   p.Smoothing,
			Workers:     1,
			Placement:   "uniform",
		},
		Driver: DriverConfig{
			Tick:            Duration(time.Second / 60),
			CheckpointEvery: 500,
		},
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Keep: 10},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load finds and loads the config file, or returns defaults if none is found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Save writes config to path, creating its directory
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyDefaults fills values a file can blank out with an empty string
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Layout.Placement == "" {
		c.Layout.Placement = def.Layout.Placement
	}
	if c.Layout.Workers == 0 {
		c.Layout.Workers = def.Layout.Workers
	}
	if c.Driver.Tick == 0 {
		c.Driver.Tick = def.Driver.Tick
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Params returns the physics parameters of the layout section
func (l LayoutConfig) Params() physics.Params {
	return physics.Params{
		RepulsiveK:  l.RepulsiveK,
		AttractiveK: l.AttractiveK,
		Margin:      l.Margin,
		Smoothing:   l.Smoothing,
	}
}

// EffectiveSeed returns Seed, or a clock-derived seed when Seed is 0
func (l LayoutConfig) EffectiveSeed() int64 {
	if l.Seed != 0 {
		return l.Seed
	}
	return time.Now().UnixNano()
}

// FindConfigPath returns the first config file that exists, or ""
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
