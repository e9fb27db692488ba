// Package config loads uniqwords settings.
//
// Priority: defaults, then the YAML file, then environment variables:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("uniqwords.yaml").
//	    WithEnvPrefix("UNIQWORDS").
//	    Load()
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/threadedstream/uniqwords/internal/mr"
	"github.com/threadedstream/uniqwords/internal/pkg/loader"
)

// Config is the complete uniqwords configuration.
type Config struct {
	// Workers is the number of chunks, and of concurrent workers.
	Workers int `yaml:"workers"`
	// Strategy is one of local, tree, shared, sharded.
	Strategy string `yaml:"strategy"`
	// Boundary is one of align, fragment.
	Boundary string `yaml:"boundary"`
	// Shards is only used by the sharded strategy.
	Shards int `yaml:"shards"`
	// Timeout bounds a whole run. Zero means no deadline.
	Timeout time.Duration `yaml:"timeout"`

	Input   InputConfig   `yaml:"input"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type InputConfig struct {
	// Mode is one of auto, mmap, stream.
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: json, console
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	// Textfile, when set, receives the metrics in Prometheus text format
	// after every run, for node_exporter's textfile collector.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with one worker per CPU.
func DefaultConfig() *Config {
	return &Config{
		Workers:  runtime.NumCPU(),
		Strategy: string(mr.StrategyLocalMerge),
		Boundary: string(mr.BoundaryAlign),
		Shards:   mr.DefaultShards,
		Input: InputConfig{
			Mode: string(loader.ModeAuto),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Namespace: "uniqwords",
		},
	}
}

// Validate checks every enumerated field and the numeric ranges.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Workers > mr.MaxWorkers {
		return fmt.Errorf("%w: workers must not exceed %d, got %d", mr.ErrInvalidArgument, mr.MaxWorkers, c.Workers)
	}
	if _, err := mr.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := mr.ParseBoundary(c.Boundary); err != nil {
		return err
	}
	if c.Shards < 0 {
		return fmt.Errorf("shards must not be negative, got %d", c.Shards)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := loader.ParseMode(c.Input.Mode); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics namespace must be set when metrics are enabled")
	}
	return nil
}

// Loader builds a Config from defaults, a YAML file and the environment.
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{
		envPrefix: "UNIQWORDS",
		lookupEnv: os.LookupEnv,
	}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load returns the merged and validated configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"STRATEGY":          &cfg.Strategy,
		"BOUNDARY":          &cfg.Boundary,
		"INPUT_MODE":        &cfg.Input.Mode,
		"LOG_LEVEL":         &cfg.Log.Level,
		"LOG_FORMAT":        &cfg.Log.Format,
		"METRICS_NAMESPACE": &cfg.Metrics.Namespace,
		"METRICS_TEXTFILE":  &cfg.Metrics.Textfile,
	}
	for key, dst := range strs {
		if v, ok := l.env(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS": &cfg.Workers,
		"SHARDS":  &cfg.Shards,
	}
	for key, dst := range ints {
		if v, ok := l.env(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", l.name(key), err)
			}
			*dst = n
		}
	}

	if v, ok := l.env("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", l.name("TIMEOUT"), err)
		}
		cfg.Timeout = d
	}
	if v, ok := l.env("METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", l.name("METRICS_ENABLED"), err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}

func (l *Loader) name(key string) string {
	if l.envPrefix == "" {
		return key
	}
	return strings.ToUpper(l.envPrefix) + "_" + key
}

func (l *Loader) env(key string) (string, bool) {
	v, ok := l.lookupEnv(l.name(key))
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
