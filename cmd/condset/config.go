package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/condset"
)

// Config is the YAML configuration of a run.
type Config struct {
	Panel  PanelConfig  `yaml:"panel"`
	Index  IndexConfig  `yaml:"index"`
	Jobs   JobsConfig   `yaml:"jobs"`
	Output OutputConfig `yaml:"output"`
	Store  StoreConfig  `yaml:"store"`
}

// PanelConfig shapes the simulated panel.
type PanelConfig struct {
	Individuals int     `yaml:"individuals"`
	Sites       int     `yaml:"sites"`
	Seed        int64   `yaml:"seed"`
	MissingRate float64 `yaml:"missing_rate"`
	CMPerSite   float64 `yaml:"cm_per_site"`
}

// IndexConfig configures the conditioning set.
type IndexConfig struct {
	Depth           int     `yaml:"depth"`
	ModuloSelection float64 `yaml:"modulo_selection"`
	MAC             int     `yaml:"mac"`
	MDR             float64 `yaml:"mdr"`
	MemoryLimit     int64   `yaml:"memory_limit"`
	// Snapshot restores the neighbor table instead of building it.
	Snapshot string `yaml:"snapshot"`
}

// JobsConfig configures state assembly.
type JobsConfig struct {
	Workers          int           `yaml:"workers"`
	MinWindowSize    float64       `yaml:"min_window_size"`
	IBD2Threshold    float64       `yaml:"ibd2_threshold"`
	RandomStates     int           `yaml:"random_states"`
	MinStates        int           `yaml:"min_states"`
	Seed             uint64        `yaml:"seed"`
	MaxTransitions   int           `yaml:"max_transitions"`
	MaxMissing       int           `yaml:"max_missing"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// OutputConfig names the files written by a run.
type OutputConfig struct {
	Snapshot    string `yaml:"snapshot"`
	Compression string `yaml:"compression"`
	Metrics     string `yaml:"metrics"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// StoreConfig configures remote snapshot locations. Credentials for s3://
// come from the default AWS chain; minio:// uses the static keys below.
type StoreConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Panel: PanelConfig{
			Individuals: 200,
			Sites:       5000,
			Seed:        42,
			CMPerSite:   0.002,
		},
		Index: IndexConfig{
			Depth:           condset.DefaultDepth,
			ModuloSelection: condset.DefaultModuloSelection,
			MAC:             condset.DefaultMAC,
			MDR:             condset.DefaultMDR,
		},
		Jobs: JobsConfig{
			Workers:          4,
			MinWindowSize:    2.0,
			IBD2Threshold:    condset.DefaultIBD2Threshold,
			RandomStates:     condset.DefaultRandomStates,
			MinStates:        condset.DefaultMinStates,
			Seed:             1,
			ProgressInterval: 5 * time.Second,
		},
		Output: OutputConfig{
			Compression: "zstd",
			LogLevel:    "info",
			LogFormat:   "text",
		},
	}
}

// LoadConfig reads path over DefaultConfig. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields the library does not check itself.
func (c Config) Validate() error {
	var errs []error
	if c.Panel.Individuals < 2 {
		errs = append(errs, fmt.Errorf("panel.individuals must be at least 2, got %d", c.Panel.Individuals))
	}
	if c.Panel.Sites <= 0 {
		errs = append(errs, fmt.Errorf("panel.sites must be positive, got %d", c.Panel.Sites))
	}
	if c.Jobs.Workers <= 0 {
		errs = append(errs, fmt.Errorf("jobs.workers must be positive, got %d", c.Jobs.Workers))
	}
	if _, err := condset.ParseCompression(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}
	for _, loc := range []string{c.Index.Snapshot, c.Output.Snapshot} {
		if loc == "" {
			continue
		}
		l, err := parseLocation(loc)
		if err != nil {
			errs = append(errs, err)
		} else if l.scheme == "minio" && c.Store.Endpoint == "" {
			errs = append(errs, fmt.Errorf("store.endpoint is required for %s", loc))
		}
	}
	if _, err := c.logLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Output.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("output.log_format must be text or json, got %q", c.Output.LogFormat))
	}
	return errors.Join(errs...)
}

func (c Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Output.LogLevel)); err != nil {
		return level, fmt.Errorf("output.log_level: %w", err)
	}
	return level, nil
}

func (c Config) logger() *condset.Logger {
	level, _ := c.logLevel()
	if c.Output.LogFormat == "json" {
		return condset.NewJSONLogger(level)
	}
	return condset.NewTextLogger(level)
}
