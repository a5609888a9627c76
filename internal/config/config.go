// Package config loads and validates the pipeline configuration.
//
// All environment coupling lives here: service endpoints, credentials,
// bucket and directory names, and the policy knobs (join type,
// imputation strategy) that are fixed explicitly per run rather than
// inferred from the data.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lmoraga/lakeflow/internal/fault"
)

// Config is the complete pipeline configuration.
type Config struct {
	// Input locates the raw files and external analysis results.
	Input InputConfig `yaml:"input"`

	// ObjectStore connects the bucket-per-tier object store backend.
	ObjectStore ObjectStoreConfig `yaml:"object_store"`

	// DFS connects the distributed-filesystem mirror backend.
	DFS DFSConfig `yaml:"dfs"`

	// Pipeline holds the per-run policy knobs.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Gateway tunes backend call behavior.
	Gateway GatewayConfig `yaml:"gateway"`
}

// InputConfig locates local input files.
type InputConfig struct {
	// WeatherFile and TrafficFile are the raw CSV inputs.
	WeatherFile string `yaml:"weather_file"`
	TrafficFile string `yaml:"traffic_file"`

	// ResultsDir holds externally produced analysis outputs to upload
	// into the results tier. Empty disables the results intake.
	ResultsDir string `yaml:"results_dir"`
}

// ObjectStoreConfig connects the object store.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// Buckets names the bucket backing each object-store tier.
	Buckets BucketsConfig `yaml:"buckets"`
}

// BucketsConfig names the bucket per object-store tier.
type BucketsConfig struct {
	Raw     string `yaml:"raw"`
	Cleaned string `yaml:"cleaned"`
	Results string `yaml:"results"`
}

// DFSConfig connects the distributed filesystem.
type DFSConfig struct {
	Namenode string `yaml:"namenode"`
	User     string `yaml:"user"`
	Root     string `yaml:"root"`
}

// PipelineConfig holds per-run policy knobs.
type PipelineConfig struct {
	// Join is the merge policy: inner or left.
	Join string `yaml:"join"`

	// Imputation is the numeric null-fill strategy: median or mean.
	Imputation string `yaml:"imputation"`

	// UploadWorkers bounds concurrent per-artifact uploads within a
	// write phase.
	UploadWorkers int `yaml:"upload_workers"`
}

// GatewayConfig tunes backend calls.
type GatewayConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig bounds the transient-error retry loop.
type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// Environment variables overriding object-store credentials, so secrets
// can stay out of config files.
const (
	EnvAccessKey = "LAKEFLOW_ACCESS_KEY"
	EnvSecretKey = "LAKEFLOW_SECRET_KEY"
)

// DefaultConfig returns the default configuration, matching the local
// development deployment.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			WeatherFile: "data/london_weather.csv",
			TrafficFile: "data/london_traffic.csv",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9002",
			Buckets: BucketsConfig{
				Raw:     "bronze",
				Cleaned: "silver",
				Results: "gold",
			},
		},
		DFS: DFSConfig{
			Namenode: "localhost:8020",
			User:     "root",
			Root:     "/bigdata",
		},
		Pipeline: PipelineConfig{
			Join:          "inner",
			Imputation:    "median",
			UploadWorkers: 4,
		},
		Gateway: GatewayConfig{
			CallTimeout: 30 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:   3,
				InitialDelay:  500 * time.Millisecond,
				MaxDelay:      5 * time.Second,
				BackoffFactor: 2.0,
			},
		},
	}
}

// Load reads a YAML config file over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAccessKey); v != "" {
		c.ObjectStore.AccessKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		c.ObjectStore.SecretKey = v
	}
}

// ApplyEnv applies environment overrides; exported for callers that
// build a Config without Load.
func (c *Config) ApplyEnv() { c.applyEnv() }

// Fault wraps a validation message as a startup configuration error.
func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", fault.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
