// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// EnvPath names the environment variable that overrides the config file location.
const EnvPath = "CHURN_CONFIG"

// DefaultPath is used when neither the flag nor EnvPath is set.
const DefaultPath = "config.yaml"

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Dataset DatasetConfig `yaml:"dataset"`
	Store   StoreConfig   `yaml:"store"`
	Model   struct {
		// AllowDegraded keeps serving health and analytics when no model
		// could be restored or trained at startup.
		AllowDegraded bool `yaml:"allow_degraded"`
	} `yaml:"model"`
	Training  TrainingConfig `yaml:"training"`
	Analytics struct {
		ProgressionTTL time.Duration `yaml:"progression_ttl"`
	} `yaml:"analytics"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DatasetConfig struct {
	// Kind is "huggingface" or "csv".
	Kind           string        `yaml:"kind"`
	Name           string        `yaml:"name"`
	Subset         string        `yaml:"subset"`
	Split          string        `yaml:"split"`
	Endpoint       string        `yaml:"endpoint"`
	Path           string        `yaml:"path"`
	Charset        string        `yaml:"charset"`
	LabelColumn    string        `yaml:"label_column"`
	PositiveLabel  string        `yaml:"positive_label"`
	TenureColumn   string        `yaml:"tenure_column"`
	ExcludeColumns []string      `yaml:"exclude_columns"`
	Timeout        time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "file".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type TrainingConfig struct {
	TestRatio     float64 `yaml:"test_ratio"`
	Seed          int64   `yaml:"seed"`
	MaxIterations int     `yaml:"max_iterations"`
	C             float64 `yaml:"c"`
	FitOnFull     *bool   `yaml:"fit_on_full"`
}

// FullCorpus reports whether the shipped classifier is refit on every row.
func (t TrainingConfig) FullCorpus() bool {
	return t.FitOnFull == nil || *t.FitOnFull
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path and fills unset fields with defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ResolvePath("")
	}
	cfg := &Config{}
	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath picks the explicit path, then $CHURN_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 5000
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 60 * time.Second
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 20
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Dataset.Kind == "" {
		c.Dataset.Kind = "huggingface"
	}
	if c.Dataset.Name == "" {
		c.Dataset.Name = "aai510-group1/telco-customer-churn"
	}
	if c.Dataset.Subset == "" {
		c.Dataset.Subset = "default"
	}
	if c.Dataset.Split == "" {
		c.Dataset.Split = "train"
	}
	if c.Dataset.LabelColumn == "" {
		c.Dataset.LabelColumn = "Churn"
	}
	if c.Dataset.PositiveLabel == "" {
		c.Dataset.PositiveLabel = "Yes"
	}
	if c.Dataset.TenureColumn == "" {
		c.Dataset.TenureColumn = "tenure"
	}
	if c.Dataset.Timeout == 0 {
		c.Dataset.Timeout = 30 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Path == "" {
		if c.Store.Driver == "file" {
			c.Store.Path = "models"
		} else {
			c.Store.Path = "churn.db"
		}
	}
	if c.Training.TestRatio == 0 {
		c.Training.TestRatio = 0.2
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = 42
	}
	if c.Training.MaxIterations == 0 {
		c.Training.MaxIterations = 1000
	}
	if c.Training.C == 0 {
		c.Training.C = 1.0
	}
}

func (c *Config) Validate() error {
	switch c.Dataset.Kind {
	case "huggingface", "csv":
	default:
		return fmt.Errorf("unsupported dataset kind %q", c.Dataset.Kind)
	}
	if c.Dataset.Kind == "csv" && c.Dataset.Path == "" {
		return errors.New("dataset.path is required for csv datasets")
	}
	switch c.Store.Driver {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio must be in (0,1), got %v", c.Training.TestRatio)
	}
	if c.Training.C <= 0 {
		return fmt.Errorf("training.c must be positive, got %v", c.Training.C)
	}
	return nil
}
