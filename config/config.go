// Package config provides Viper-based configuration management for simbench
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"simbench/embedder"
	"simbench/logging"
	"simbench/types"
	"simbench/utils"
)

// Config represents the complete simbench configuration
type Config struct {
	Experiment ExperimentConfig `mapstructure:"experiment"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
	Session    SessionConfig    `mapstructure:"session"`
	Chart      ChartConfig      `mapstructure:"chart"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// ExperimentConfig describes the directory tree under the experiment root
type ExperimentConfig struct {
	Root       string            `mapstructure:"root"`
	Trials     []string          `mapstructure:"trials"`
	Models     []string          `mapstructure:"models"`
	Conditions []types.Condition `mapstructure:"conditions"`
}

// EmbedderConfig selects and tunes the vision model
type EmbedderConfig struct {
	Backend   string        `mapstructure:"backend"`
	Model     string        `mapstructure:"model"`
	Config    string        `mapstructure:"config"`
	Layer     string        `mapstructure:"layer"`
	InputSize int           `mapstructure:"input_size"`
	Mean      []float64     `mapstructure:"mean"`
	Std       []float64     `mapstructure:"std"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
}

// SessionConfig contains the session store settings
type SessionConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ChartConfig contains chart canvas settings in inches
type ChartConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	Legend bool    `mapstructure:"legend"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

// Backends understood by the embedder factory
const (
	BackendDNN    = "dnn"
	BackendRemote = "remote"
)

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".simbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/simbench")
	}

	// SIMBENCH_EMBEDDER_BACKEND overrides embedder.backend
	v.SetEnvPrefix("SIMBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures the values of the published experiment
func setDefaults(v *viper.Viper) {
	v.SetDefault("experiment.root", ".")
	v.SetDefault("experiment.trials", []string{"Test 1", "Test 2"})
	v.SetDefault("experiment.models", []string{"sd 1.5", "sd 2.1", "SDXL", "Flux"})
	v.SetDefault("experiment.conditions", []map[string]any{
		{"name": "Fixed", "title": "Fixed Seed", "y_min": 0.98, "y_max": 1.0, "y_step": 0.001},
		{"name": "Increment", "title": "Increment Seed", "y_min": 0.2, "y_max": 0.8, "y_step": 0.05},
		{"name": "Random", "title": "Random Seed", "y_min": 0.2, "y_max": 0.8, "y_step": 0.05},
	})

	dnn := embedder.DefaultDNNConfig(utils.GetDefaultModelPath())
	v.SetDefault("embedder.backend", BackendDNN)
	v.SetDefault("embedder.model", dnn.Model)
	v.SetDefault("embedder.config", "")
	v.SetDefault("embedder.layer", dnn.Layer)
	v.SetDefault("embedder.input_size", dnn.InputSize)
	v.SetDefault("embedder.mean", dnn.Mean[:])
	v.SetDefault("embedder.std", dnn.Std[:])
	v.SetDefault("embedder.url", "http://127.0.0.1:5000/extract_features")
	v.SetDefault("embedder.timeout", "30s")
	v.SetDefault("embedder.cache_size", 256)

	v.SetDefault("session.dsn", ":memory:")

	v.SetDefault("chart.width", 10.0)
	v.SetDefault("chart.height", 6.0)
	v.SetDefault("chart.legend", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	v.SetDefault("output.colors", true)
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	exp := cfg.Experiment
	if len(exp.Trials) != 2 {
		return fmt.Errorf("experiment.trials: expected 2 trials, got %d", len(exp.Trials))
	}
	if exp.Trials[0] == "" || exp.Trials[1] == "" || exp.Trials[0] == exp.Trials[1] {
		return fmt.Errorf("experiment.trials: need two distinct non-empty names, got %q", exp.Trials)
	}
	if len(exp.Models) == 0 {
		return fmt.Errorf("experiment.models: at least one model is required")
	}
	if len(exp.Conditions) == 0 {
		return fmt.Errorf("experiment.conditions: at least one condition is required")
	}

	seen := make(map[string]bool)
	for i, c := range exp.Conditions {
		if c.Name == "" {
			return fmt.Errorf("experiment.conditions[%d].name: must not be empty", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("experiment.conditions[%d].name: duplicate condition %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Axis.Min >= c.Axis.Max {
			return fmt.Errorf("experiment.conditions[%d].y_min: %g must be below y_max %g", i, c.Axis.Min, c.Axis.Max)
		}
		if c.Axis.Step <= 0 {
			return fmt.Errorf("experiment.conditions[%d].y_step: must be positive, got %g", i, c.Axis.Step)
		}
	}

	emb := cfg.Embedder
	switch emb.Backend {
	case BackendDNN:
		if emb.Model == "" {
			return fmt.Errorf("embedder.model: required for the dnn backend")
		}
	case BackendRemote:
		if emb.URL == "" {
			return fmt.Errorf("embedder.url: required for the remote backend")
		}
		if emb.Timeout <= 0 {
			return fmt.Errorf("embedder.timeout: must be positive, got %v", emb.Timeout)
		}
	default:
		return fmt.Errorf("embedder.backend: invalid backend %q (must be dnn or remote)", emb.Backend)
	}
	if emb.InputSize <= 0 {
		return fmt.Errorf("embedder.input_size: must be positive, got %d", emb.InputSize)
	}
	if len(emb.Mean) != 3 {
		return fmt.Errorf("embedder.mean: expected 3 values, got %d", len(emb.Mean))
	}
	if len(emb.Std) != 3 {
		return fmt.Errorf("embedder.std: expected 3 values, got %d", len(emb.Std))
	}
	for _, s := range emb.Std {
		if s == 0 {
			return fmt.Errorf("embedder.std: values must be non-zero")
		}
	}
	if emb.CacheSize < 0 {
		return fmt.Errorf("embedder.cache_size: must not be negative, got %d", emb.CacheSize)
	}

	if cfg.Chart.Width <= 0 || cfg.Chart.Height <= 0 {
		return fmt.Errorf("chart.width/chart.height: must be positive, got %gx%g", cfg.Chart.Width, cfg.Chart.Height)
	}

	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// Condition returns the configured condition with the given name
func (c *Config) Condition(name string) (types.Condition, bool) {
	for _, cond := range c.Experiment.Conditions {
		if strings.EqualFold(cond.Name, name) {
			return cond, true
		}
	}
	return types.Condition{}, false
}

// ConditionNames returns the configured condition names in order
func (c *Config) ConditionNames() []string {
	names := make([]string, len(c.Experiment.Conditions))
	for i, cond := range c.Experiment.Conditions {
		names[i] = cond.Name
	}
	return names
}

// TrialNames returns the two trial directory names
func (c *Config) TrialNames() [2]string {
	return [2]string{c.Experiment.Trials[0], c.Experiment.Trials[1]}
}

// MeanStd returns the normalisation statistics as fixed arrays
func (e EmbedderConfig) MeanStd() (mean, std [3]float64) {
	copy(mean[:], e.Mean)
	copy(std[:], e.Std)
	return mean, std
}
