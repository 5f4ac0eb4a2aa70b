package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stojg/gradient/descent"
)

// Config describes one gradient descent session and where its charts go.
type Config struct {
	Data                    descent.Dataset `yaml:"data"`
	descent.Hyperparameters `yaml:",inline"`
	MaxIterations           int           `yaml:"max_iterations"`
	Steps                   int           `yaml:"steps"` // steps taken when not playing
	Play                    bool          `yaml:"play"`
	Interval                time.Duration `yaml:"interval"`

	Surface    Surface           `yaml:"surface"`
	Output     Output            `yaml:"output"`
	CloudWatch *CloudWatchSource `yaml:"cloudwatch,omitempty"`
}

// Surface is the slope range sampled for the error surface chart.
type Surface struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

type Output struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // png, svg, pdf
	Bucket string `yaml:"bucket,omitempty"`
	Region string `yaml:"region"`
}

// CloudWatchSource pairs two metrics minute by minute into a dataset.
type CloudWatchSource struct {
	Namespace      string        `yaml:"namespace"`
	XMetric        string        `yaml:"x_metric"`
	YMetric        string        `yaml:"y_metric"`
	DimensionName  string        `yaml:"dimension_name"`
	DimensionValue string        `yaml:"dimension_value"`
	Statistic      string        `yaml:"statistic"`
	Span           time.Duration `yaml:"span"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{Hyperparameters: descent.DefaultHyperparameters()}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads a YAML config file and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if len(cfg.Data) == 0 && cfg.CloudWatch == nil {
		cfg.Data = descent.DefaultDataset()
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = descent.DefaultLearningRate
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = descent.DefaultMaxIterations
	}
	if cfg.Steps == 0 {
		cfg.Steps = cfg.MaxIterations + 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = descent.DefaultInterval
	}
	if cfg.Surface.Step == 0 {
		cfg.Surface = Surface{Min: -1, Max: 4.5, Step: 0.1}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "png"
	}
	if cfg.Output.Region == "" {
		cfg.Output.Region = "ap-southeast-2"
	}
	if cw := cfg.CloudWatch; cw != nil {
		if cw.Statistic == "" {
			cw.Statistic = "Sum"
		}
		if cw.Span == 0 {
			cw.Span = Day
		}
	}
}

// Validate reports settings that would make a session impossible to run.
func (cfg *Config) Validate() error {
	if err := cfg.Hyperparameters.Validate(); err != nil {
		return err
	}
	if cfg.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative, got %d", cfg.MaxIterations)
	}
	if cfg.Surface.Step <= 0 || cfg.Surface.Max < cfg.Surface.Min {
		return fmt.Errorf("invalid surface range [%v, %v] step %v", cfg.Surface.Min, cfg.Surface.Max, cfg.Surface.Step)
	}
	switch cfg.Output.Format {
	case "png", "svg", "pdf", "jpg", "jpeg", "tif", "tiff", "eps":
	default:
		return fmt.Errorf("unsupported image format %q", cfg.Output.Format)
	}
	if cw := cfg.CloudWatch; cw != nil {
		if cw.Namespace == "" || cw.XMetric == "" || cw.YMetric == "" {
			return fmt.Errorf("cloudwatch source needs namespace, x_metric and y_metric")
		}
	} else if len(cfg.Data) == 0 {
		return descent.ErrEmptyDataset
	}
	return nil
}
