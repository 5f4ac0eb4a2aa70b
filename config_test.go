package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stojg/gradient/descent"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
data:
  - {x: 1, y: 2}
  - {x: 2, y: 4}
initial_slope: 0.5
learning_rate: 0.05
max_iterations: 10
interval: 250ms
surface: {min: 0, max: 3, step: 0.5}
output: {dir: charts, format: svg}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Data) != 2 || cfg.Data[1] != (descent.Point{X: 2, Y: 4}) {
		t.Errorf("data = %v", cfg.Data)
	}
	if cfg.InitialSlope != 0.5 || cfg.LearningRate != 0.05 {
		t.Errorf("hyperparameters = %+v", cfg.Hyperparameters)
	}
	if cfg.MaxIterations != 10 || cfg.Steps != 11 {
		t.Errorf("max_iterations %d steps %d", cfg.MaxIterations, cfg.Steps)
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("interval = %v", cfg.Interval)
	}
	if cfg.Surface != (Surface{Min: 0, Max: 3, Step: 0.5}) {
		t.Errorf("surface = %+v", cfg.Surface)
	}
	if cfg.Output.Dir != "charts" || cfg.Output.Format != "svg" || cfg.Output.Region != "ap-southeast-2" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := DefaultConfig()
	if len(cfg.Data) != len(want.Data) || cfg.Hyperparameters != want.Hyperparameters {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
	if cfg.MaxIterations != descent.DefaultMaxIterations || cfg.Interval != descent.DefaultInterval {
		t.Errorf("max_iterations %d interval %v", cfg.MaxIterations, cfg.Interval)
	}
	if cfg.Surface != (Surface{Min: -1, Max: 4.5, Step: 0.1}) {
		t.Errorf("surface = %+v", cfg.Surface)
	}
}

func TestLoadConfigCloudWatch(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
cloudwatch:
  namespace: SS
  x_metric: apache.requests
  y_metric: cpu.count
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Data) != 0 {
		t.Errorf("default data filled in for a cloudwatch source: %v", cfg.Data)
	}
	if cfg.CloudWatch.Statistic != "Sum" || cfg.CloudWatch.Span != Day {
		t.Errorf("cloudwatch = %+v", cfg.CloudWatch)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := LoadConfig(writeConfig(t, "data: [")); err == nil {
		t.Error("bad yaml parsed")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"negative rate", func(c *Config) { c.LearningRate = -1 }, descent.ErrLearningRate},
		{"no data", func(c *Config) { c.Data = nil }, descent.ErrEmptyDataset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}

	bad := []func(*Config){
		func(c *Config) { c.MaxIterations = -1 },
		func(c *Config) { c.Surface.Step = -0.1 },
		func(c *Config) { c.Output.Format = "bmp" },
		func(c *Config) { c.CloudWatch = &CloudWatchSource{Namespace: "SS"} },
	}
	for i, modify := range bad {
		cfg := DefaultConfig()
		modify(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: Validate passed", i)
		}
	}
}
