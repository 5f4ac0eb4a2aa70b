package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/lmittmann/tint"

	"github.com/stojg/gradient/descent"
)

var (
	debug         bool
	configPath    string
	dataFlag      string
	slopeFlag     float64
	rateFlag      float64
	stepsFlag     int
	playFlag      bool
	intervalFlag  time.Duration
	overrideFlag  float64
	outFlag       string
	formatFlag    string
	bucketFlag    string
	regionFlag    string
	useCloudWatch bool
)

func main() {
	flag.BoolVar(&debug, "d", false, "debug")
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&dataFlag, "data", "", "dataset as x:y pairs, e.g. \"1:2,2:4.1\"")
	flag.Float64Var(&slopeFlag, "slope", descent.DefaultInitialSlope, "initial slope")
	flag.Float64Var(&rateFlag, "rate", descent.DefaultLearningRate, "learning rate")
	flag.IntVar(&stepsFlag, "steps", 0, "number of steps to take (default: run to the last iteration)")
	flag.BoolVar(&playFlag, "play", false, "step on a timer instead of all at once")
	flag.DurationVar(&intervalFlag, "interval", descent.DefaultInterval, "delay between steps with -play")
	flag.Float64Var(&overrideFlag, "override", 0, "set the slope by hand after stepping")
	flag.StringVar(&outFlag, "out", "", "directory to write charts to")
	flag.StringVar(&formatFlag, "format", "", "chart image format")
	flag.StringVar(&bucketFlag, "bucket", "", "S3 bucket to publish charts to")
	flag.StringVar(&regionFlag, "region", "", "AWS region")
	flag.BoolVar(&useCloudWatch, "cloudwatch", false, "load the dataset from the configured CloudWatch metrics")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := newLogger(os.Stderr, level)
	slog.SetDefault(logger)

	cfg, overrides, err := loadSettings()
	if err != nil {
		logger.Error("could not load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, overrides, logger); err != nil {
		logger.Error("session failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// settingsOverride holds values that only exist on the command line.
type settingsOverride struct {
	slope    *float64
	useCW    bool
	sessions func() (*session.Session, error)
}

// loadSettings merges the config file with the flags that were set explicitly.
func loadSettings() (*Config, settingsOverride, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath); err != nil {
			return nil, settingsOverride{}, err
		}
	}

	o := settingsOverride{useCW: useCloudWatch}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Data = descent.ParseDataset(dataFlag)
		case "slope":
			cfg.InitialSlope = slopeFlag
		case "rate":
			cfg.LearningRate = rateFlag
		case "steps":
			cfg.Steps = stepsFlag
		case "play":
			cfg.Play = playFlag
		case "interval":
			cfg.Interval = intervalFlag
		case "override":
			v := overrideFlag
			o.slope = &v
		case "out":
			cfg.Output.Dir = outFlag
		case "format":
			cfg.Output.Format = formatFlag
		case "bucket":
			cfg.Output.Bucket = bucketFlag
		case "region":
			cfg.Output.Region = regionFlag
		}
	})
	if o.useCW && cfg.CloudWatch == nil {
		return nil, o, errors.New("-cloudwatch needs a cloudwatch section in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, o, err
	}

	region := cfg.Output.Region
	o.sessions = func() (*session.Session, error) {
		return session.NewSession(&aws.Config{Region: aws.String(region)})
	}
	return cfg, o, nil
}

func run(ctx context.Context, cfg *Config, o settingsOverride, logger *slog.Logger) error {
	data := cfg.Data
	if o.useCW {
		sess, err := o.sessions()
		if err != nil {
			return fmt.Errorf("could not create aws session: %w", err)
		}
		if data, err = loadCloudWatchDataset(cloudwatch.New(sess), *cfg.CloudWatch); err != nil {
			return err
		}
		logger.Info("loaded dataset from cloudwatch", "points", len(data))
	}

	ctrl, err := descent.New(data, cfg.Hyperparameters,
		descent.WithMaxIterations(cfg.MaxIterations),
		descent.WithLogger(logger),
		descent.WithObserver(stepLogger(logger)),
	)
	if err != nil {
		return err
	}

	if err := train(ctx, ctrl, cfg); err != nil {
		return err
	}
	if o.slope != nil {
		ctrl.SetSlope(*o.slope)
		logger.Info("slope set by hand", "slope", *o.slope)
	}
	printSummary(os.Stdout, ctrl)

	var publisher *chartPublisher
	if cfg.Output.Bucket != "" {
		sess, err := o.sessions()
		if err != nil {
			return fmt.Errorf("could not create aws session: %w", err)
		}
		publisher = &chartPublisher{
			svc:      s3.New(sess),
			uploader: s3manager.NewUploader(sess),
			bucket:   cfg.Output.Bucket,
			logger:   logger,
			now:      time.Now,
		}
		if err := publisher.createBucket(); err != nil {
			return err
		}
	}
	return writeCharts(ctrl, cfg, publisher, logger)
}

// train steps ctrl either all at once or on a timer, logging each step.
func train(ctx context.Context, ctrl *descent.Controller, cfg *Config) error {
	if cfg.Play {
		err := ctrl.Run(ctx, cfg.Interval)
		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted", "step", ctrl.CurrentStep())
			return nil
		}
		return err
	}
	for i := 0; i < cfg.Steps; i++ {
		if !ctrl.Step() {
			break
		}
	}
	return nil
}

// stepLogger logs each recorded step once.
func stepLogger(logger *slog.Logger) func(descent.Snapshot) {
	logged := -1
	return func(s descent.Snapshot) {
		if !s.HasLast || s.Last.Step == logged {
			return
		}
		logged = s.Last.Step
		logger.Info("step", "step", s.Last.Step, "a", s.Last.A, "mse", s.Last.MSE, "gradient", s.Last.Gradient, "next", descent.Round(s.Slope, 4))
	}
}

func printSummary(w io.Writer, ctrl *descent.Controller) {
	s := ctrl.Snapshot()
	fmt.Fprintf(w, "state: %s, step %d of %d\n", s.State, s.Step, ctrl.MaxIterations())
	fmt.Fprintf(w, "slope: %0.4f MSE: %0.4f gradient: %0.4f\n", s.Slope, s.MSE, s.Gradient)

	d, ok := ctrl.Detail()
	if !ok {
		return
	}
	fmt.Fprintf(w, "last step started at a=%0.4f, gradient %0.4f\n", d.StartSlope, d.Gradient)
	fmt.Fprintf(w, "%3s %10s %10s %10s %10s %12s\n", "#", "x", "y", "a·x", "a·x-y", "2(a·x-y)x")
	for _, p := range d.Points {
		fmt.Fprintf(w, "%3d %10.4f %10.4f %10.4f %10.4f %12.4f\n", p.Index, p.X, p.Y, p.Prediction, p.ErrorTerm, p.Contribution)
	}
}

func writeCharts(ctrl *descent.Controller, cfg *Config, publisher *chartPublisher, logger *slog.Logger) error {
	charts, err := renderCharts(ctrl, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", cfg.Output.Dir, err)
	}
	for _, c := range charts {
		path := filepath.Join(cfg.Output.Dir, c.name)
		if err := os.WriteFile(path, c.body, 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
		logger.Info("wrote chart", "path", path)

		if publisher == nil {
			continue
		}
		link, err := publisher.publish(c.name, bytes.NewReader(c.body))
		if err != nil {
			return err
		}
		logger.Info("published chart", "name", c.name, "link", link)
	}
	return nil
}
