package main

import (
	"bytes"
	"testing"

	"gonum.org/v1/plot"

	"github.com/stojg/gradient/descent"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestRenderCharts(t *testing.T) {
	ctrl, err := descent.New(descent.DefaultDataset(), descent.DefaultHyperparameters())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		ctrl.Step()
	}

	charts, err := renderCharts(ctrl, DefaultConfig())
	if err != nil {
		t.Fatalf("renderCharts: %v", err)
	}
	want := []string{"learning-curve.png", "error-surface.png", "fit.png", "gradients.png"}
	if len(charts) != len(want) {
		t.Fatalf("got %d charts, want %d", len(charts), len(want))
	}
	for i, c := range charts {
		if c.name != want[i] {
			t.Errorf("chart %d = %s, want %s", i, c.name, want[i])
		}
		if !bytes.HasPrefix(c.body, pngMagic) {
			t.Errorf("%s is not a png", c.name)
		}
	}
}

func TestRenderChartsIdle(t *testing.T) {
	ctrl, err := descent.New(descent.Dataset{{X: 1, Y: 2}}, descent.DefaultHyperparameters())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Output.Format = "svg"
	charts, err := renderCharts(ctrl, cfg)
	if err != nil {
		t.Fatalf("renderCharts: %v", err)
	}
	for _, c := range charts {
		if !bytes.Contains(c.body, []byte("<svg")) {
			t.Errorf("%s is not an svg", c.name)
		}
	}
}

func TestPlotLearningCurveLabels(t *testing.T) {
	p := plot.New()
	history := []descent.StepRecord{
		{Step: 0, A: 0, MSE: 4, Gradient: -4},
		{Step: 1, A: 0.4, MSE: 2.56, Gradient: -3.2},
	}
	if err := plotLearningCurve(p, history); err != nil {
		t.Fatal(err)
	}
	if p.Y.Min != 0 {
		t.Errorf("y axis starts at %v", p.Y.Min)
	}
	if err := plotLearningCurve(plot.New(), nil); err != nil {
		t.Errorf("empty history: %v", err)
	}
}
