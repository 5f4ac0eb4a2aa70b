package main

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/stojg/gradient/descent"
)

type xyz struct{ x, y, z []float64 }

func (a xyz) Len() int                    { return len(a.x) }
func (a xyz) XY(i int) (x, y float64)     { return a.x[i], a.y[i] }
func (a xyz) XYZ(i int) (x, y, z float64) { return a.x[i], a.y[i], a.z[i] }

var (
	dataColor    = color.RGBA{R: 90, G: 180, B: 234, A: 255}
	modelColor   = color.RGBA{R: 20, G: 100, B: 240, A: 255}
	optimalColor = color.RGBA{R: 20, G: 240, B: 80, A: 255}
	markerColor  = color.RGBA{R: 255, A: 255}
)

// chart is a rendered image ready to be written out.
type chart struct {
	name string
	body []byte
}

// renderCharts draws every chart for the controller's current state.
func renderCharts(ctrl *descent.Controller, cfg *Config) ([]chart, error) {
	data := ctrl.Data()
	history := ctrl.History()
	surface := descent.ErrorSurface(data, cfg.Surface.Min, cfg.Surface.Max, cfg.Surface.Step)

	type drawFunc func(p *plot.Plot) error
	draws := []struct {
		name, title string
		draw        drawFunc
	}{
		{"learning-curve", "MSE by step", func(p *plot.Plot) error { return plotLearningCurve(p, history) }},
		{"error-surface", "MSE by slope", func(p *plot.Plot) error { return plotErrorSurface(p, surface, history, data) }},
		{"fit", "y = a·x", func(p *plot.Plot) error { return plotFit(p, data, ctrl.Slope()) }},
		{"gradients", "gradient contribution per point", func(p *plot.Plot) error {
			d, ok := ctrl.Detail()
			if !ok {
				return nil
			}
			return plotContributions(p, d)
		}},
	}

	var charts []chart
	for _, d := range draws {
		p := createPlot(d.title)
		if err := d.draw(p); err != nil {
			return nil, fmt.Errorf("could not plot %s: %w", d.name, err)
		}
		var buf bytes.Buffer
		// w/h - A4 (1:1.414)
		if err := writePlot(&buf, p, 1024, 1024*(1/1.414), cfg.Output.Format); err != nil {
			return nil, fmt.Errorf("could not render %s: %w", d.name, err)
		}
		charts = append(charts, chart{name: d.name + "." + cfg.Output.Format, body: buf.Bytes()})
	}
	return charts, nil
}

func plotLearningCurve(p *plot.Plot, history []descent.StepRecord) error {
	p.X.Label.Text = "step"
	p.Y.Label.Text = "MSE"
	p.Y.Min = 0

	if len(history) == 0 {
		addLabel(p, "no steps taken")
		return nil
	}

	curve := &xyz{}
	for _, r := range history {
		curve.x = append(curve.x, float64(r.Step))
		curve.y = append(curve.y, r.MSE)
	}
	line, points, err := plotter.NewLinePoints(curve)
	if err != nil {
		return fmt.Errorf("could not create learning curve: %w", err)
	}
	line.Color = modelColor
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	points.Color = modelColor
	p.Add(line, points)

	first, last := history[0], history[len(history)-1]
	addLabel(p, fmt.Sprintf("step 0: a=%0.4f MSE=%0.4f", first.A, first.MSE))
	addLabel(p, fmt.Sprintf("step %d: a=%0.4f MSE=%0.4f gradient=%0.4f", last.Step, last.A, last.MSE, last.Gradient))
	return nil
}

func plotErrorSurface(p *plot.Plot, surface []descent.SurfacePoint, history []descent.StepRecord, data descent.Dataset) error {
	p.X.Label.Text = "slope a"
	p.Y.Label.Text = "MSE"

	curve := &xyz{}
	for _, s := range surface {
		curve.x = append(curve.x, s.Slope)
		curve.y = append(curve.y, s.MSE)
	}
	l, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("could not create error surface: %w", err)
	}
	l.Color = dataColor
	p.Legend.Add("MSE(a)", l)
	p.Add(l)

	if len(history) > 0 {
		visited := &xyz{}
		for _, r := range history {
			visited.x = append(visited.x, r.A)
			visited.y = append(visited.y, r.MSE)
		}
		steps, err := plotter.NewScatter(visited)
		if err != nil {
			return fmt.Errorf("could not create scatter plot: %w", err)
		}
		steps.GlyphStyle.Shape = draw.CrossGlyph{}
		steps.Color = modelColor
		p.Legend.Add("steps", steps)
		p.Add(steps)
	}

	opt := descent.OptimalSlope(data)
	_, _, yMin, yMax := l.DataRange()
	if err := addVerticalLine(p, opt, yMin, yMax); err != nil {
		return err
	}
	addLabel(p, fmt.Sprintf("least squares a=%0.4f MSE=%0.4f", opt, descent.MSE(opt, data)))
	return nil
}

func plotFit(p *plot.Plot, data descent.Dataset, slope float64) error {
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	scatter, err := plotter.NewScatter(data)
	if err != nil {
		return fmt.Errorf("could not create scatter plot: %w", err)
	}
	scatter.GlyphStyle.Shape = draw.CrossGlyph{}
	scatter.Color = dataColor
	p.Legend.Add("data", scatter)
	p.Add(scatter)

	line, err := addRegressionLine(p, scatter, slope)
	if err != nil {
		return err
	}
	line.Color = modelColor
	p.Legend.Add(fmt.Sprintf("a=%0.4f", slope), line)

	opt := descent.OptimalSlope(data)
	optLine, err := addRegressionLine(p, scatter, opt)
	if err != nil {
		return err
	}
	optLine.Color = optimalColor
	optLine.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Legend.Add(fmt.Sprintf("least squares a=%0.4f", opt), optLine)

	// a centroid shows the mean of all scatter points
	x, y := data.Columns()
	xMean, yMean := stat.Mean(x, nil), stat.Mean(y, nil)
	if err := addCentroid(p, xMean, yMean); err != nil {
		return err
	}

	addLabel(p, fmt.Sprintf("x mean: %0.2f (stddev: %0.2f)", xMean, stat.StdDev(x, nil)))
	addLabel(p, fmt.Sprintf("y mean: %0.2f (stddev: %0.2f)", yMean, stat.StdDev(y, nil)))
	addLabel(p, fmt.Sprintf("MSE: %0.4f", descent.MSE(slope, data)))
	addLabel(p, fmt.Sprintf("data points: %d", len(data)))
	return nil
}

func plotContributions(p *plot.Plot, d descent.StepDetail) error {
	p.X.Label.Text = "point"
	p.Y.Label.Text = "2·(a·x - y)·x"

	values := make(plotter.Values, len(d.Points))
	names := make([]string, len(d.Points))
	for i, pg := range d.Points {
		values[i] = pg.Contribution
		names[i] = strconv.Itoa(pg.Index)
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("could not create bar chart: %w", err)
	}
	bars.Color = dataColor
	p.Add(bars)
	p.NominalX(names...)

	addLabel(p, fmt.Sprintf("a=%0.4f gradient=%0.4f", d.StartSlope, d.Gradient))
	return nil
}

func addLabel(p *plot.Plot, text string) {
	p.Legend.Add(text)
}

func addVerticalLine(p *plot.Plot, x, yMin, yMax float64) error {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: yMin}, {X: x, Y: yMax}})
	if err != nil {
		return fmt.Errorf("could not add vertical line: %w", err)
	}
	l.Color = markerColor
	l.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(l)
	return nil
}

// addRegressionLine draws y = m*x across the x range of s.
func addRegressionLine(p *plot.Plot, s *plotter.Scatter, m float64) (*plotter.Line, error) {
	min, max, _, _ := s.DataRange()
	if min > 0 {
		min = 0
	}
	l, err := plotter.NewLine(plotter.XYs{
		{X: min, Y: min * m}, {X: max, Y: max * m},
	})
	if err != nil {
		return l, fmt.Errorf("could not create regression line: %w", err)
	}
	p.Add(l)
	return l, nil
}

func addCentroid(p *plot.Plot, xMean, yMean float64) error {
	centroidXYs := xyz{
		x: []float64{xMean},
		y: []float64{yMean},
	}
	centroid, err := plotter.NewScatter(centroidXYs)
	if err != nil {
		return fmt.Errorf("could not create scatter: %w", err)
	}
	centroid.GlyphStyle.Shape = draw.CircleGlyph{}
	centroid.GlyphStyle.Radius = 4.0
	p.Add(centroid)
	return nil
}

func createPlot(label string) *plot.Plot {
	p := plot.New()
	p.Title.Text = label
	p.Legend.Left = true
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func writePlot(w io.Writer, p *plot.Plot, width, height vg.Length, format string) error {
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("could not create writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("could not write plot: %w", err)
	}
	return nil
}
