package descent

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is a single (x, y) observation.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Dataset is an ordered list of observations. It satisfies plotter.XYer.
type Dataset []Point

func (d Dataset) Len() int                { return len(d) }
func (d Dataset) XY(i int) (x, y float64) { return d[i].X, d[i].Y }

// Columns splits the dataset into x and y slices.
func (d Dataset) Columns() (x, y []float64) {
	x = make([]float64, len(d))
	y = make([]float64, len(d))
	for i, p := range d {
		x[i], y[i] = p.X, p.Y
	}
	return x, y
}

// PointGradient is the contribution of one point to the gradient of the MSE.
type PointGradient struct {
	Index        int // 1-based
	X            float64
	Y            float64
	Prediction   float64
	ErrorTerm    float64
	Contribution float64
}

// SurfacePoint pairs a slope with the MSE it produces.
type SurfacePoint struct {
	Slope float64
	MSE   float64
}

// MSE is the mean squared error of the model y = slope*x over data.
// An empty dataset has an MSE of 0.
func MSE(slope float64, data Dataset) float64 {
	// cost = 1/N * sum((m*x - y)^2)
	if len(data) == 0 {
		return 0
	}
	s := 0.0
	for _, p := range data {
		d := slope*p.X - p.Y
		s += d * d
	}
	return s / float64(len(data))
}

// Gradient returns d(MSE)/d(slope) and the per-point breakdown it was summed from.
func Gradient(slope float64, data Dataset) (float64, []PointGradient) {
	// cost/dm = 2/N * sum(x * (m*x - y))
	if len(data) == 0 {
		return 0, nil
	}
	points := make([]PointGradient, len(data))
	contributions := make([]float64, len(data))
	for i, p := range data {
		prediction := slope * p.X
		e := prediction - p.Y
		c := 2 * e * p.X
		points[i] = PointGradient{
			Index:        i + 1,
			X:            p.X,
			Y:            p.Y,
			Prediction:   prediction,
			ErrorTerm:    e,
			Contribution: c,
		}
		contributions[i] = c
	}
	return floats.Sum(contributions) / float64(len(data)), points
}

// ErrorSurface samples MSE for slopes from min to max (inclusive) every step.
func ErrorSurface(data Dataset, min, max, step float64) []SurfacePoint {
	if step <= 0 || max < min {
		return nil
	}
	n := int(math.Floor((max-min)/step+1e-9)) + 1
	if n < 2 {
		return []SurfacePoint{{Slope: min, MSE: MSE(min, data)}}
	}
	slopes := floats.Span(make([]float64, n), min, min+float64(n-1)*step)
	surface := make([]SurfacePoint, n)
	for i, a := range slopes {
		a = Round(a, 4)
		surface[i] = SurfacePoint{Slope: a, MSE: MSE(a, data)}
	}
	return surface
}

// OptimalSlope is the least squares slope of a regression line forced through the origin.
// It returns 0 when every x is 0.
func OptimalSlope(data Dataset) float64 {
	if len(data) == 0 {
		return 0
	}
	x, y := data.Columns()
	if floats.Dot(x, x) == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(x, y, nil, true)
	return beta
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
