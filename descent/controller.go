package descent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
)

const (
	// DefaultMaxIterations is the index of the last step a run may record.
	DefaultMaxIterations = 30

	DefaultInitialSlope = 0.0
	DefaultLearningRate = 0.01
)

var (
	ErrEmptyDataset = errors.New("dataset must contain at least one point")
	ErrLearningRate = errors.New("learning rate must be a positive finite number")
	ErrInitialSlope = errors.New("initial slope must be a finite number")
)

// DefaultDataset is a noisy sample of y = 2x.
func DefaultDataset() Dataset {
	return Dataset{
		{X: 1, Y: 2.1},
		{X: 2, Y: 3.9},
		{X: 3, Y: 6.2},
		{X: 4, Y: 7.8},
		{X: 5, Y: 10.1},
	}
}

// Hyperparameters control where a run starts and how far each step moves.
type Hyperparameters struct {
	InitialSlope float64 `yaml:"initial_slope"`
	LearningRate float64 `yaml:"learning_rate"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{InitialSlope: DefaultInitialSlope, LearningRate: DefaultLearningRate}
}

func (p Hyperparameters) Validate() error {
	if math.IsNaN(p.InitialSlope) || math.IsInf(p.InitialSlope, 0) {
		return ErrInitialSlope
	}
	if !(p.LearningRate > 0) || math.IsInf(p.LearningRate, 0) {
		return ErrLearningRate
	}
	return nil
}

// State is the phase of a run.
type State int

const (
	Idle State = iota
	Stepping
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stepping:
		return "stepping"
	case Terminal:
		return "terminal"
	}
	return "unknown"
}

// StepDetail describes the most recent step.
type StepDetail struct {
	StartSlope float64
	Gradient   float64
	Points     []PointGradient
}

// Snapshot is a consistent read of the controller.
type Snapshot struct {
	Slope    float64
	Step     int
	Running  bool
	State    State
	MSE      float64 // at Slope
	Gradient float64 // at Slope
	Last     StepRecord
	HasLast  bool
}

type Option func(*Controller)

// WithMaxIterations sets the last step index a run may record.
func WithMaxIterations(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxIterations = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers fn to be called after every recorded step and when a
// timed run stops. fn runs without the controller lock held.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller owns the gradient descent run: the dataset, hyperparameters,
// current slope and the step history. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	data          Dataset
	params        Hyperparameters
	maxIterations int
	logger        *slog.Logger
	observer      func(Snapshot)

	history History
	slope   float64
	step    int
	detail  *StepDetail

	// timed run
	running bool
	gen     uint64
	cancel  context.CancelFunc
}

// New returns an idle controller.
func New(data Dataset, params Hyperparameters, opts ...Option) (*Controller, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		data:          append(Dataset(nil), data...),
		params:        params,
		maxIterations: DefaultMaxIterations,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		slope:         params.InitialSlope,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reset clears the history and returns the slope to its initial value.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.stopLocked()
	c.history.clear()
	c.step = 0
	c.slope = c.params.InitialSlope
	c.detail = nil
	c.logger.Info("reset", "slope", c.slope, "learning_rate", c.params.LearningRate, "points", len(c.data))
}

// ResetDefaults restores the default dataset and hyperparameters and resets.
func (c *Controller) ResetDefaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = DefaultDataset()
	c.params = DefaultHyperparameters()
	c.resetLocked()
}

// SetData replaces the dataset and resets the run.
func (c *Controller) SetData(d Dataset) error {
	if len(d) == 0 {
		return ErrEmptyDataset
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(Dataset(nil), d...)
	c.resetLocked()
	return nil
}

// SetHyperparameters replaces the hyperparameters and resets the run.
func (c *Controller) SetHyperparameters(p Hyperparameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = p
	c.resetLocked()
	return nil
}

// SetSlope overrides the current slope without recording a step. Any timed
// run is stopped.
func (c *Controller) SetSlope(a float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.slope = a
}

// Step records one gradient descent step. It returns false, changing nothing,
// once the run is terminal.
func (c *Controller) Step() bool {
	c.mu.Lock()
	ok := c.stepLocked()
	snap := c.snapshotLocked()
	obs := c.observer
	c.mu.Unlock()

	if ok && obs != nil {
		obs(snap)
	}
	return ok
}

func (c *Controller) stepLocked() bool {
	start, next := c.params.InitialSlope, 0
	if c.history.Len() > 0 {
		start, next = c.slope, c.step+1
	}
	if next > c.maxIterations {
		return false
	}

	mse := MSE(start, c.data)
	g, points := Gradient(start, c.data)
	r := StepRecord{
		Step:     next,
		A:        Round(start, 4),
		MSE:      Round(mse, 4),
		Gradient: Round(g, 4),
	}
	if err := c.history.Append(r); err != nil {
		c.logger.Error("could not record step", "err", err)
		return false
	}
	c.detail = &StepDetail{StartSlope: start, Gradient: g, Points: points}
	c.step = next

	// the slope shown after a step is the one the next step will start from
	c.slope = start - c.params.LearningRate*g

	c.logger.Debug("step", "step", r.Step, "a", r.A, "mse", r.MSE, "gradient", r.Gradient, "next", c.slope)
	return true
}

func (c *Controller) stateLocked() State {
	switch n := c.history.Len(); {
	case n == 0:
		return Idle
	case n > c.maxIterations:
		return Terminal
	}
	return Stepping
}

func (c *Controller) snapshotLocked() Snapshot {
	g, _ := Gradient(c.slope, c.data)
	last, ok := c.history.Last()
	return Snapshot{
		Slope:    c.slope,
		Step:     c.step,
		Running:  c.running,
		State:    c.stateLocked(),
		MSE:      MSE(c.slope, c.data),
		Gradient: g,
		Last:     last,
		HasLast:  ok,
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) Slope() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slope
}

func (c *Controller) CurrentStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// CurrentMSE is the MSE at the current slope.
func (c *Controller) CurrentMSE() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MSE(c.slope, c.data)
}

// CurrentGradient is the gradient at the current slope.
func (c *Controller) CurrentGradient() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, _ := Gradient(c.slope, c.data)
	return g
}

func (c *Controller) History() []StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Records()
}

func (c *Controller) Last() (StepRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Last()
}

// Detail returns the breakdown of the most recent step.
func (c *Controller) Detail() (StepDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == nil {
		return StepDetail{}, false
	}
	d := *c.detail
	d.Points = append([]PointGradient(nil), c.detail.Points...)
	return d, true
}

func (c *Controller) Data() Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(Dataset(nil), c.data...)
}

func (c *Controller) Hyperparameters() Hyperparameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *Controller) MaxIterations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxIterations
}
