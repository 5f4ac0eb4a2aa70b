package descent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitStopped(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.Running() {
		if time.Now().After(deadline) {
			t.Fatal("run did not stop")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPlayRunsToTerminal(t *testing.T) {
	stopped := make(chan Snapshot, 1)
	c := newController(t, DefaultDataset(), DefaultHyperparameters(),
		WithMaxIterations(5),
		WithObserver(func(s Snapshot) {
			if !s.Running {
				stopped <- s
			}
		}))

	if !c.Play(time.Millisecond) {
		t.Fatal("Play did not start")
	}
	select {
	case s := <-stopped:
		if s.State != Terminal {
			t.Errorf("stopped in state %v", s.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	if n := len(c.History()); n != 6 {
		t.Errorf("history length = %d, want 6", n)
	}
	if c.Play(time.Millisecond) {
		t.Error("Play started on a terminal controller")
	}
	if c.Running() {
		t.Error("terminal controller is running")
	}
}

func TestPauseStopsCommits(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	c.Play(time.Millisecond)
	deadline := time.Now().Add(5 * time.Second)
	for len(c.History()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no steps recorded")
		}
		time.Sleep(time.Millisecond)
	}
	c.Pause()
	n := len(c.History())
	time.Sleep(20 * time.Millisecond)
	if got := len(c.History()); got != n {
		t.Errorf("history grew from %d to %d after Pause", n, got)
	}
	if c.Running() {
		t.Error("still running after Pause")
	}
}

func TestTickAfterStopCommitsNothing(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	c.Play(time.Hour)
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	c.Pause()
	if c.tick(gen) {
		t.Error("stale tick asked to continue")
	}
	if len(c.History()) != 0 {
		t.Error("stale tick recorded a step")
	}
}

func TestPlayReplacesRun(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	c.Play(time.Hour)
	c.mu.Lock()
	old := c.gen
	c.mu.Unlock()

	c.Play(time.Hour)
	if c.tick(old) {
		t.Error("replaced run still ticks")
	}
	if !c.Running() {
		t.Error("new run not running")
	}
	c.Pause()
}

func TestToggle(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	if !c.Toggle(time.Hour) {
		t.Error("Toggle did not start")
	}
	if c.Toggle(time.Hour) {
		t.Error("Toggle did not pause")
	}
	if c.Running() {
		t.Error("running after second toggle")
	}
}

func TestEditsStopRun(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	c.Step()

	c.Play(time.Hour)
	c.SetSlope(1)
	if c.Running() {
		t.Error("SetSlope left the run going")
	}

	c.Play(time.Hour)
	if err := c.SetData(Dataset{{2, 3}}); err != nil {
		t.Fatal(err)
	}
	if c.Running() || c.State() != Idle {
		t.Errorf("SetData: running %v state %v", c.Running(), c.State())
	}

	c.Play(time.Hour)
	c.Reset()
	if c.Running() {
		t.Error("Reset left the run going")
	}
}

func TestRunBlocksUntilTerminal(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters(), WithMaxIterations(3))
	if err := c.Run(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.State() != Terminal || len(c.History()) != 4 {
		t.Errorf("state %v history %d", c.State(), len(c.History()))
	}
	if err := c.Run(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Run on terminal controller: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	c := newController(t, DefaultDataset(), DefaultHyperparameters())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Run(ctx, time.Hour)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	waitStopped(t, c)
	if len(c.History()) != 0 {
		t.Error("cancelled run recorded steps")
	}
}
