package descent

import (
	"context"
	"time"
)

// DefaultInterval is the delay between steps of a timed run.
const DefaultInterval = 500 * time.Millisecond

// Play starts stepping every interval until paused or terminal. A pending run
// is cancelled first. It reports whether a run was started; a terminal
// controller cannot be played.
func (c *Controller) Play(interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(interval) != nil
}

func (c *Controller) playLocked(interval time.Duration) <-chan struct{} {
	if c.stateLocked() == Terminal {
		return nil
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.running = true
	c.gen++
	c.cancel = cancel
	c.logger.Info("run started", "interval", interval, "step", c.step)

	go c.loop(ctx, c.gen, interval, done)
	return done
}

func (c *Controller) loop(ctx context.Context, gen uint64, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick commits one step for run gen. A tick that fires after its run was
// stopped or replaced commits nothing.
func (c *Controller) tick(gen uint64) bool {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return false
	}
	stepped := c.stepLocked()
	more := stepped && c.stateLocked() != Terminal
	if !more {
		c.stopLocked()
		c.logger.Info("run finished", "step", c.step, "slope", c.slope)
	}
	snap := c.snapshotLocked()
	obs := c.observer
	c.mu.Unlock()

	if obs != nil {
		obs(snap)
	}
	return more
}

// Pause stops a timed run. No step is recorded after Pause returns.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.logger.Info("run paused", "step", c.step)
	}
	c.stopLocked()
}

// Toggle pauses a running controller or plays a paused one and returns
// whether it is now running.
func (c *Controller) Toggle(interval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.stopLocked()
		return false
	}
	return c.playLocked(interval) != nil
}

// Run plays the controller and blocks until the run ends. If ctx is done
// first the run is paused and ctx.Err() returned.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	c.mu.Lock()
	done := c.playLocked(interval)
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.Pause()
		<-done
		return ctx.Err()
	}
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.gen++
}
