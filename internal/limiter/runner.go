package limiter

import (
	"context"
	"time"
)

// Runner drives an Engine at a fixed tick interval from a single goroutine,
// which keeps ticks strictly serialized. Stop waits for the tick in flight
// to finish, so shutdown never interrupts a volume write halfway.
type Runner struct {
	engine   *Engine
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunner returns a Runner ticking at the given interval. An interval of
// zero selects TickInterval.
func NewRunner(engine *Engine, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = TickInterval
	}
	return &Runner{engine: engine, interval: interval}
}

// Start launches the control loop goroutine.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				r.engine.Tick(now)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the control loop and waits for it to exit.
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}
