// Package engine provides the tick loop and the world facade it drives.
// Edits only mark chunks dirty; each tick flushes rebuilds, then moves
// travelers, then publishes what happened.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Tick schedule.
const (
	TicksPerSecond = 10
	TicksPerReport = 600 // One report per minute at speed 1
)

// DefaultInterval is the wall-clock length of one tick at speed 1.
const DefaultInterval = time.Second / TicksPerSecond

// Engine drives the world forward.
type Engine struct {
	Interval time.Duration // Base tick interval

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64, dt time.Duration) // Every tick, dt of world time
	OnReport func(tick uint64)                  // Every TicksPerReport ticks

	tick    atomic.Uint64
	running atomic.Bool

	mu    sync.Mutex
	speed float64 // Multiplier: 1.0 = real-time, 0 = paused
	stop  chan struct{}
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: DefaultInterval,
		speed:    1.0,
	}
}

// Tick returns the current tick counter (monotonic, never resets).
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// SetTick restores the counter, e.g. from saved metadata.
func (e *Engine) SetTick(t uint64) {
	e.tick.Store(t)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses.
func (e *Engine) SetSpeed(speed float64) error {
	if speed < 0 || speed > 1000 || math.IsNaN(speed) {
		return fmt.Errorf("speed must be 0-1000, got %v", speed)
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// Run starts the loop. Blocks until Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("engine started", "tick", e.Tick(), "speed", e.Speed(), "interval", e.Interval)

	for {
		speed := e.Speed()
		wait := 100 * time.Millisecond // Paused: check again shortly
		if speed > 0 {
			start := time.Now()
			e.Step()

			// Sleep for the remainder of the tick interval, adjusted for speed.
			wait = time.Duration(float64(e.Interval)/speed) - time.Since(start)
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopped", "tick", e.Tick(), "reason", ctx.Err())
			return
		case <-stop:
			slog.Info("engine stopped", "tick", e.Tick())
			return
		case <-time.After(max(wait, 0)):
		}
	}
}

// Stop halts the loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Step advances by one tick.
func (e *Engine) Step() {
	t := e.tick.Add(1)

	if e.OnTick != nil {
		e.OnTick(t, e.Interval)
	}
	if t%TicksPerReport == 0 && e.OnReport != nil {
		e.OnReport(t)
	}
}

// Uptime formats a tick count as world time.
func Uptime(tick uint64) string {
	d := time.Duration(tick) * DefaultInterval
	return d.Truncate(time.Second).String()
}
