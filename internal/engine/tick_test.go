package engine

import (
	"context"
	"testing"
	"time"
)

func TestStepCallsLayers(t *testing.T) {
	e := NewEngine()
	var ticks, reports int
	var lastDt time.Duration
	e.OnTick = func(_ uint64, dt time.Duration) {
		ticks++
		lastDt = dt
	}
	e.OnReport = func(uint64) { reports++ }

	for i := 0; i < TicksPerReport*2; i++ {
		e.Step()
	}
	if ticks != TicksPerReport*2 || reports != 2 {
		t.Fatalf("expected %d ticks and 2 reports, got %d and %d", TicksPerReport*2, ticks, reports)
	}
	if lastDt != DefaultInterval {
		t.Fatalf("expected dt %v, got %v", DefaultInterval, lastDt)
	}
	if e.Tick() != TicksPerReport*2 {
		t.Fatalf("expected tick %d, got %d", TicksPerReport*2, e.Tick())
	}
}

func TestSetSpeedBounds(t *testing.T) {
	e := NewEngine()
	for _, bad := range []float64{-1, 1001} {
		if err := e.SetSpeed(bad); err == nil {
			t.Fatalf("expected error for speed %v", bad)
		}
	}
	if err := e.SetSpeed(0); err != nil {
		t.Fatalf("expected pause to be accepted, got %v", err)
	}
	if e.Speed() != 0 {
		t.Fatalf("expected speed 0, got %v", e.Speed())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	ticked := make(chan struct{}, 1)
	e.OnTick = func(uint64, time.Duration) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatal("engine never ticked")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	if e.Running() {
		t.Fatal("expected engine to report stopped")
	}
}

func TestUptime(t *testing.T) {
	if got := Uptime(TicksPerSecond * 90); got != "1m30s" {
		t.Fatalf("expected 1m30s, got %s", got)
	}
}
