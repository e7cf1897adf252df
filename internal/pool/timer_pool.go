// Package pool provides pooled timers for the simulated instrument, which
// sleeps once per delayed reply and once per read that runs into the bus
// timeout.
package pool

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// getTimer returns a stopped-and-drained timer from the pool, reset to d.
func getTimer(d time.Duration) *time.Timer {
	if t, ok := timerPool.Get().(*time.Timer); ok {
		t.Reset(d)
		return t
	}

	return time.NewTimer(d)
}

// putTimer stops t, drains a pending tick and returns it to the pool.
func putTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep pauses for d, e.g. until a delayed *OPC? reply becomes readable.
// It returns ctx.Err() if ctx is done first. A non-positive d only checks
// ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := getTimer(d)
	defer putTimer(t)

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
