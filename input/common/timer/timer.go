// Package timer paces frame production to a fixed frame rate.
package timer

import (
	"context"
	"time"
)

// Pacer hands out ticks at a fixed rate. A tick missed by a slow consumer is
// not made up for; the next one simply follows.
type Pacer struct {
	ticker *time.Ticker
}

// NewPacer returns a pacer ticking rate times per second.
func NewPacer(rate float64) *Pacer {
	// Calculate the theoretical tick duration to satisfy the requested frame
	// rate without falling behind.
	dur := time.Duration(float64(time.Second) / rate)
	return &Pacer{ticker: time.NewTicker(dur)}
}

// Wait blocks until the next tick. It returns false once ctx is done.
func (p *Pacer) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.ticker.C:
		return true
	}
}

// Stop releases the ticker.
func (p *Pacer) Stop() {
	p.ticker.Stop()
}
