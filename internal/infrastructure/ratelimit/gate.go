package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// IntervalGate holds each caller for one full interval, so consecutive rows
// of a run are always at least that far apart, even after the gate sat idle.
// The shared limiter spaces passes of concurrent callers one interval apart.
type IntervalGate struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewIntervalGate creates a gate with the given pause. A non-positive
// interval never blocks.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &IntervalGate{
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Wait blocks for the interval and until the caller's turn, or until ctx is done
func (g *IntervalGate) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate gate: %w", err)
	}
	if g.interval <= 0 {
		return nil
	}

	t := time.NewTimer(g.interval)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rate gate: %w", ctx.Err())
	}
}
