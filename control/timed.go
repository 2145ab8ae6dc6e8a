package control

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// DefaultMaxManeuver caps a TimedAction when no MaxDuration is given.
const DefaultMaxManeuver = 10 * time.Second

// TimedAction republishes a command every Period until the requested duration has passed on
// Clock. Durations above MaxDuration are clamped to it.
type TimedAction struct {
	Clock       clock.Clock
	Period      time.Duration
	MaxDuration time.Duration
}

// NewTimedAction returns a TimedAction publishing at the given frequency.
func NewTimedAction(clk clock.Clock, frequencyHz float64, maxDuration time.Duration) (TimedAction, error) {
	if frequencyHz <= 0 || frequencyHz > maxLoopFrequency {
		return TimedAction{}, errors.New("loop frequency shouldn't be 0 or above 200Hz")
	}
	if clk == nil {
		clk = clock.New()
	}
	return TimedAction{
		Clock:       clk,
		Period:      time.Duration(float64(time.Second) / frequencyHz),
		MaxDuration: maxDuration,
	}, nil
}

// Bound returns d clamped to the action's upper bound.
func (ta TimedAction) Bound(d time.Duration) time.Duration {
	limit := ta.MaxDuration
	if limit <= 0 {
		limit = DefaultMaxManeuver
	}
	return min(d, limit)
}

// Run calls publish, waits one period, and repeats until duration has elapsed. It returns the
// first publish error or the context error if ctx ends first. A non-positive duration is a no-op.
func (ta TimedAction) Run(ctx context.Context, duration time.Duration, publish func(context.Context) error) error {
	if ta.Period <= 0 {
		return errors.New("timed action needs a positive period")
	}
	duration = ta.Bound(duration)
	if duration <= 0 {
		return nil
	}
	clk := ta.Clock
	if clk == nil {
		clk = clock.New()
	}
	start := clk.Now()
	ticker := clk.Ticker(ta.Period)
	defer ticker.Stop()
	for {
		if err := publish(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if clk.Since(start) >= duration {
			return nil
		}
	}
}
