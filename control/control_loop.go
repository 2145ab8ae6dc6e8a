// Package control contains the timing primitives used to drive a base: a fixed-rate loop and an
// open-loop timed action that republishes a command until its duration has elapsed.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/localnav/logging"
)

// maxLoopFrequency is the highest rate a Loop accepts, in Hz.
const maxLoopFrequency = 200.0

// StepFunc is invoked once per loop iteration. Returning an error ends the loop.
type StepFunc func(ctx context.Context) error

// Loop holds the loop config.
type Loop struct {
	frequency               float64
	dt                      time.Duration
	clock                   clock.Clock
	step                    StepFunc
	logger                  logging.Logger
	activeBackgroundWorkers sync.WaitGroup
	cancelCtx               context.Context
	cancel                  context.CancelFunc

	mu      sync.Mutex
	running bool
	err     error
	done    chan struct{}
}

// NewLoop constructs a loop that calls step at the given frequency.
func NewLoop(logger logging.Logger, frequency float64, clk clock.Clock, step StepFunc) (*Loop, error) {
	if frequency <= 0 || frequency > maxLoopFrequency {
		return nil, errors.New("loop frequency shouldn't be 0 or above 200Hz")
	}
	if step == nil {
		return nil, errors.New("loop needs a step function")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		frequency: frequency,
		dt:        time.Duration(float64(time.Second) * (1.0 / frequency)),
		clock:     clk,
		step:      step,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Period returns the time between iterations.
func (l *Loop) Period() time.Duration {
	return l.dt
}

// Frequency returns the loop's frequency.
func (l *Loop) Frequency() float64 {
	return l.frequency
}

// Start starts the loop. The first step runs immediately, later ones on every tick.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running || l.cancelCtx != nil {
		return errors.New("loop already started")
	}
	l.logger.Infof("Running loop on %1.4f %+v", l.frequency, l.dt)
	l.cancelCtx, l.cancel = context.WithCancel(ctx)
	ticker := l.clock.Ticker(l.dt)
	waitCh := make(chan struct{})
	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer ticker.Stop()
		defer close(l.done)
		close(waitCh)
		for {
			if err := l.step(l.cancelCtx); err != nil {
				l.setErr(err)
				return
			}
			select {
			case <-l.cancelCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}, l.activeBackgroundWorkers.Done)
	<-waitCh
	l.running = true
	return nil
}

func (l *Loop) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if errors.Is(err, context.Canceled) && l.cancelCtx.Err() != nil {
		return
	}
	l.err = err
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the loop exits and returns the error that ended it, if any.
func (l *Loop) Wait() error {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stop stops the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	running := l.running
	cancel := l.cancel
	l.running = false
	l.mu.Unlock()
	if !running {
		return
	}
	l.logger.Debug("closing loop")
	cancel()
	l.activeBackgroundWorkers.Wait()
}
