// Package state provides apis for motion builtin plan executions
// and manages the state of those executions
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/services/motion"
)

// ExecuteResponse is the response from Execute.
type ExecuteResponse struct {
	// If true, the Execute function didn't reach the goal & the caller should replan
	Replan bool
	// Set if Replan is true, describes why replanning was triggered
	ReplanReason string
}

// PlannerExecutorConstructor creates a PlannerExecutor
// if ctx is cancelled then all PlannerExecutor interface
// methods must terminate & return errors
// req is the request that will be used during planning & execution
// seedPath (nil during the first plan) is the previous path
// if replanning has occurred
// replanCount is the number of times replanning has occurred,
// zero the first time planning occurs.
type PlannerExecutorConstructor[R any] func(
	ctx context.Context,
	req R,
	seedPath *motion.Path,
	replanCount int,
) (PlannerExecutor, error)

// PlannerExecutor implements Plan and Execute.
type PlannerExecutor interface {
	Plan(ctx context.Context) (*motion.Path, error)
	Execute(ctx context.Context, path *motion.Path) (ExecuteResponse, error)
}

// a stateExecution is the struct held in the state that
// holds the status history an execution has exprienced
// & the waitGroup & cancelFunc required to shut down
// an execution's goroutine.
type stateExecution struct {
	id         motion.ExecutionID
	waitGroup  *sync.WaitGroup
	cancelFunc context.CancelFunc
	// newest first
	history []motion.PlanStatus
	path    *motion.Path
}

func (e *stateExecution) stop() {
	e.cancelFunc()
	e.waitGroup.Wait()
}

// execution represents the state of a motion planning execution.
// it only ever exists in state.StartExecution function & the go routine created.
type execution[R any] struct {
	id                         motion.ExecutionID
	state                      *State
	waitGroup                  *sync.WaitGroup
	cancelCtx                  context.Context
	cancelFunc                 context.CancelFunc
	logger                     logging.Logger
	req                        R
	plannerExecutorConstructor PlannerExecutorConstructor[R]
}

type pathWithExecutor struct {
	path            *motion.Path
	plannerExecutor PlannerExecutor
}

func (e *execution[R]) newPathWithExecutor(ctx context.Context, seedPath *motion.Path, replanCount int) (pathWithExecutor, error) {
	pe, err := e.plannerExecutorConstructor(e.cancelCtx, e.req, seedPath, replanCount)
	if err != nil {
		return pathWithExecutor{}, err
	}
	path, err := pe.Plan(ctx)
	if err != nil {
		return pathWithExecutor{}, err
	}
	return pathWithExecutor{path: path, plannerExecutor: pe}, nil
}

// start plans once and then executes in the background, replanning when asked to.
func (e *execution[R]) start(ctx context.Context) error {
	var replanCount int
	original, err := e.newPathWithExecutor(ctx, nil, replanCount)
	if err != nil {
		return err
	}
	e.notifyStateNewExecution(original.path, time.Now())
	// state.Stop() waits for every execution goroutine and stateExecution.stop() waits for its
	// own, so both waitgroups are written to.
	e.state.waitGroup.Add(1)
	e.waitGroup.Add(1)
	utils.PanicCapturingGo(func() {
		defer e.state.waitGroup.Done()
		defer e.waitGroup.Done()
		defer e.cancelFunc()

		last := original
		for {
			resp, err := last.plannerExecutor.Execute(e.cancelCtx, last.path)

			switch {
			// stopped
			case errors.Is(err, context.Canceled):
				e.notifyStateStatus(motion.PlanStateStopped, nil, time.Now())
				return

			// failure
			case err != nil:
				reason := err.Error()
				e.notifyStateStatus(motion.PlanStateFailed, &reason, time.Now())
				return

			// success
			case !resp.Replan:
				e.notifyStateStatus(motion.PlanStateSucceeded, nil, time.Now())
				return

			// replan
			default:
				replanCount++
				next, err := e.newPathWithExecutor(e.cancelCtx, last.path, replanCount)
				if err != nil {
					e.logger.Warnf("failed to replan execution %s after %q: %v", e.id, resp.ReplanReason, err)
					reason := err.Error()
					e.notifyStateStatus(motion.PlanStateFailed, &reason, time.Now())
					return
				}
				e.logger.Infof("execution %s replanned (%d): %s", e.id, replanCount, resp.ReplanReason)
				e.notifyStateReplan(next.path, resp.ReplanReason, time.Now())
				last = next
			}
		}
	})

	return nil
}

func (e *execution[R]) toStateExecution(path *motion.Path, ts time.Time) stateExecution {
	return stateExecution{
		id:         e.id,
		waitGroup:  e.waitGroup,
		cancelFunc: e.cancelFunc,
		history:    []motion.PlanStatus{{State: motion.PlanStateInProgress, Timestamp: ts}},
		path:       path,
	}
}

func (e *execution[R]) notifyStateNewExecution(path *motion.Path, ts time.Time) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.updateStateNewExecution(e.toStateExecution(path, ts))
}

func (e *execution[R]) notifyStateReplan(path *motion.Path, reason string, ts time.Time) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	ex, ok := e.state.executionsByID[e.id]
	if !ok {
		return
	}
	ex.path = path
	ex.history = append([]motion.PlanStatus{{State: motion.PlanStateInProgress, Timestamp: ts, Reason: &reason}}, ex.history...)
	e.state.executionsByID[e.id] = ex
}

func (e *execution[R]) notifyStateStatus(ps motion.PlanState, reason *string, ts time.Time) {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	e.state.updateStateStatusUpdate(e.id, motion.PlanStatus{State: ps, Timestamp: ts, Reason: reason})
}

// State keeps track of the executions of a single base. At most one execution is active at a time.
type State struct {
	waitGroup  *sync.WaitGroup
	cancelCtx  context.Context
	cancelFunc context.CancelFunc
	logger     logging.Logger
	// mu protects the executions
	mu                 sync.RWMutex
	executionIDHistory []motion.ExecutionID
	executionsByID     map[motion.ExecutionID]stateExecution
}

// NewState creates a new state.
func NewState(ctx context.Context, logger logging.Logger) *State {
	cancelCtx, cancelFunc := context.WithCancel(ctx)
	return &State{
		cancelCtx:      cancelCtx,
		cancelFunc:     cancelFunc,
		waitGroup:      &sync.WaitGroup{},
		executionsByID: make(map[motion.ExecutionID]stateExecution),
		logger:         logger,
	}
}

// StartExecution creates a new execution from a state.
func StartExecution[R any](
	ctx context.Context,
	s *State,
	req R,
	plannerExecutorConstructor PlannerExecutorConstructor[R],
) (motion.ExecutionID, error) {
	if s == nil {
		return uuid.Nil, errors.New("state is nil")
	}

	if err := s.ValidateNoActiveExecutionID(); err != nil {
		return uuid.Nil, err
	}

	// the state being cancelled should cause all executions derived from that state to also be cancelled
	cancelCtx, cancelFunc := context.WithCancel(s.cancelCtx)
	e := execution[R]{
		id:                         uuid.New(),
		state:                      s,
		cancelCtx:                  cancelCtx,
		cancelFunc:                 cancelFunc,
		waitGroup:                  &sync.WaitGroup{},
		logger:                     s.logger,
		req:                        req,
		plannerExecutorConstructor: plannerExecutorConstructor,
	}

	if err := e.start(ctx); err != nil {
		cancelFunc()
		return uuid.Nil, err
	}

	return e.id, nil
}

// Stop stops all executions within the State.
func (s *State) Stop() {
	s.cancelFunc()
	s.waitGroup.Wait()
}

// StopExecution stops the execution with the given id and waits for it to finish.
func (s *State) StopExecution(id motion.ExecutionID) error {
	// lock released while waiting for the execution to stop as the execution stopping requires writing to the state
	s.mu.RLock()
	e, exists := s.executionsByID[id]
	s.mu.RUnlock()
	if !exists {
		return errors.Wrapf(motion.ErrExecutionNotFound, "execution %s", id)
	}
	e.stop()
	return nil
}

// Status returns the latest status of an execution.
func (s *State) Status(id motion.ExecutionID) (motion.PlanStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, exists := s.executionsByID[id]
	if !exists {
		return motion.PlanStatus{}, errors.Wrapf(motion.ErrExecutionNotFound, "execution %s", id)
	}
	return e.history[0], nil
}

// StatusHistory returns every status of an execution, newest first.
func (s *State) StatusHistory(id motion.ExecutionID) ([]motion.PlanStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, exists := s.executionsByID[id]
	if !exists {
		return nil, errors.Wrapf(motion.ErrExecutionNotFound, "execution %s", id)
	}
	history := make([]motion.PlanStatus, len(e.history))
	copy(history, e.history)
	return history, nil
}

// Path returns the path an execution is currently following.
func (s *State) Path(id motion.ExecutionID) (*motion.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, exists := s.executionsByID[id]
	if !exists {
		return nil, errors.Wrapf(motion.ErrExecutionNotFound, "execution %s", id)
	}
	return e.path, nil
}

// ExecutionIDs returns every execution id, newest first.
func (s *State) ExecutionIDs() []motion.ExecutionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]motion.ExecutionID(nil), s.executionIDHistory...)
}

// ValidateNoActiveExecutionID returns an error if there is already an active
// Execution within the State.
func (s *State) ValidateNoActiveExecutionID() error {
	if id, ok := s.ActiveExecutionID(); ok {
		return fmt.Errorf("there is already an active executionID: %s", id)
	}
	return nil
}

// ActiveExecutionID returns the id of the execution that is still in progress, if any.
func (s *State) ActiveExecutionID() (motion.ExecutionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.executionIDHistory) == 0 {
		return uuid.Nil, false
	}
	last := s.executionsByID[s.executionIDHistory[0]]
	if last.history[0].State.Terminal() {
		return uuid.Nil, false
	}
	return last.id, true
}

func (s *State) updateStateNewExecution(newE stateExecution) {
	if _, exists := s.executionsByID[newE.id]; exists {
		s.logger.Errorf("unexpected ExecutionID already exists %s", newE.id)
		return
	}
	s.executionsByID[newE.id] = newE
	s.executionIDHistory = append([]motion.ExecutionID{newE.id}, s.executionIDHistory...)
}

func (s *State) updateStateStatusUpdate(id motion.ExecutionID, status motion.PlanStatus) {
	if !status.State.Terminal() {
		s.logger.Errorf("unexpected PlanState %v in update for execution %s", status.State, id)
		return
	}
	e, exists := s.executionsByID[id]
	if !exists {
		s.logger.Errorf("updated execution %s doesn't exist", id)
		return
	}
	e.history = append([]motion.PlanStatus{status}, e.history...)
	s.executionsByID[id] = e
}
