package inject

import (
	"context"

	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
)

// Localizer is an injected localizer.
type Localizer struct {
	motion.Localizer
	CurrentPositionFunc func(ctx context.Context) (*referenceframe.PoseInFrame, error)
}

// CurrentPosition calls the injected CurrentPosition or the real version.
func (l *Localizer) CurrentPosition(ctx context.Context) (*referenceframe.PoseInFrame, error) {
	if l.CurrentPositionFunc == nil {
		if l.Localizer == nil {
			return nil, errUnimplemented("CurrentPosition")
		}
		return l.Localizer.CurrentPosition(ctx)
	}
	return l.CurrentPositionFunc(ctx)
}

// Executor is an injected motion executor.
type Executor struct {
	motion.Executor
	DispatchFunc func(ctx context.Context, goal *referenceframe.PoseInFrame) (motion.ExecutionID, error)
	StatusFunc   func(ctx context.Context, id motion.ExecutionID) (motion.PlanStatus, error)
	CancelFunc   func(ctx context.Context, id motion.ExecutionID) error
}

// Dispatch calls the injected Dispatch or the real version.
func (e *Executor) Dispatch(ctx context.Context, goal *referenceframe.PoseInFrame) (motion.ExecutionID, error) {
	if e.DispatchFunc == nil {
		if e.Executor == nil {
			return motion.ExecutionID{}, errUnimplemented("Dispatch")
		}
		return e.Executor.Dispatch(ctx, goal)
	}
	return e.DispatchFunc(ctx, goal)
}

// Status calls the injected Status or the real version.
func (e *Executor) Status(ctx context.Context, id motion.ExecutionID) (motion.PlanStatus, error) {
	if e.StatusFunc == nil {
		if e.Executor == nil {
			return motion.PlanStatus{}, errUnimplemented("Status")
		}
		return e.Executor.Status(ctx, id)
	}
	return e.StatusFunc(ctx, id)
}

// Cancel calls the injected Cancel or the real version.
func (e *Executor) Cancel(ctx context.Context, id motion.ExecutionID) error {
	if e.CancelFunc == nil {
		if e.Executor == nil {
			return errUnimplemented("Cancel")
		}
		return e.Executor.Cancel(ctx, id)
	}
	return e.CancelFunc(ctx, id)
}

// PathPlanner is an injected path planner.
type PathPlanner struct {
	motion.PathPlanner
	PlanFunc func(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*motion.Path, error)
}

// Plan calls the injected Plan or the real version.
func (p *PathPlanner) Plan(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*motion.Path, error) {
	if p.PlanFunc == nil {
		if p.PathPlanner == nil {
			return nil, errUnimplemented("Plan")
		}
		return p.PathPlanner.Plan(ctx, start, goal)
	}
	return p.PlanFunc(ctx, start, goal)
}
