// Package motion defines the goal-directed motion collaborators of the navigation controller: a
// localizer, an executor that drives to a goal asynchronously, and a path planner.
package motion

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/localnav/referenceframe"
)

// ErrExecutionNotFound is returned for an unknown execution id.
var ErrExecutionNotFound = errors.New("execution not found")

// ExecutionID uniquely identifies an execution.
type ExecutionID = uuid.UUID

// PlanState denotes the state a Plan is in.
type PlanState uint8

const (
	// PlanStateUnspecified denotes an the Plan is in an unspecified state. This should never happen.
	PlanStateUnspecified PlanState = iota

	// PlanStateInProgress denotes an the Plan is in an in progress state. It is a temporary state.
	PlanStateInProgress

	// PlanStateStopped denotes an the Plan is in a stopped state. It is a terminal state.
	PlanStateStopped

	// PlanStateSucceeded denotes an the Plan is in a succeeded state. It is a terminal state.
	PlanStateSucceeded

	// PlanStateFailed denotes the Plan is in a failed state. It is a terminal state.
	PlanStateFailed
)

// TerminalStateSet is a set that defines the PlanState values which are terminal
// i.e. which represent the end of a plan.
var TerminalStateSet = map[PlanState]struct{}{
	PlanStateStopped:   {},
	PlanStateSucceeded: {},
	PlanStateFailed:    {},
}

// String returns the string representation of the PlanState.
func (ps PlanState) String() string {
	switch ps {
	case PlanStateInProgress:
		return "in progress"
	case PlanStateStopped:
		return "stopped"
	case PlanStateSucceeded:
		return "succeeded"
	case PlanStateFailed:
		return "failed"
	case PlanStateUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a plan.
func (ps PlanState) Terminal() bool {
	_, ok := TerminalStateSet[ps]
	return ok
}

// PlanStatus describes the state of a given plan at a point in time allong with an optional reason why the PlanStatus
// transitioned to that state.
type PlanStatus struct {
	State     PlanState
	Timestamp time.Time
	Reason    *string
}

func (ps PlanStatus) String() string {
	if ps.Reason != nil {
		return fmt.Sprintf("%s (%s)", ps.State, *ps.Reason)
	}
	return ps.State.String()
}

// Localizer is an interface which reports the current pose of the robot.
type Localizer interface {
	CurrentPosition(context.Context) (*referenceframe.PoseInFrame, error)
}

// An Executor drives the robot to a goal asynchronously.
type Executor interface {
	// Dispatch starts driving to goal and returns immediately.
	Dispatch(ctx context.Context, goal *referenceframe.PoseInFrame) (ExecutionID, error)
	// Status returns the current status of an execution.
	Status(ctx context.Context, id ExecutionID) (PlanStatus, error)
	// Cancel stops an execution and returns once it has stopped.
	Cancel(ctx context.Context, id ExecutionID) error
}

// Path is a planned route. Direction, when non-zero, is the heading the planner suggests for the
// start of the route.
type Path struct {
	Waypoints []r3.Vector
	Direction r3.Vector
}

// HasDirection reports whether the planner suggested a heading.
func (p *Path) HasDirection() bool {
	return p != nil && p.Direction.Norm2() > 0
}

// Length returns the length of the polyline through the waypoints.
func (p *Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p.Waypoints); i++ {
		d := p.Waypoints[i].Sub(p.Waypoints[i-1])
		total += math.Hypot(d.X, d.Y)
	}
	return total
}

// DirectionAt returns the unit direction of the path at waypoint i, taken from the segment leaving
// it or, for the last waypoint, the segment arriving at it. Zero if the path has no extent there.
func (p *Path) DirectionAt(i int) r3.Vector {
	n := len(p.Waypoints)
	if n < 2 || i < 0 || i >= n {
		return r3.Vector{}
	}
	var d r3.Vector
	if i < n-1 {
		d = p.Waypoints[i+1].Sub(p.Waypoints[i])
	} else {
		d = p.Waypoints[i].Sub(p.Waypoints[i-1])
	}
	d.Z = 0
	if d.Norm2() == 0 {
		return r3.Vector{}
	}
	return d.Normalize()
}

// A PathPlanner computes a path between two poses.
type PathPlanner interface {
	Plan(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*Path, error)
}
