package builtin

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/services/motion"
)

// LinePlanner plans straight lines sampled every Spacing meters. It ignores obstacles.
type LinePlanner struct {
	Spacing float64
}

// Plan returns the straight path from start to goal. Both poses must share a frame.
func (lp *LinePlanner) Plan(ctx context.Context, start, goal *referenceframe.PoseInFrame) (*motion.Path, error) {
	if start == nil || goal == nil {
		return nil, errors.New("line planner needs a start and a goal")
	}
	if start.FrameName() != goal.FrameName() {
		return nil, errors.Errorf("start frame %q does not match goal frame %q", start.FrameName(), goal.FrameName())
	}
	if !(lp.Spacing > 0) {
		return nil, errors.Errorf("line planner spacing must be positive, got %v", lp.Spacing)
	}
	a, b := start.Pose().Point(), goal.Pose().Point()
	a.Z, b.Z = 0, 0
	d := b.Sub(a)
	length := d.Norm()
	steps := max(int(math.Ceil(length/lp.Spacing)), 1)
	waypoints := make([]r3.Vector, 0, steps+1)
	for i := 0; i <= steps; i++ {
		waypoints = append(waypoints, a.Add(d.Mul(float64(i)/float64(steps))))
	}
	path := &motion.Path{Waypoints: waypoints}
	if length > 0 {
		path.Direction = d.Normalize()
	}
	return path, nil
}
