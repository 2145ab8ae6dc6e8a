// Package fake implements a fake base.
package fake

import (
	"context"
	"math"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/localnav/components/base"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// Base is a fake base that records every command it is given.
type Base struct {
	mu        sync.Mutex
	commands  []base.VelocityCommand
	StopCount int
}

// NewBase instantiates a new fake base.
func NewBase() *Base {
	return &Base{}
}

// SetVelocity records the command.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, base.CommandFromVelocities(linear, angular))
	return nil
}

// Stop records a zero command.
func (b *Base) Stop(ctx context.Context, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.StopCount++
	b.commands = append(b.commands, base.VelocityCommand{})
	return nil
}

// Commands returns a copy of every command received so far.
func (b *Base) Commands() []base.VelocityCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]base.VelocityCommand(nil), b.commands...)
}

// Last returns the most recent command and whether there was one.
func (b *Base) Last() (base.VelocityCommand, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.commands) == 0 {
		return base.VelocityCommand{}, false
	}
	return b.commands[len(b.commands)-1], true
}

// Reset forgets recorded commands.
func (b *Base) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = nil
	b.StopCount = 0
}

// KinematicBase is a fake base that also localizes itself by integrating every command over a
// fixed step, so each publish advances the pose by exactly one step. The robot's forward axis
// points along +x in the world at yaw 0.
type KinematicBase struct {
	*Base
	frame string
	step  float64

	mu sync.Mutex
	x  float64
	y  float64
	th float64
}

// WrapWithKinematics creates a KinematicBase starting at the given pose in frame. Each command
// moves the base for stepSec seconds.
func (b *Base) WrapWithKinematics(frame string, start spatialmath.Pose, stepSec float64) *KinematicBase {
	pt := start.Point()
	return &KinematicBase{
		Base:  b,
		frame: frame,
		step:  stepSec,
		x:     pt.X,
		y:     pt.Y,
		th:    spatialmath.Yaw(start),
	}
}

// SetVelocity records the command and integrates it.
func (kb *KinematicBase) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	if err := kb.Base.SetVelocity(ctx, linear, angular, extra); err != nil {
		return err
	}
	cmd := base.CommandFromVelocities(linear, angular)
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.th = utils.WrapAngle(kb.th + cmd.Turn*kb.step)
	kb.x += cmd.Forward * kb.step * math.Cos(kb.th)
	kb.y += cmd.Forward * kb.step * math.Sin(kb.th)
	return nil
}

// CurrentPosition returns the integrated pose.
func (kb *KinematicBase) CurrentPosition(ctx context.Context) (*referenceframe.PoseInFrame, error) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return referenceframe.NewPoseInFrame(kb.frame, spatialmath.NewPose2D(kb.x, kb.y, kb.th)), nil
}
