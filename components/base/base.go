// Package base defines a mobile base that can be commanded with planar velocities.
package base

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
)

// A Base is the velocity sink of a mobile robot. Commands are fire-and-forget: each call replaces
// the previous command and nothing is acknowledged beyond the returned error.
type Base interface {
	// SetVelocity sets the linear (m/s) and angular (rad/s) velocity of the base. Forward speed is
	// linear.Y and turn rate is angular.Z.
	SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error

	// Stop stops the base.
	Stop(ctx context.Context, extra map[string]interface{}) error
}

// VelocityCommand is a planar velocity command. Turn is positive counterclockwise.
type VelocityCommand struct {
	Forward float64
	Turn    float64
}

// Linear returns the linear velocity vector of the command.
func (c VelocityCommand) Linear() r3.Vector {
	return r3.Vector{Y: c.Forward}
}

// Angular returns the angular velocity vector of the command.
func (c VelocityCommand) Angular() r3.Vector {
	return r3.Vector{Z: c.Turn}
}

func (c VelocityCommand) String() string {
	return fmt.Sprintf("forward: %.3f m/s, turn: %.3f rad/s", c.Forward, c.Turn)
}

// CommandFromVelocities converts a pair of base velocities back into a VelocityCommand.
func CommandFromVelocities(linear, angular r3.Vector) VelocityCommand {
	return VelocityCommand{Forward: linear.Y, Turn: angular.Z}
}

// Publish sends cmd to b.
func Publish(ctx context.Context, b Base, cmd VelocityCommand) error {
	return b.SetVelocity(ctx, cmd.Linear(), cmd.Angular(), nil)
}
