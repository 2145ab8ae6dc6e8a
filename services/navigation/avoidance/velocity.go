package avoidance

import "go.viam.com/localnav/components/base"

// Gains shape the turn rate produced from a bearing.
type Gains struct {
	Curve    float64
	Rotation float64
}

// Steer converts a bearing into a command: turn = Curve·bearing / (weight/Rotation).
func Steer(bearing, forward, weight float64, g Gains) base.VelocityCommand {
	return base.VelocityCommand{
		Forward: forward,
		Turn:    g.Curve * bearing / (weight / g.Rotation),
	}
}
