// Package referenceframe names the frames poses are expressed in and converts poses between them.
package referenceframe

import (
	"fmt"

	"go.viam.com/localnav/spatialmath"
)

// World is the string "world", but made into an exported constant.
const World = "world"

// PoseInFrame is a data structure that packages a pose with the name of the
// frame in which it was observed.
type PoseInFrame struct {
	frame string
	pose  spatialmath.Pose
}

// NewPoseInFrame generates a new PoseInFrame.
func NewPoseInFrame(frame string, pose spatialmath.Pose) *PoseInFrame {
	return &PoseInFrame{
		frame: frame,
		pose:  pose,
	}
}

// FrameName returns the name of the frame in which the pose was observed.
func (pF *PoseInFrame) FrameName() string {
	return pF.frame
}

// Pose returns the pose that was observed.
func (pF *PoseInFrame) Pose() spatialmath.Pose {
	return pF.pose
}

// Transform re-expresses the pose in tf's frame, where tf is the pose of this pose's frame in that frame.
func (pF *PoseInFrame) Transform(tf *PoseInFrame) *PoseInFrame {
	return NewPoseInFrame(tf.frame, spatialmath.Compose(tf.pose, pF.pose))
}

// AlmostEqual reports whether both poses share a frame and approximately the same pose.
func (pF *PoseInFrame) AlmostEqual(other *PoseInFrame) bool {
	return pF.FrameName() == other.FrameName() && spatialmath.PoseAlmostEqual(pF.Pose(), other.Pose())
}

func (pF *PoseInFrame) String() string {
	return fmt.Sprintf("%v in %q", pF.pose, pF.frame)
}
