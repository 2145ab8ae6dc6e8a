package inject

import (
	"context"

	"go.viam.com/localnav/referenceframe"
)

// Transformer is an injected frame transformer.
type Transformer struct {
	referenceframe.Transformer
	TransformPoseFunc func(ctx context.Context, pose *referenceframe.PoseInFrame, dst string) (*referenceframe.PoseInFrame, error)
}

// TransformPose calls the injected TransformPose or the real version.
func (tf *Transformer) TransformPose(
	ctx context.Context,
	pose *referenceframe.PoseInFrame,
	dst string,
) (*referenceframe.PoseInFrame, error) {
	if tf.TransformPoseFunc == nil {
		if tf.Transformer == nil {
			return nil, errUnimplemented("TransformPose")
		}
		return tf.Transformer.TransformPose(ctx, pose, dst)
	}
	return tf.TransformPoseFunc(ctx, pose, dst)
}
