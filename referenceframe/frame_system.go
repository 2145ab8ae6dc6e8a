package referenceframe

import (
	"context"
	"sort"
	"sync"

	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/utils"
)

// Transformer converts poses between named frames.
type Transformer interface {
	TransformPose(ctx context.Context, pose *PoseInFrame, dst string) (*PoseInFrame, error)
}

// LinkConfig places a frame relative to its parent on the ground plane.
type LinkConfig struct {
	ID        string  `json:"id"`
	Parent    string  `json:"parent"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ThetaDegs float64 `json:"theta_degs"`
}

// Validate ensures all parts of the config are valid.
func (cfg *LinkConfig) Validate(path string) error {
	if cfg.ID == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "id")
	}
	if cfg.ID == World {
		return utils.NewConfigValidationError(path, NewFrameExistsError(World))
	}
	return nil
}

// Pose returns the pose of the link in its parent frame.
func (cfg *LinkConfig) Pose() spatialmath.Pose {
	return spatialmath.NewPose2D(cfg.X, cfg.Y, utils.DegToRad(cfg.ThetaDegs))
}

// StaticFrameSystem is a tree of frames rooted at World whose offsets never change.
type StaticFrameSystem struct {
	mu      sync.RWMutex
	poses   map[string]spatialmath.Pose
	parents map[string]string
}

// NewStaticFrameSystem builds a frame system from link configs. Links may be given in any order
// as long as every parent is eventually defined.
func NewStaticFrameSystem(links []LinkConfig) (*StaticFrameSystem, error) {
	sfs := &StaticFrameSystem{
		poses:   map[string]spatialmath.Pose{},
		parents: map[string]string{},
	}
	pending := append([]LinkConfig(nil), links...)
	for len(pending) > 0 {
		var remaining []LinkConfig
		for _, link := range pending {
			if !sfs.frameExists(link.parentName()) {
				remaining = append(remaining, link)
				continue
			}
			if err := sfs.AddFrame(link.ID, link.parentName(), link.Pose()); err != nil {
				return nil, err
			}
		}
		if len(remaining) == len(pending) {
			return nil, NewParentFrameMissingError(remaining[0].ID, remaining[0].parentName())
		}
		pending = remaining
	}
	return sfs, nil
}

func (cfg *LinkConfig) parentName() string {
	if cfg.Parent == "" {
		return World
	}
	return cfg.Parent
}

// AddFrame places a frame named name at pose in parent.
func (sfs *StaticFrameSystem) AddFrame(name, parent string, pose spatialmath.Pose) error {
	sfs.mu.Lock()
	defer sfs.mu.Unlock()
	if !sfs.frameExistsLocked(parent) {
		return NewParentFrameMissingError(name, parent)
	}
	if sfs.frameExistsLocked(name) {
		return NewFrameExistsError(name)
	}
	sfs.poses[name] = pose
	sfs.parents[name] = parent
	return nil
}

// FrameNames returns the list of frame names registered in the frame system.
func (sfs *StaticFrameSystem) FrameNames() []string {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	frameNames := make([]string, 0, len(sfs.poses))
	for k := range sfs.poses {
		frameNames = append(frameNames, k)
	}
	sort.Strings(frameNames)
	return frameNames
}

func (sfs *StaticFrameSystem) frameExists(name string) bool {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	return sfs.frameExistsLocked(name)
}

func (sfs *StaticFrameSystem) frameExistsLocked(name string) bool {
	if name == World {
		return true
	}
	_, ok := sfs.poses[name]
	return ok
}

// TransformPose expresses pose in the dst frame.
func (sfs *StaticFrameSystem) TransformPose(ctx context.Context, pose *PoseInFrame, dst string) (*PoseInFrame, error) {
	if pose.FrameName() == dst {
		return pose, nil
	}
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()

	srcToWorld, err := sfs.frameToWorld(pose.FrameName())
	if err != nil {
		return nil, err
	}
	dstToWorld, err := sfs.frameToWorld(dst)
	if err != nil {
		return nil, err
	}
	tf := NewPoseInFrame(dst, spatialmath.Compose(spatialmath.PoseInverse(dstToWorld), srcToWorld))
	return pose.Transform(tf), nil
}

// frameToWorld composes the offsets from name up to the root. Callers hold the read lock.
func (sfs *StaticFrameSystem) frameToWorld(name string) (spatialmath.Pose, error) {
	if !sfs.frameExistsLocked(name) {
		return nil, NewFrameMissingError(name)
	}
	q := spatialmath.NewZeroPose()
	for name != World {
		q = spatialmath.Compose(sfs.poses[name], q)
		name = sfs.parents[name]
	}
	return q, nil
}
