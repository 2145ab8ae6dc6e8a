package navigation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/localnav/components/lidar"
	"go.viam.com/localnav/costmap"
	"go.viam.com/localnav/referenceframe"
	"go.viam.com/localnav/spatialmath"
	"go.viam.com/localnav/testutils/inject"
)

// lethalGrid covers [-2, 2) x [-2, 2) at 10cm and marks every cell whose lower x edge is below
// lethalBelowX as lethal.
func lethalGrid(t *testing.T, lethalBelowX float64) *costmap.Grid {
	t.Helper()
	g, err := costmap.NewGrid(40, 40, 0.1, r3.Vector{X: -2, Y: -2})
	test.That(t, err, test.ShouldBeNil)
	g.Frame = referenceframe.World
	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			if g.Origin.X+float64(cx)*g.Resolution < lethalBelowX-1e-9 {
				test.That(t, g.SetCost(cx, cy, costmap.DefaultLethal), test.ShouldBeNil)
			}
		}
	}
	return g
}

func staticCostmap(g *costmap.Grid) *inject.CostmapSource {
	return &inject.CostmapSource{CostmapFunc: func(ctx context.Context) (*costmap.Grid, error) {
		return g, nil
	}}
}

func TestMoveToForwardEscapesLethalRegion(t *testing.T) {
	cfg := testConfig()
	cfg.MatchRotationVelocity = 2
	cfg.CreepVelocity = 1
	cfg.MaxCreepSteps = 40
	grid := lethalGrid(t, 0.3)

	scanned := false
	c, kb := newKinematicController(t, cfg, spatialmath.NewPose2D(0, 0, math.Pi), Dependencies{
		Costmap: staticCostmap(grid),
		Lidar: &inject.Lidar{NextScanFunc: func(ctx context.Context) (*lidar.Scan, error) {
			scanned = true
			return halfCircleScan(10), nil
		}},
	})

	test.That(t, c.MoveToForward(context.Background()), test.ShouldBeNil)
	test.That(t, scanned, test.ShouldBeFalse)

	pose, err := kb.CurrentPosition(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, grid.Lethal(pose.Pose().Point(), cfg.CostmapMargin, cfg.LethalCost), test.ShouldBeFalse)
	test.That(t, pose.Pose().Point().X, test.ShouldBeGreaterThan, 0.5)
	// the robot turned away from the lethal side before creeping
	test.That(t, math.Cos(spatialmath.Yaw(pose.Pose())), test.ShouldBeGreaterThan, 0)
	test.That(t, kb.StopCount, test.ShouldBeGreaterThanOrEqualTo, 1)

	// once clear, the next tick steers from the scan
	test.That(t, c.MoveToForward(context.Background()), test.ShouldBeNil)
	test.That(t, scanned, test.ShouldBeTrue)
}

func TestEscapeGivesUp(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCreepSteps = 2
	cfg.MaxEscapeAttempts = 2
	cfg.CreepStepSec = 0.02
	c, kb := newKinematicController(t, cfg, spatialmath.NewPose2D(0, 0, 0), Dependencies{
		Costmap: staticCostmap(lethalGrid(t, 10)),
	})

	err := c.MoveToForward(context.Background())
	test.That(t, errors.Is(err, ErrEscapeFailed), test.ShouldBeTrue)
	test.That(t, kb.StopCount, test.ShouldBeGreaterThanOrEqualTo, 1)
	last, ok := kb.Last()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last.Forward, test.ShouldEqual, 0.0)
}

func TestCostmapLookupInOtherFrame(t *testing.T) {
	grid := lethalGrid(t, 0.3)
	grid.Frame = "map"
	transforms := 0
	c, _ := newKinematicController(t, testConfig(), spatialmath.NewPose2D(0, 0, 0), Dependencies{
		Costmap: staticCostmap(grid),
		Transformer: &inject.Transformer{TransformPoseFunc: func(
			ctx context.Context, pose *referenceframe.PoseInFrame, dst string,
		) (*referenceframe.PoseInFrame, error) {
			transforms++
			// map is world shifted 1m along x
			p := pose.Pose().Point()
			return referenceframe.NewPoseInFrame(dst, spatialmath.NewPose(r3.Vector{X: p.X + 1, Y: p.Y}, pose.Pose().Orientation())), nil
		}},
	})
	cfg := c.Config()
	blocked, err := c.lookupCostmap(context.Background(), &cfg,
		referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewZeroPose()))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, blocked, test.ShouldBeFalse)
	test.That(t, transforms, test.ShouldEqual, 1)

	// without a transformer the frames cannot be reconciled
	c.deps.Transformer = nil
	_, err = c.lookupCostmap(context.Background(), &cfg,
		referenceframe.NewPoseInFrame(referenceframe.World, spatialmath.NewZeroPose()))
	test.That(t, err, test.ShouldNotBeNil)
}
