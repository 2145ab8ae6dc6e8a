package navigation

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"

	"go.viam.com/localnav/components/base/fake"
	"go.viam.com/localnav/components/bumper"
	"go.viam.com/localnav/components/lidar"
	"go.viam.com/localnav/logging"
	"go.viam.com/localnav/testutils/inject"
)

func TestBumperReaction(t *testing.T) {
	for _, tc := range []struct {
		contact  bumper.Contact
		prevSign float64
		wantTurn float64
	}{
		{bumper.Left, 1, -0.5},
		{bumper.Right, 1, 0.5},
		{bumper.Center, 1, -0.5},
		{bumper.Center, -1, 0.5},
	} {
		t.Run(tc.contact.String(), func(t *testing.T) {
			b := fake.NewBase()
			c, err := NewController(Dependencies{
				Base: b,
				Lidar: &inject.Lidar{NextScanFunc: func(ctx context.Context) (*lidar.Scan, error) {
					t.Error("scan read after a bumper maneuver")
					return nil, errors.New("unexpected")
				}},
				Localizer: staticLocalizer(0, 0, 0),
				Bumper: &inject.Bumper{PollFunc: func(ctx context.Context) (*bumper.Event, error) {
					return &bumper.Event{Contact: tc.contact, Active: true}, nil
				}},
			}, testConfig(), logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)
			c.setAvoidanceSign(tc.prevSign)

			test.That(t, c.MoveToForward(context.Background()), test.ShouldBeNil)
			cmds := b.Commands()
			test.That(t, len(cmds), test.ShouldBeGreaterThanOrEqualTo, 2)
			test.That(t, cmds[0].Forward, test.ShouldAlmostEqual, -0.2)
			test.That(t, cmds[0].Turn, test.ShouldEqual, 0.0)
			last := cmds[len(cmds)-1]
			test.That(t, last.Forward, test.ShouldEqual, 0.0)
			test.That(t, last.Turn, test.ShouldAlmostEqual, tc.wantTurn)

			// backing up strictly precedes turning
			turning := false
			for _, cmd := range cmds {
				if cmd.Turn != 0 {
					turning = true
					continue
				}
				test.That(t, turning, test.ShouldBeFalse)
			}
		})
	}
}

func TestBumperIgnoredWhenInactiveOrFailing(t *testing.T) {
	polls := []func() (*bumper.Event, error){
		func() (*bumper.Event, error) { return nil, nil },
		func() (*bumper.Event, error) { return &bumper.Event{Contact: bumper.Left}, nil },
		func() (*bumper.Event, error) { return nil, errors.New("bumper unplugged") },
	}
	for _, poll := range polls {
		b := fake.NewBase()
		scans := 0
		c, err := NewController(Dependencies{
			Base: b,
			Lidar: &inject.Lidar{NextScanFunc: func(ctx context.Context) (*lidar.Scan, error) {
				scans++
				return halfCircleScan(10), nil
			}},
			Localizer: staticLocalizer(0, 0, 0),
			Bumper: &inject.Bumper{PollFunc: func(ctx context.Context) (*bumper.Event, error) {
				return poll()
			}},
		}, testConfig(), logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.MoveToForward(context.Background()), test.ShouldBeNil)
		test.That(t, scans, test.ShouldEqual, 1)
		test.That(t, b.Commands(), test.ShouldHaveLength, 1)
		cmd, _ := b.Last()
		test.That(t, cmd.Forward, test.ShouldBeGreaterThan, 0)
	}
}
