package inject

import (
	"context"

	"go.viam.com/localnav/components/bumper"
)

// Bumper is an injected bumper.
type Bumper struct {
	bumper.Bumper
	PollFunc func(ctx context.Context) (*bumper.Event, error)
}

// Poll calls the injected Poll or the real version.
func (b *Bumper) Poll(ctx context.Context) (*bumper.Event, error) {
	if b.PollFunc == nil {
		if b.Bumper == nil {
			return nil, errUnimplemented("Poll")
		}
		return b.Bumper.Poll(ctx)
	}
	return b.PollFunc(ctx)
}
