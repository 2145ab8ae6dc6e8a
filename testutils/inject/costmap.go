package inject

import (
	"context"

	"go.viam.com/localnav/costmap"
)

// CostmapSource is an injected costmap source.
type CostmapSource struct {
	costmap.Source
	CostmapFunc func(ctx context.Context) (*costmap.Grid, error)
}

// Costmap calls the injected Costmap or the real version.
func (cs *CostmapSource) Costmap(ctx context.Context) (*costmap.Grid, error) {
	if cs.CostmapFunc == nil {
		if cs.Source == nil {
			return nil, errUnimplemented("Costmap")
		}
		return cs.Source.Costmap(ctx)
	}
	return cs.CostmapFunc(ctx)
}
