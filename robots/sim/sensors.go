package sim

import (
	"context"
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/localnav/components/bumper"
	"go.viam.com/localnav/components/lidar"
	"go.viam.com/localnav/costmap"
)

// NextScan raycasts the world from the current pose. Beams that hit nothing within range are NaN.
func (r *Robot) NextScan(ctx context.Context) (*lidar.Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.advanceLocked()
	origin, th := r3.Vector{X: r.x, Y: r.y}, r.th
	now := r.last
	r.mu.Unlock()

	lc := r.cfg.Lidar
	scan := lidar.NewUniformScan(lc.Samples, lc.AngleMin, lc.AngleMax, math.NaN())
	scan.RangeMax = lc.RangeMax
	scan.Frame = r.cfg.Names.Lidar
	scan.Time = now
	for i := range scan.Ranges {
		if d, ok := r.cfg.World.Raycast(origin, th+scan.Bearing(i), lc.RangeMax); ok {
			scan.Ranges[i] = d
		}
	}
	r.scans.Inc()
	return scan, nil
}

// Poll returns the contact latched by the last refused motion, once.
func (r *Robot) Poll(ctx context.Context) (*bumper.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advanceLocked()
	if r.contact == nil {
		return nil, nil
	}
	ev := &bumper.Event{Contact: *r.contact, Active: true}
	r.contact = nil
	return ev, nil
}

// Costmap renders the world into a grid once and returns it on every call. Cells within the
// inflation radius of an obstacle are lethal; cost decays linearly to zero over the decay distance.
func (r *Robot) Costmap(ctx context.Context) (*costmap.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.gridOnce.Do(func() {
		r.grid, r.gridErr = r.renderCostmap()
	})
	return r.grid, r.gridErr
}

func (r *Robot) renderCostmap() (*costmap.Grid, error) {
	cc := r.cfg.Costmap
	g, err := costmap.NewGrid(cc.Width, cc.Height, cc.Resolution, r3.Vector{X: cc.OriginX, Y: cc.OriginY})
	if err != nil {
		return nil, err
	}
	g.Frame = r.cfg.Frame
	for cy := 0; cy < g.Height; cy++ {
		for cx := 0; cx < g.Width; cx++ {
			if cost := inflatedCost(r.cfg.World, g.CellCenter(cx, cy), cc); cost > 0 {
				if err := g.SetCost(cx, cy, cost); err != nil {
					return nil, err
				}
			}
		}
	}
	r.logger.Debugf("rendered %dx%d costmap at %.2fm", g.Width, g.Height, g.Resolution)
	return g, nil
}

func inflatedCost(w World, p r3.Vector, cc CostmapConfig) int {
	_, d := w.Nearest(p)
	switch {
	case d <= cc.InflationRadius:
		return cc.LethalCost
	case d >= cc.InflationRadius+cc.DecayDistance:
		return 0
	default:
		frac := 1 - (d-cc.InflationRadius)/cc.DecayDistance
		return int(float64(cc.LethalCost-1) * frac)
	}
}
