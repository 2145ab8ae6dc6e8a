package sim

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/localnav/utils"
)

// Circle is a round obstacle such as a pillar.
type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Wall is a line segment obstacle of zero thickness.
type Wall struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// World is the static 2D environment the simulated robot drives in.
type World struct {
	Circles []Circle `json:"circles,omitempty"`
	Walls   []Wall   `json:"walls,omitempty"`
}

// Validate ensures all parts of the world are valid.
func (w *World) Validate(path string) error {
	for i, c := range w.Circles {
		if !(c.Radius > 0) {
			return utils.NewConfigValidationError(path, errors.Errorf("circle %d: radius must be positive", i))
		}
	}
	for i, wall := range w.Walls {
		if wall.X1 == wall.X2 && wall.Y1 == wall.Y2 {
			return utils.NewConfigValidationError(path, errors.Errorf("wall %d has no length", i))
		}
	}
	return nil
}

// Box returns a closed rectangle of walls with corners (minX, minY) and (maxX, maxY).
func Box(minX, minY, maxX, maxY float64) []Wall {
	return []Wall{
		{minX, minY, maxX, minY},
		{maxX, minY, maxX, maxY},
		{maxX, maxY, minX, maxY},
		{minX, maxY, minX, minY},
	}
}

// Nearest returns the obstacle point closest to p and its distance. With no obstacles the
// distance is +Inf.
func (w *World) Nearest(p r3.Vector) (r3.Vector, float64) {
	p.Z = 0
	type hit struct {
		pt   r3.Vector
		dist float64
	}
	hits := append(
		lo.Map(w.Circles, func(c Circle, _ int) hit {
			center := r3.Vector{X: c.X, Y: c.Y}
			d := p.Sub(center)
			n := d.Norm()
			if n == 0 {
				return hit{center.Add(r3.Vector{X: c.Radius}), -c.Radius}
			}
			return hit{center.Add(d.Mul(c.Radius / n)), n - c.Radius}
		}),
		lo.Map(w.Walls, func(wall Wall, _ int) hit {
			pt := closestOnSegment(p, wall)
			return hit{pt, p.Sub(pt).Norm()}
		})...,
	)
	if len(hits) == 0 {
		return r3.Vector{}, math.Inf(1)
	}
	best := lo.MinBy(hits, func(a, b hit) bool { return a.dist < b.dist })
	return best.pt, best.dist
}

// Raycast returns the distance from origin along heading to the first obstacle, if one lies
// within maxRange.
func (w *World) Raycast(origin r3.Vector, heading, maxRange float64) (float64, bool) {
	origin.Z = 0
	dir := r3.Vector{X: math.Cos(heading), Y: math.Sin(heading)}
	best := math.Inf(1)
	for _, c := range w.Circles {
		if t, ok := rayCircle(origin, dir, c); ok {
			best = math.Min(best, t)
		}
	}
	for _, wall := range w.Walls {
		if t, ok := raySegment(origin, dir, wall); ok {
			best = math.Min(best, t)
		}
	}
	if best > maxRange {
		return 0, false
	}
	return best, true
}

func closestOnSegment(p r3.Vector, wall Wall) r3.Vector {
	a := r3.Vector{X: wall.X1, Y: wall.Y1}
	ab := r3.Vector{X: wall.X2, Y: wall.Y2}.Sub(a)
	t := p.Sub(a).Dot(ab) / ab.Norm2()
	return a.Add(ab.Mul(math.Max(0, math.Min(1, t))))
}

func rayCircle(origin, dir r3.Vector, c Circle) (float64, bool) {
	oc := origin.Sub(r3.Vector{X: c.X, Y: c.Y})
	b := oc.Dot(dir)
	disc := b*b - (oc.Norm2() - c.Radius*c.Radius)
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		return t, true
	}
	return 0, false
}

func raySegment(origin, dir r3.Vector, wall Wall) (float64, bool) {
	a := r3.Vector{X: wall.X1, Y: wall.Y1}
	s := r3.Vector{X: wall.X2, Y: wall.Y2}.Sub(a)
	denom := cross2(dir, s)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	ao := a.Sub(origin)
	t := cross2(ao, s) / denom
	u := cross2(ao, dir) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

func cross2(a, b r3.Vector) float64 {
	return a.X*b.Y - a.Y*b.X
}
