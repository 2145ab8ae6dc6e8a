// Package costmap holds a 2D cost grid and the window queries used to keep a robot and its goals
// out of lethal space.
package costmap

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Cell costs.
const (
	Unknown       = -1
	Free          = 0
	DefaultLethal = 100
)

// ErrOutOfBounds is returned when a cell lies outside the grid.
var ErrOutOfBounds = errors.New("cell out of costmap bounds")

// A Source provides the latest costmap on demand.
type Source interface {
	Costmap(ctx context.Context) (*Grid, error)
}

// Grid is a row-major cost grid. Cell (0, 0) has its lower left corner at Origin.
type Grid struct {
	Width      int
	Height     int
	Resolution float64
	Origin     r3.Vector
	Frame      string
	Data       []int
}

// NewGrid returns a grid of the given size with every cell Free.
func NewGrid(width, height int, resolution float64, origin r3.Vector) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("costmap dimensions must be positive, got %dx%d", width, height)
	}
	if !(resolution > 0) {
		return nil, errors.Errorf("costmap resolution must be positive, got %v", resolution)
	}
	return &Grid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Origin:     origin,
		Data:       make([]int, width*height),
	}, nil
}

// InBounds reports whether the cell is on the grid.
func (g *Grid) InBounds(cx, cy int) bool {
	return cx >= 0 && cy >= 0 && cx < g.Width && cy < g.Height
}

// Cost returns the cost of a cell.
func (g *Grid) Cost(cx, cy int) (int, error) {
	if !g.InBounds(cx, cy) {
		return Unknown, ErrOutOfBounds
	}
	return g.Data[cy*g.Width+cx], nil
}

// costOrUnknown treats cells off the grid as unknown.
func (g *Grid) costOrUnknown(cx, cy int) int {
	if !g.InBounds(cx, cy) {
		return Unknown
	}
	return g.Data[cy*g.Width+cx]
}

// SetCost sets the cost of a cell.
func (g *Grid) SetCost(cx, cy, cost int) error {
	if !g.InBounds(cx, cy) {
		return ErrOutOfBounds
	}
	g.Data[cy*g.Width+cx] = cost
	return nil
}

// WorldToCell returns the cell containing the planar point p. The cell may be off the grid.
func (g *Grid) WorldToCell(p r3.Vector) (int, int) {
	cx := int(math.Floor((p.X - g.Origin.X) / g.Resolution))
	cy := int(math.Floor((p.Y - g.Origin.Y) / g.Resolution))
	return cx, cy
}

// CellCenter returns the world position of the center of a cell.
func (g *Grid) CellCenter(cx, cy int) r3.Vector {
	return r3.Vector{
		X: g.Origin.X + (float64(cx)+0.5)*g.Resolution,
		Y: g.Origin.Y + (float64(cy)+0.5)*g.Resolution,
	}
}

// Window is an inclusive rectangle of cells. It may extend past the grid.
type Window struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Width returns the number of columns in the window.
func (w Window) Width() int {
	return w.MaxX - w.MinX + 1
}

// Height returns the number of rows in the window.
func (w Window) Height() int {
	return w.MaxY - w.MinY + 1
}

// WindowAround returns the square window of cells within margin meters of the cell holding p.
func (g *Grid) WindowAround(p r3.Vector, margin float64) Window {
	cx, cy := g.WorldToCell(p)
	r := int(math.Ceil(max(margin, 0) / g.Resolution))
	return Window{MinX: cx - r, MinY: cy - r, MaxX: cx + r, MaxY: cy + r}
}

// AnyLethal reports whether any on-grid cell of w costs at least lethal.
func (g *Grid) AnyLethal(w Window, lethal int) bool {
	for cy := max(w.MinY, 0); cy <= min(w.MaxY, g.Height-1); cy++ {
		for cx := max(w.MinX, 0); cx <= min(w.MaxX, g.Width-1); cx++ {
			if g.Data[cy*g.Width+cx] >= lethal {
				return true
			}
		}
	}
	return false
}

// Lethal reports whether any lethal cell lies within margin of p.
func (g *Grid) Lethal(p r3.Vector, margin float64, lethal int) bool {
	return g.AnyLethal(g.WindowAround(p, margin), lethal)
}
