package costmap

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/localnav/utils"
)

const gradTieTolerance = 1e-9

// EscapeCell is one partition of the escape window.
type EscapeCell struct {
	Col, Row int
	Center   r3.Vector
	Risk     float64
	Grad     float64
	Bearing  float64
	// Misalignment is the absolute angle between the robot heading and Bearing.
	Misalignment float64
}

// ScoreEscapeCells partitions the window of margin meters around p into divX by divY cells and
// scores each by its mean absolute cost. Grad is a cell's risk minus the center cell's risk; the
// center cell gets +Inf so it is never chosen. Off-grid costmap cells count as unknown.
func (g *Grid) ScoreEscapeCells(p r3.Vector, yaw, margin float64, divX, divY int) ([]EscapeCell, error) {
	if divX <= 0 || divY <= 0 || divX%2 == 0 || divY%2 == 0 {
		return nil, errors.Errorf("escape partition must be odd and positive, got %dx%d", divX, divY)
	}
	w := g.WindowAround(p, margin)
	if w.Width() < divX || w.Height() < divY {
		return nil, errors.Errorf("escape window of %dx%d cells cannot be split %dx%d", w.Width(), w.Height(), divX, divY)
	}

	cells := make([]EscapeCell, 0, divX*divY)
	values := make([]float64, 0, (w.Width()/divX+1)*(w.Height()/divY+1))
	for row := 0; row < divY; row++ {
		y0 := w.MinY + row*w.Height()/divY
		y1 := w.MinY + (row+1)*w.Height()/divY
		for col := 0; col < divX; col++ {
			x0 := w.MinX + col*w.Width()/divX
			x1 := w.MinX + (col+1)*w.Width()/divX
			values = values[:0]
			for cy := y0; cy < y1; cy++ {
				for cx := x0; cx < x1; cx++ {
					values = append(values, math.Abs(float64(g.costOrUnknown(cx, cy))))
				}
			}
			center := g.CellCenter(x0, y0).Add(g.CellCenter(x1-1, y1-1)).Mul(0.5)
			bearing := math.Atan2(center.Y-p.Y, center.X-p.X)
			cells = append(cells, EscapeCell{
				Col:          col,
				Row:          row,
				Center:       center,
				Risk:         stat.Mean(values, nil),
				Bearing:      bearing,
				Misalignment: math.Abs(utils.AngleDiff(bearing, yaw)),
			})
		}
	}

	centerIdx := (divY/2)*divX + divX/2
	centerRisk := cells[centerIdx].Risk
	for i := range cells {
		if i == centerIdx {
			cells[i].Grad = math.Inf(1)
			continue
		}
		cells[i].Grad = cells[i].Risk - centerRisk
	}
	return cells, nil
}

// SelectEscape picks the cell with the lowest grad, breaking ties by the smallest misalignment.
// The second return value reports whether that cell is less risky than the center.
func SelectEscape(cells []EscapeCell) (EscapeCell, bool) {
	if len(cells) == 0 {
		return EscapeCell{}, false
	}
	best := lo.MinBy(cells, func(a, b EscapeCell) bool {
		if math.Abs(a.Grad-b.Grad) <= gradTieTolerance {
			return a.Misalignment < b.Misalignment
		}
		return a.Grad < b.Grad
	})
	return best, best.Grad < 0
}
