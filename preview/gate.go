package preview

import (
	"math"
	"sort"
)

// LookAhead is how far beyond the viewport pages are mounted.
const LookAhead = 400.0

// Extent is the vertical span of one page in scroll coordinates.
type Extent struct {
	Top, Bottom float64
}

// Extents stacks pages of the given logical heights at zoom, separated by
// gap. Scaled heights are rounded to whole units.
func Extents(heights []float64, zoom, gap float64) []Extent {
	out := make([]Extent, len(heights))
	var y float64
	for i, h := range heights {
		scaled := math.Round(h * zoom)
		out[i] = Extent{Top: y, Bottom: y + scaled}
		y += scaled + gap
	}
	return out
}

// Viewport is the visible scroll window.
type Viewport struct {
	Top, Height float64
}

// Gate tracks which pages intersect the viewport grown by a margin and
// reports boundary crossings.
type Gate struct {
	margin  float64
	visible map[int]bool
}

// NewGate creates a gate with the given look-ahead margin.
func NewGate(margin float64) *Gate {
	return &Gate{margin: margin, visible: make(map[int]bool)}
}

// Update recomputes visibility and returns the pages that entered and left
// the boundary, both in ascending order.
func (g *Gate) Update(extents []Extent, vp Viewport) (entered, left []int) {
	lo, hi := vp.Top-g.margin, vp.Top+vp.Height+g.margin
	for i, e := range extents {
		in := e.Bottom >= lo && e.Top <= hi
		switch {
		case in && !g.visible[i]:
			g.visible[i] = true
			entered = append(entered, i)
		case !in && g.visible[i]:
			delete(g.visible, i)
			left = append(left, i)
		}
	}
	for i := range g.visible {
		if i >= len(extents) {
			delete(g.visible, i)
			left = append(left, i)
		}
	}
	sort.Ints(left)
	return entered, left
}

// Visible reports whether page i is inside the boundary.
func (g *Gate) Visible(i int) bool { return g.visible[i] }

// Reset forgets all visibility.
func (g *Gate) Reset() { g.visible = make(map[int]bool) }
