// Package nineslice stretches a bitmap into a rectangle by splitting it into
// four fixed corners, four edges stretched along one axis and a center
// stretched along both.
package nineslice

import (
	"image"
	"math"

	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/coords"
)

// Overlap is how far every region is extended toward its neighbours, in
// logical units and source pixels, so that fractional scaling leaves no
// visible seams.
const Overlap = 1.0

// Region is one source crop and where it lands.
type Region struct {
	Name string
	Src  image.Rectangle
	Dst  coords.Rect
}

// RegionDrawer is the drawing surface Draw needs. builder.PageBuilder
// satisfies it.
type RegionDrawer interface {
	DrawImageRegion(img image.Image, src image.Rectangle, dst coords.Rect) builder.PageBuilder
}

type segment struct {
	dst0, dst1 float64
	src0, src1 int
}

func (s segment) empty() bool { return s.dst1 <= s.dst0 || s.src1 <= s.src0 }

// axis splits one dimension into the near, middle and far segments. When
// the slices leave no source pixels between them, the middle is stretched
// from the one pixel strip at the seam.
func axis(dst, near, far float64, src int) [3]segment {
	mid := math.Max(0, dst-near-far)
	n, f := int(math.Round(near)), int(math.Round(far))
	m0, m1 := n, max(n, src-f)
	if m1 <= m0 && mid > 0 {
		m0 = min(max(n, 0), src-1)
		m1 = m0 + 1
	}
	return [3]segment{
		{dst0: 0, dst1: near, src0: 0, src1: n},
		{dst0: near, dst1: near + mid, src0: m0, src1: m1},
		{dst0: dst - far, dst1: dst, src0: src - f, src1: src},
	}
}

// grow extends segment i toward the non-empty segments next to it.
func grow(segs [3]segment, i int, src int) segment {
	s := segs[i]
	if i > 0 && !segs[i-1].empty() {
		s.dst0 -= Overlap
		s.src0 = max(0, s.src0-int(Overlap))
	}
	if i < 2 && !segs[i+1].empty() {
		s.dst1 += Overlap
		s.src1 = min(src, s.src1+int(Overlap))
	}
	return s
}

var names = [3][3]string{
	{"top-left", "top", "top-right"},
	{"left", "center", "right"},
	{"bottom-left", "bottom", "bottom-right"},
}

// Plan computes the regions that stretch a bitmap of size src into dst.
// It returns nil when dst has no area, src has no area, or any slice is
// negative, non-finite or not strictly smaller than the matching source
// dimension. Regions with no area are omitted. The center comes first and
// corners last so that corners stay on top.
func Plan(dst coords.Rect, src image.Point, slice coords.Insets) []Region {
	if !dst.Valid() || src.X <= 0 || src.Y <= 0 || !slice.Valid() {
		return nil
	}
	sw, sh := float64(src.X), float64(src.Y)
	if slice.L >= sw || slice.R >= sw || slice.T >= sh || slice.B >= sh {
		return nil
	}
	xs := axis(dst.W, slice.L, slice.R, src.X)
	ys := axis(dst.H, slice.T, slice.B, src.Y)

	var regions []Region
	for _, order := range [][2]int{
		{1, 1},
		{0, 1}, {2, 1}, {1, 0}, {1, 2},
		{0, 0}, {0, 2}, {2, 0}, {2, 2},
	} {
		row, col := order[0], order[1]
		x, y := xs[col], ys[row]
		if x.empty() || y.empty() {
			continue
		}
		x, y = grow(xs, col, src.X), grow(ys, row, src.Y)
		regions = append(regions, Region{
			Name: names[row][col],
			Src:  image.Rect(x.src0, y.src0, x.src1, y.src1),
			Dst: coords.Rect{
				X: dst.X + x.dst0,
				Y: dst.Y + y.dst0,
				W: x.dst1 - x.dst0,
				H: y.dst1 - y.dst0,
			},
		})
	}
	return regions
}

// Draw composites src into dst on d. Degenerate input draws nothing.
func Draw(d RegionDrawer, dst coords.Rect, src image.Image, slice coords.Insets) {
	if d == nil || src == nil {
		return
	}
	b := src.Bounds()
	for _, r := range Plan(dst, b.Size(), slice) {
		d.DrawImageRegion(src, r.Src.Add(b.Min), r.Dst)
	}
}
