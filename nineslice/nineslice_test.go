package nineslice

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/coords"
)

// unoverlapped strips the seam overlap from a region's destination.
func unoverlapped(r Region, dst coords.Rect) (x0, x1, y0, y1 float64) {
	x0, x1 = r.Dst.X, r.Dst.MaxX()
	y0, y1 = r.Dst.Y, r.Dst.MaxY()
	if x0 > dst.X {
		x0 += Overlap
	}
	if x1 < dst.MaxX() {
		x1 -= Overlap
	}
	if y0 > dst.Y {
		y0 += Overlap
	}
	if y1 < dst.MaxY() {
		y1 -= Overlap
	}
	return
}

func TestPlanReconstructsTarget(t *testing.T) {
	tests := []struct {
		name  string
		dst   coords.Rect
		src   image.Point
		slice coords.Insets
	}{
		{"default border", coords.Rect{W: 750, H: 1600}, image.Pt(300, 400), coords.Insets{T: 100, R: 66, B: 100, L: 66}},
		{"fractional zoom", coords.Rect{X: 3.5, Y: 7.25, W: 562.5, H: 931.7}, image.Pt(200, 200), coords.Insets{T: 40, R: 40, B: 40, L: 40}},
		{"asymmetric", coords.Rect{W: 500, H: 300}, image.Pt(90, 120), coords.Insets{T: 10, R: 30, B: 50, L: 20}},
		{"zero slices", coords.Rect{W: 100, H: 100}, image.Pt(10, 10), coords.Insets{}},
		{"slices cover source", coords.Rect{W: 400, H: 400}, image.Pt(100, 100), coords.Insets{T: 50, R: 50, B: 50, L: 50}},
		{"slices overlap source", coords.Rect{W: 400, H: 300}, image.Pt(100, 100), coords.Insets{T: 70, R: 60, B: 40, L: 60}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			regions := Plan(tc.dst, tc.src, tc.slice)
			if len(regions) == 0 {
				t.Fatalf("no regions planned")
			}
			var row, col float64
			var drawnRow, drawnCol float64
			for _, r := range regions {
				x0, x1, y0, y1 := unoverlapped(r, tc.dst)
				if r.Dst.Y == tc.dst.Y {
					row += x1 - x0
					drawnRow += r.Dst.W
				}
				if r.Dst.X == tc.dst.X {
					col += y1 - y0
					drawnCol += r.Dst.H
				}
				if !r.Src.In(image.Rectangle{Max: tc.src}) {
					t.Errorf("%s crop %v outside source", r.Name, r.Src)
				}
			}
			if math.Abs(row-tc.dst.W) > 1e-9 {
				t.Errorf("row spans sum to %v, want %v", row, tc.dst.W)
			}
			if math.Abs(col-tc.dst.H) > 1e-9 {
				t.Errorf("column spans sum to %v, want %v", col, tc.dst.H)
			}
			if d := drawnRow - tc.dst.W; d < 0 || d > 4*Overlap {
				t.Errorf("drawn row exceeds overlap tolerance by %v", d)
			}
			if d := drawnCol - tc.dst.H; d < 0 || d > 4*Overlap {
				t.Errorf("drawn column exceeds overlap tolerance by %v", d)
			}
		})
	}
}

func TestPlanCornersNativeAndOrder(t *testing.T) {
	regions := Plan(coords.Rect{W: 400, H: 300}, image.Pt(100, 100), coords.Insets{T: 20, R: 30, B: 20, L: 30})
	if len(regions) != 9 {
		t.Fatalf("expected 9 regions, got %d", len(regions))
	}
	if regions[0].Name != "center" {
		t.Fatalf("center should be drawn first, got %s", regions[0].Name)
	}
	byName := map[string]Region{}
	for _, r := range regions {
		byName[r.Name] = r
	}
	tl := byName["top-left"]
	if tl.Dst != (coords.Rect{W: 31, H: 21}) || tl.Src != image.Rect(0, 0, 31, 21) {
		t.Fatalf("top-left = %+v", tl)
	}
	br := byName["bottom-right"]
	if br.Dst != (coords.Rect{X: 369, Y: 279, W: 31, H: 21}) || br.Src != image.Rect(69, 79, 100, 100) {
		t.Fatalf("bottom-right = %+v", br)
	}
	top := byName["top"]
	if top.Dst.X != 29 || top.Dst.W != 342 || top.Src != image.Rect(29, 0, 71, 21) {
		t.Fatalf("top = %+v", top)
	}
	for _, name := range []string{"top-left", "top-right", "bottom-left", "bottom-right"} {
		if i := indexOf(regions, name); i < 5 {
			t.Errorf("corner %s drawn before edges (index %d)", name, i)
		}
	}
}

func indexOf(regions []Region, name string) int {
	for i, r := range regions {
		if r.Name == name {
			return i
		}
	}
	return -1
}

func TestPlanOmitsEmptyRegions(t *testing.T) {
	regions := Plan(coords.Rect{W: 100, H: 100}, image.Pt(50, 50), coords.Insets{T: 10, B: 10})
	for _, r := range regions {
		switch r.Name {
		case "top-left", "left", "bottom-left", "top-right", "right", "bottom-right":
			t.Errorf("zero-width column region %s planned", r.Name)
		}
	}
	if len(regions) != 3 {
		t.Fatalf("expected top, center and bottom, got %d", len(regions))
	}
}

func TestPlanStretchesSeamWhenSlicesCoverSource(t *testing.T) {
	regions := Plan(coords.Rect{W: 400, H: 400}, image.Pt(100, 100), coords.Insets{T: 50, R: 50, B: 50, L: 50})
	if len(regions) != 9 {
		t.Fatalf("expected all nine regions, got %d", len(regions))
	}
	for _, r := range regions {
		if r.Name != "center" {
			continue
		}
		if r.Src.Empty() || !r.Src.In(image.Rect(0, 0, 100, 100)) {
			t.Fatalf("center crop %v", r.Src)
		}
		if r.Dst.W < 300 || r.Dst.H < 300 {
			t.Fatalf("center should fill the middle span, got %+v", r.Dst)
		}
		return
	}
	t.Fatalf("center region missing")
}

func TestPlanDegenerateInput(t *testing.T) {
	ok := coords.Insets{T: 10, R: 10, B: 10, L: 10}
	tests := []struct {
		name  string
		dst   coords.Rect
		src   image.Point
		slice coords.Insets
	}{
		{"zero width", coords.Rect{W: 0, H: 10}, image.Pt(50, 50), ok},
		{"negative height", coords.Rect{W: 10, H: -1}, image.Pt(50, 50), ok},
		{"nan target", coords.Rect{W: math.NaN(), H: 10}, image.Pt(50, 50), ok},
		{"empty source", coords.Rect{W: 10, H: 10}, image.Pt(0, 50), ok},
		{"negative slice", coords.Rect{W: 10, H: 10}, image.Pt(50, 50), coords.Insets{T: -1}},
		{"infinite slice", coords.Rect{W: 10, H: 10}, image.Pt(50, 50), coords.Insets{L: math.Inf(1)}},
		{"slice equals source", coords.Rect{W: 10, H: 10}, image.Pt(50, 50), coords.Insets{L: 50}},
		{"slice exceeds source", coords.Rect{W: 10, H: 10}, image.Pt(50, 50), coords.Insets{B: 60}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Plan(tc.dst, tc.src, tc.slice); got != nil {
				t.Fatalf("expected no regions, got %d", len(got))
			}
		})
	}
}

func TestDrawOnRaster(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 30, 30))
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			c := green
			if x < 10 || x >= 20 || y < 10 || y >= 20 {
				c = red
			}
			src.SetRGBA(x, y, c)
		}
	}
	r := builder.NewRaster(120, 90, 1.5)
	Draw(r, coords.Rect{W: 120, H: 90}, src, coords.Insets{T: 10, R: 10, B: 10, L: 10})
	img := r.Image()
	if got := img.RGBAAt(2, 2); got != red {
		t.Errorf("corner pixel = %v", got)
	}
	if got := img.RGBAAt(90, 67); got != green {
		t.Errorf("center pixel = %v", got)
	}
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		if img.RGBAAt(x, b.Max.Y-1).A == 255 && img.RGBAAt(x, b.Max.Y-1) == (color.RGBA{255, 255, 255, 255}) {
			t.Fatalf("seam at bottom row x=%d", x)
		}
	}

	untouched := builder.NewRaster(10, 10, 1)
	Draw(untouched, coords.Rect{W: 10, H: 10}, src, coords.Insets{L: 40})
	if got := untouched.Image().RGBAAt(5, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("oversized slice should draw nothing, got %v", got)
	}
}
