// Package preview drives the interactive, virtualized page view: structural
// height estimates, frame-coalesced reconciliation with measured heights, and
// viewport gating that mounts real page surfaces only near the viewport.
package preview

import (
	"math"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/style"
)

// DefaultHeight sizes a placeholder for which no estimate exists yet.
const DefaultHeight = 1200.0

// Estimate returns the structural height of p under st, computed from content
// counts alone:
//
//	pad.t + pad.b + 200 + 180*blocks + Σ(2 + ceil(1.5*rewards) + lines) * size * lineHeight
//
// where the sum runs over every section.
func Estimate(p *document.Page, st style.Config) float64 {
	base := st.Pad.T + st.Pad.B + 200
	if p == nil {
		return base
	}
	var units float64
	for _, b := range p.Blocks {
		for _, s := range b.Sections {
			units += 2 + math.Ceil(float64(len(s.Rewards))*1.5) + float64(len(s.Content))
		}
	}
	return base + 180*float64(len(p.Blocks)) + units*st.LinePitch()
}

// EstimateAll estimates every page in order.
func EstimateAll(pages []document.Page, st style.Config) []float64 {
	out := make([]float64, len(pages))
	for i := range pages {
		out[i] = Estimate(&pages[i], st)
	}
	return out
}
