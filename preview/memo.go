package preview

import (
	"math"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/style"
)

// CellProps are the inputs of one page cell.
type CellProps struct {
	Page      *document.Page
	Zoom      float64
	Style     style.Config
	EstHeight float64
}

// SameCell reports whether a cell rendered with a can be reused for b: same
// page, zoom and style, with heights within NoiseThreshold.
func SameCell(a, b CellProps) bool {
	return a.Page == b.Page &&
		a.Zoom == b.Zoom &&
		a.Style == b.Style &&
		math.Abs(a.EstHeight-b.EstHeight) < NoiseThreshold
}
