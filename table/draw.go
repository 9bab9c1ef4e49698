package table

import (
	"image/color"
	"math"

	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/coords"
)

var (
	headerFill    = color.NRGBA{R: 255, G: 255, B: 255, A: 51}
	rowFill       = color.NRGBA{R: 255, G: 255, B: 255, A: 26}
	separatorLine = builder.LineOptions{StrokeColor: color.NRGBA{A: 77}, LineWidth: 1}
)

// Draw paints the table: header background, header text and separators,
// then per data row its background, cells and separators.
func (l *Layout) Draw(pb builder.PageBuilder) {
	if l == nil || l.table == nil || l.ColWidth <= 0 {
		return
	}
	cols := l.table.Columns()
	p := l.Padding

	if l.HeaderHeight > 0 {
		pb.DrawRectangle(coords.Rect{X: l.X, Y: l.Y, W: l.Width, H: l.HeaderHeight}, builder.RectOptions{
			FillColor: headerFill,
			Radii:     [4]float64{CornerRadius, CornerRadius, 0, 0},
		})
		for c := 0; c < cols; c++ {
			key := CellKey{Row: HeaderRow, Col: c}
			if para := l.text[key]; para != nil {
				offset := math.Max(p, (l.HeaderHeight-l.heights[key])/2)
				para.Draw(pb, l.X+float64(c)*l.ColWidth+p, l.Y+offset)
			}
		}
		bottom := l.Y + l.HeaderHeight
		pb.DrawLine(l.X, bottom, l.X+l.Width, bottom, separatorLine)
		for c := 1; c < cols; c++ {
			x := l.X + float64(c)*l.ColWidth
			pb.DrawLine(x, l.Y, x, bottom, separatorLine)
		}
	}

	for r, row := range l.table.Rows {
		rowY := l.Y + l.RowY[r]
		rowH := l.RowHeight
		last := r == len(l.table.Rows)-1

		opts := builder.RectOptions{FillColor: rowFill}
		if last {
			opts.Radii = [4]float64{0, 0, CornerRadius, CornerRadius}
		}
		pb.DrawRectangle(coords.Rect{X: l.X, Y: rowY, W: l.Width, H: rowH}, opts)

		for c := 0; c < cols && c < len(row); c++ {
			key := CellKey{Row: r, Col: c}
			cellX := l.X + float64(c)*l.ColWidth
			if row[c].HasImage() {
				if img := l.images[key]; img != nil {
					builder.DrawFitted(pb, img, coords.Rect{X: cellX + p, Y: rowY + p, W: l.ColWidth - 2*p, H: rowH - 2*p})
				}
				continue
			}
			if para := l.text[key]; para != nil {
				offset := math.Max(p, (rowH-l.heights[key])/2)
				para.Draw(pb, cellX+p, rowY+offset)
			}
		}

		if !last {
			pb.DrawLine(l.X, rowY+rowH, l.X+l.Width, rowY+rowH, separatorLine)
		}
		for c := 1; c < len(row) && c < cols; c++ {
			x := l.X + float64(c)*l.ColWidth
			pb.DrawLine(x, rowY, x, rowY+rowH, separatorLine)
		}
	}
}
