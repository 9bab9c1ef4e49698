package page

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"testing"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/style"
)

func dataURL(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func samplePage() *document.Page {
	return &document.Page{
		Region: "EU",
		Blocks: []document.Block{{
			Title: "Event Rules",
			Type:  document.BlockRules,
			Sections: []document.Section{
				{Title: "How to play", Content: document.Lines{"Log in **daily** to collect stars.", "", "Stars reset every Monday."}},
				{Rewards: []document.Reward{{Name: "Gold", Desc: "x500"}, {Name: "Gem"}}},
				{Table: &document.Table{
					Headers: []string{"Rank", "Prize"},
					Rows:    [][]document.Cell{{{Value: "1"}, {Value: "Crown"}}, {{Value: "2-10"}, {Value: "Shield"}}},
				}},
			},
		}},
	}
}

func TestLayoutEmptyPageIsPadding(t *testing.T) {
	st := style.Default()
	l, err := NewRenderer().Layout(context.Background(), &document.Page{}, st)
	if err != nil {
		t.Fatal(err)
	}
	if want := st.Pad.T + st.Pad.B; l.Height != want {
		t.Fatalf("Height = %v, want %v", l.Height, want)
	}
}

func TestLayoutMeasuresContent(t *testing.T) {
	st := style.Default()
	r := NewRenderer()
	l, err := r.Layout(context.Background(), samplePage(), st)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Tables) != 1 {
		t.Fatalf("expected one table, got %d", len(l.Tables))
	}
	tl := l.Tables[0]
	if !tl.Settled {
		t.Fatalf("table should settle")
	}
	if tl.Y+tl.Height+st.Pad.B != l.Height {
		t.Fatalf("table should end the page: table bottom %v, page %v", tl.Y+tl.Height, l.Height)
	}
	if tl.Width != st.ContentWidth() || tl.X != st.Pad.L {
		t.Fatalf("table placed at x=%v width=%v", tl.X, tl.Width)
	}

	longer := samplePage()
	longer.Blocks[0].Sections[0].Content = append(longer.Blocks[0].Sections[0].Content, "one more line of rules")
	l2, err := r.Layout(context.Background(), longer, st)
	if err != nil {
		t.Fatal(err)
	}
	if l2.Height <= l.Height {
		t.Fatalf("more content should measure taller: %v <= %v", l2.Height, l.Height)
	}
}

func TestRenderMeasuredHeightAndRatio(t *testing.T) {
	st := style.Default()
	var measured float64
	res, err := NewRenderer().Render(context.Background(), samplePage(), st, RenderOptions{
		PixelRatio: 2,
		OnMeasured: func(h float64) { measured = h },
	})
	if err != nil {
		t.Fatal(err)
	}
	if measured == 0 || res.Measured != measured || res.Height != measured {
		t.Fatalf("measured=%v result=%+v", measured, res)
	}
	b := res.Image.Bounds()
	if b.Dx() != int(st.PageWidth*2) {
		t.Fatalf("width = %d", b.Dx())
	}
	if want := int(math.Ceil(measured * 2)); b.Dy() != want {
		t.Fatalf("height = %d, want %d", b.Dy(), want)
	}
}

func TestRenderFixedHeightWithBorder(t *testing.T) {
	st := style.Default()
	red := color.RGBA{200, 0, 0, 255}
	st.Border.Image = dataURL(t, 300, 300, red)
	res, err := NewRenderer().Render(context.Background(), &document.Page{}, st, RenderOptions{Height: 1200})
	if err != nil {
		t.Fatal(err)
	}
	if res.Height != 1200 || res.Image.Bounds().Dy() != 1200 {
		t.Fatalf("expected the requested height, got %v", res.Height)
	}
	if got := res.Image.RGBAAt(5, 5); got != red {
		t.Fatalf("border corner = %v", got)
	}
	if got := res.Image.RGBAAt(375, 600); got != red {
		t.Fatalf("border center = %v", got)
	}
}

func TestRenderMissingImagesIsNotAnError(t *testing.T) {
	st := style.Default()
	st.Border.Image = "file:///nonexistent/border.png"
	p := samplePage()
	p.Blocks[0].Sections[1].Rewards[0].Image = document.Ref("file:///nonexistent/gold.png")
	if _, err := NewRenderer().Render(context.Background(), p, st, RenderOptions{}); err != nil {
		t.Fatalf("missing images must not fail rendering: %v", err)
	}
}

func TestRenderSharedAcrossGoroutines(t *testing.T) {
	st := style.Default()
	r := NewRenderer()
	want, err := r.Render(context.Background(), samplePage(), st, RenderOptions{PixelRatio: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Render(context.Background(), samplePage(), st, RenderOptions{PixelRatio: 1.5})
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got.Image.Pix, want.Image.Pix) {
				errs <- fmt.Errorf("concurrent render differs from serial render")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
