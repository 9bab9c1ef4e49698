// Package fonts resolves style font families to faces for measuring and
// rasterizing text. The embedded Go fonts serve any family that has not been
// registered.
package fonts

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"

	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily names the embedded Go font family.
const DefaultFamily = "go"

type variant struct {
	raster *opentype.Font
	shape  *gofont.Face
}

func parseVariant(data []byte) (*variant, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("font data is empty")
	}
	raster, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	shape, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse font for shaping: %w", err)
	}
	return &variant{raster: raster, shape: shape}, nil
}

type faceKey struct {
	bold bool
	size int64 // 1/64 px
}

type metrics struct{ ascent, descent float64 }

// Family is a regular/bold pair of one typeface. Measuring is safe for
// concurrent use; faces returned by Face are not and belong to the caller.
type Family struct {
	Name    string
	regular *variant
	bold    *variant

	mu      sync.Mutex
	metrics map[faceKey]metrics
	shaper  shaping.HarfbuzzShaper
}

func newFamily(name string, regular, bold []byte) (*Family, error) {
	r, err := parseVariant(regular)
	if err != nil {
		return nil, fmt.Errorf("%s regular: %w", name, err)
	}
	b := r
	if len(bold) > 0 {
		if b, err = parseVariant(bold); err != nil {
			return nil, fmt.Errorf("%s bold: %w", name, err)
		}
	}
	return &Family{Name: name, regular: r, bold: b, metrics: make(map[faceKey]metrics)}, nil
}

func (f *Family) variant(bold bool) *variant {
	if bold {
		return f.bold
	}
	return f.regular
}

// Face returns a new rasterizing face at px pixels. A face keeps glyph
// buffers, so it must not be shared between goroutines.
func (f *Family) Face(bold bool, px float64) (font.Face, error) {
	return f.newFace(faceKey{bold: bold, size: int64(math.Round(px * 64))})
}

func (f *Family) newFace(key faceKey) (font.Face, error) {
	face, err := opentype.NewFace(f.variant(key.bold).raster, &opentype.FaceOptions{
		Size:    float64(key.size) / 64,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("new face %s %.2fpx: %w", f.Name, float64(key.size)/64, err)
	}
	return face, nil
}

// Advance returns the shaped width of text at size.
func (f *Family) Advance(text string, bold bool, size float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return shapeAdvance(&f.shaper, f.variant(bold).shape, text, size)
}

// Metrics returns ascent and descent at px pixels.
func (f *Family) Metrics(bold bool, px float64) (ascent, descent float64) {
	key := faceKey{bold: bold, size: int64(math.Round(px * 64))}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.metrics[key]; ok {
		return m.ascent, m.descent
	}
	face, err := f.newFace(key)
	if err != nil {
		return px * 0.8, px * 0.2
	}
	fm := face.Metrics()
	face.Close()
	m := metrics{ascent: float64(fm.Ascent) / 64, descent: float64(fm.Descent) / 64}
	f.metrics[key] = m
	return m.ascent, m.descent
}

// Registry maps family names to families.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*Family
	fallback *Family
}

// NewRegistry returns a registry holding the embedded Go family.
func NewRegistry() *Registry {
	fallback, err := newFamily(DefaultFamily, goregular.TTF, gobold.TTF)
	if err != nil {
		panic(fmt.Sprintf("fonts: embedded Go font: %v", err))
	}
	return &Registry{
		families: map[string]*Family{DefaultFamily: fallback},
		fallback: fallback,
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Register adds a family from TrueType/OpenType data. bold may be nil, in
// which case the regular face is used for bold text.
func (r *Registry) Register(name string, regular, bold []byte) error {
	key := normalizeName(name)
	if key == "" {
		return fmt.Errorf("font family name is empty")
	}
	fam, err := newFamily(name, regular, bold)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.families[key] = fam
	r.mu.Unlock()
	return nil
}

// Lookup resolves a CSS-like family list ("Noto Sans, sans-serif") to the
// first registered family, falling back to the embedded Go family.
func (r *Registry) Lookup(families string) *Family {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range strings.Split(families, ",") {
		if fam, ok := r.families[normalizeName(name)]; ok {
			return fam
		}
	}
	return r.fallback
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'`))
}
