// Package style defines the page style configuration shared by preview and
// export rendering.
package style

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/sheetkit/coords"
)

var (
	ErrInvalidColor = errors.New("invalid hex color")
	ErrInvalidStyle = errors.New("invalid style")
)

// Config is the page style. It is a comparable value; two configs are the
// same style when they compare equal.
type Config struct {
	PageWidth    float64       `json:"pageWidth"`
	Pad          coords.Insets `json:"pad"`
	TitleColor   string        `json:"titleColor"`
	ContentColor string        `json:"contentColor"`
	Border       Border        `json:"border"`
	Font         Font          `json:"font"`
}

type Border struct {
	Image string        `json:"image"`
	Slice coords.Insets `json:"slice"`
}

type Font struct {
	Family     string  `json:"family"`
	Size       float64 `json:"size"`
	LineHeight float64 `json:"lineHeight"`
}

// Default returns the stock style.
func Default() Config {
	return Config{
		PageWidth:    750,
		Pad:          coords.Insets{T: 100, R: 48, B: 100, L: 48},
		TitleColor:   "#0f172a",
		ContentColor: "#334155",
		Border:       Border{Slice: coords.Insets{T: 100, R: 66, B: 100, L: 66}},
		Font:         Font{Family: "system-ui", Size: 24, LineHeight: 1.6},
	}
}

// Load decodes a JSON style over Default and validates it.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode style: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the numeric fields and colors.
func (c Config) Validate() error {
	if !positive(c.PageWidth) {
		return fmt.Errorf("%w: pageWidth must be positive, got %v", ErrInvalidStyle, c.PageWidth)
	}
	if !c.Pad.Valid() {
		return fmt.Errorf("%w: pad must be non-negative", ErrInvalidStyle)
	}
	if c.Pad.L+c.Pad.R >= c.PageWidth {
		return fmt.Errorf("%w: horizontal padding exceeds page width", ErrInvalidStyle)
	}
	if !positive(c.Font.Size) || !positive(c.Font.LineHeight) {
		return fmt.Errorf("%w: font size and line height must be positive", ErrInvalidStyle)
	}
	if _, err := ParseColor(c.TitleColor); err != nil {
		return fmt.Errorf("titleColor: %w", err)
	}
	if _, err := ParseColor(c.ContentColor); err != nil {
		return fmt.Errorf("contentColor: %w", err)
	}
	return nil
}

// ContentWidth is the page width minus horizontal padding.
func (c Config) ContentWidth() float64 { return c.PageWidth - c.Pad.L - c.Pad.R }

// LinePitch is the distance between consecutive text baselines.
func (c Config) LinePitch() float64 { return c.Font.Size * c.Font.LineHeight }

// Title returns the parsed title color, black when unparsable.
func (c Config) Title() color.NRGBA { return colorOr(c.TitleColor, color.NRGBA{A: 255}) }

// Content returns the parsed content color, black when unparsable.
func (c Config) Content() color.NRGBA { return colorOr(c.ContentColor, color.NRGBA{A: 255}) }

func colorOr(hex string, fallback color.NRGBA) color.NRGBA {
	c, err := ParseColor(hex)
	if err != nil {
		return fallback
	}
	return c
}

// ParseColor parses #rgb, #rrggbb and #rrggbbaa.
func ParseColor(hex string) (color.NRGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 || !strings.HasPrefix(strings.TrimSpace(hex), "#") {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }
