// Package layout breaks styled text into lines that fit a width and draws
// them onto a page surface.
package layout

import (
	"image/color"
	"strings"
	"unicode"

	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/fonts"
)

// Align is the horizontal alignment of lines inside the wrap width.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Span is a run of text sharing one weight.
type Span struct {
	Text string
	Bold bool
}

// TextStyle configures wrapping and drawing.
type TextStyle struct {
	Family     *fonts.Family
	Size       float64
	LineHeight float64 // multiplier, e.g. 1.6
	Color      color.Color
	Align      Align
}

// Pitch is the vertical distance between consecutive lines.
func (s TextStyle) Pitch() float64 { return s.Size * s.LineHeight }

// Word is a measured token placed on a line.
type Word struct {
	Text  string
	Bold  bool
	Width float64
}

// Line is one wrapped line. Width excludes trailing spaces.
type Line struct {
	Words []Word
	Width float64
}

// Paragraph is the result of wrapping.
type Paragraph struct {
	Lines    []Line
	Style    TextStyle
	MaxWidth float64
}

// Height returns the stacked height of all lines.
func (p *Paragraph) Height() float64 {
	if p == nil {
		return 0
	}
	return float64(len(p.Lines)) * p.Style.Pitch()
}

// WrapText wraps plain text.
func WrapText(text string, maxWidth float64, st TextStyle) *Paragraph {
	return Wrap([]Span{{Text: text}}, maxWidth, st)
}

// Wrap greedily breaks spans at spaces into lines no wider than maxWidth.
// Words wider than a line are broken between characters. Newlines force a
// break, and ideographic characters may break anywhere.
func Wrap(spans []Span, maxWidth float64, st TextStyle) *Paragraph {
	p := &Paragraph{Style: st, MaxWidth: maxWidth}
	if st.Family == nil || st.Size <= 0 {
		return p
	}

	var (
		current      []Word
		currentWidth float64
		hasText      bool
	)
	flushLine := func(force bool) {
		for len(current) > 0 && current[len(current)-1].Text == " " {
			currentWidth -= current[len(current)-1].Width
			current = current[:len(current)-1]
		}
		if len(current) > 0 || force {
			p.Lines = append(p.Lines, Line{Words: current, Width: currentWidth})
		}
		current = nil
		currentWidth = 0
	}
	measure := func(s string, bold bool) float64 { return st.Family.Advance(s, bold, st.Size) }

	spaceW := map[bool]float64{}
	for _, span := range spans {
		if span.Text == "" {
			continue
		}
		hasText = true
		if _, ok := spaceW[span.Bold]; !ok {
			spaceW[span.Bold] = measure(" ", span.Bold)
		}
		sw := spaceW[span.Bold]

		for _, token := range tokenize(span.Text) {
			switch token {
			case "\n":
				flushLine(true)
				continue
			case " ":
				if len(current) == 0 {
					continue
				}
				if currentWidth+sw > maxWidth {
					flushLine(false)
				} else {
					current = append(current, Word{Text: " ", Bold: span.Bold, Width: sw})
					currentWidth += sw
				}
				continue
			}

			w := measure(token, span.Bold)
			if currentWidth+w <= maxWidth {
				current = append(current, Word{Text: token, Bold: span.Bold, Width: w})
				currentWidth += w
				continue
			}
			if w <= maxWidth {
				flushLine(false)
				current = append(current, Word{Text: token, Bold: span.Bold, Width: w})
				currentWidth = w
				continue
			}

			// Character-level wrapping
			flushLine(false)
			var sub strings.Builder
			subWidth := 0.0
			for _, r := range token {
				rw := measure(string(r), span.Bold)
				if subWidth+rw > maxWidth && sub.Len() > 0 {
					current = append(current, Word{Text: sub.String(), Bold: span.Bold, Width: subWidth})
					currentWidth = subWidth
					flushLine(false)
					sub.Reset()
					subWidth = 0
				}
				sub.WriteRune(r)
				subWidth += rw
			}
			if sub.Len() > 0 {
				current = append(current, Word{Text: sub.String(), Bold: span.Bold, Width: subWidth})
				currentWidth = subWidth
			}
		}
	}
	flushLine(hasText && len(p.Lines) == 0)
	return p
}

// tokenize splits text into words, single spaces, newlines and standalone
// ideographs.
func tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '\n':
			flush()
			tokens = append(tokens, "\n")
		case r == ' ' || r == '\t' || r == '\r':
			flush()
			tokens = append(tokens, " ")
		case breaksAnywhere(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func breaksAnywhere(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Draw paints the paragraph with its first line box at (x, y).
func (p *Paragraph) Draw(pb builder.PageBuilder, x, y float64) {
	if p == nil || p.Style.Family == nil {
		return
	}
	pitch := p.Style.Pitch()
	for i, line := range p.Lines {
		curX := x
		switch p.Style.Align {
		case AlignCenter:
			curX += (p.MaxWidth - line.Width) / 2
		case AlignRight:
			curX += p.MaxWidth - line.Width
		}
		top := y + float64(i)*pitch
		for _, run := range mergeRuns(line.Words) {
			pb.DrawText(run.Text, curX, top, builder.TextOptions{
				Family:     p.Style.Family,
				FontSize:   p.Style.Size,
				Bold:       run.Bold,
				Color:      p.Style.Color,
				LineHeight: pitch,
			})
			curX += run.Width
		}
	}
}

// mergeRuns joins adjacent words of the same weight.
func mergeRuns(words []Word) []Word {
	var out []Word
	for _, w := range words {
		if n := len(out); n > 0 && out[n-1].Bold == w.Bold {
			out[n-1].Text += w.Text
			out[n-1].Width += w.Width
			continue
		}
		out = append(out, w)
	}
	return out
}
