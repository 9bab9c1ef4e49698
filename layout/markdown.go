package layout

import (
	"strings"
	"sync"
	"unicode"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// inlineParsers hold parsers that only recognize paragraphs and emphasis, so
// list markers, headings and similar block syntax in content lines stay
// literal.
var inlineParsers = sync.Pool{New: func() any {
	return parser.NewParser(
		parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 100)),
		parser.WithInlineParsers(util.Prioritized(parser.NewEmphasisParser(), 100)),
	)
}}

// ParseInline splits a content line into spans, marking **strong** text
// bold. Single emphasis and markers inside a word are kept as literal text.
func ParseInline(source string) []Span {
	if source == "" {
		return nil
	}
	if !strings.ContainsAny(source, "*_") {
		return []Span{{Text: source}}
	}
	src := []byte(source)
	p := inlineParsers.Get().(parser.Parser)
	doc := p.Parse(text.NewReader(src))
	inlineParsers.Put(p)

	var spans []Span
	appendText := func(s string, bold bool) {
		if s == "" {
			return
		}
		if n := len(spans); n > 0 && spans[n-1].Bold == bold {
			spans[n-1].Text += s
			return
		}
		spans = append(spans, Span{Text: s, Bold: bold})
	}

	first := true
	for block := doc.FirstChild(); block != nil; block = block.NextSibling() {
		if !first {
			appendText("\n", false)
		}
		first = false
		walkInline(block, src, false, appendText)
	}
	return spans
}

func walkInline(node ast.Node, src []byte, bold bool, emit func(string, bool)) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			emit(string(n.Segment.Value(src)), bold)
			if n.SoftLineBreak() || n.HardLineBreak() {
				emit("\n", bold)
			}
		case *ast.String:
			emit(string(n.Value), bold)
		case *ast.Emphasis:
			opening, closing, ok := delimiters(n, src)
			if !ok {
				walkInline(n, src, bold, emit)
				continue
			}
			// Only **strong** outside a word becomes bold; everything
			// else keeps its markers as typed.
			if n.Level >= 2 && !intraword(src, opening.Start, closing.Stop) {
				walkInline(n, src, true, emit)
				continue
			}
			emit(string(opening.Value(src)), bold)
			walkInline(n, src, bold, emit)
			emit(string(closing.Value(src)), bold)
		default:
			walkInline(n, src, bold, emit)
		}
	}
}

// delimiters returns the source ranges of an emphasis node's opening and
// closing markers.
func delimiters(n *ast.Emphasis, src []byte) (opening, closing text.Segment, ok bool) {
	first, last := firstText(n), lastText(n)
	if first == nil || last == nil {
		return opening, closing, false
	}
	// Nested emphasis at the edges shares the marker run, so skip the
	// markers of the inner levels.
	start := first.Segment.Start - nested(n, ast.Node.FirstChild)
	stop := last.Segment.Stop + nested(n, ast.Node.LastChild)
	if start-n.Level < 0 || stop+n.Level > len(src) {
		return opening, closing, false
	}
	return text.NewSegment(start-n.Level, start), text.NewSegment(stop, stop+n.Level), true
}

// nested sums the levels of emphasis nodes strictly inside n along the
// chain of children picked by next.
func nested(n ast.Node, next func(ast.Node) ast.Node) int {
	depth := 0
	for c := next(n); c != nil; c = next(c) {
		e, ok := c.(*ast.Emphasis)
		if !ok {
			break
		}
		depth += e.Level
	}
	return depth
}

func firstText(n ast.Node) *ast.Text {
	for c := n.FirstChild(); c != nil; c = c.FirstChild() {
		if t, ok := c.(*ast.Text); ok {
			return t
		}
	}
	return nil
}

func lastText(n ast.Node) *ast.Text {
	for c := n.LastChild(); c != nil; c = c.LastChild() {
		if t, ok := c.(*ast.Text); ok {
			return t
		}
	}
	return nil
}

// intraword reports whether a marker run spanning [start, stop) sits between
// two word characters, as in 2**3**4.
func intraword(src []byte, start, stop int) bool {
	return start > 0 && stop < len(src) && isWordByte(src[start-1]) && isWordByte(src[stop])
}

func isWordByte(b byte) bool {
	return b >= 0x80 || b == '_' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}
