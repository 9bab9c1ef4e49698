// Package document holds the parsed page model and normalizes both page
// schemas (blocks of sections, or bare sections) into one canonical shape.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoPages is returned when the payload lacks a "pages" array.
	ErrNoPages = errors.New("document has no pages array")
	// ErrMalformedPage is returned for a page carrying neither "blocks" nor "sections".
	ErrMalformedPage = errors.New("page has neither blocks nor sections")
)

// Block type values.
const (
	BlockRules   = "rules"
	BlockRewards = "rewards"
)

// Document is an ordered, immutable sequence of pages.
type Document struct {
	Pages []Page
}

// Page is one rendered image. Blocks is always populated after decoding;
// legacy pages get one block per section.
type Page struct {
	Region string
	Blocks []Block
	Legacy bool
}

type Block struct {
	Title    string
	Type     string
	Sections []Section
}

type Section struct {
	Title   string
	Content Lines
	Rewards []Reward
	Table   *Table
}

type Reward struct {
	Name  string
	Desc  string
	Image ImageRef
}

type Table struct {
	Headers []string `json:"headers"`
	Rows    [][]Cell `json:"rows"`
}

type Cell struct {
	Value   string   `json:"value"`
	IsImage bool     `json:"is_image"`
	Image   ImageRef `json:"image"`
}

// HasImage reports whether the cell should be drawn as an image.
func (c Cell) HasImage() bool { return c.IsImage && !c.Image.IsZero() }

// Columns returns the column count: the header count, or the widest row when
// the table has no headers.
func (t *Table) Columns() int {
	if t == nil {
		return 0
	}
	if n := len(t.Headers); n > 0 {
		return n
	}
	n := 0
	for _, row := range t.Rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// Sections returns every section of the page in document order.
func (p *Page) Sections() []Section {
	var out []Section
	for _, b := range p.Blocks {
		out = append(out, b.Sections...)
	}
	return out
}

// Lines is a sequence of text lines. It decodes from a string array or from a
// single string split on newlines.
type Lines []string

func (l *Lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitLines(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	*l = arr
	return nil
}

func splitLines(s string) Lines {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

type rawDocument struct {
	Pages *[]rawPage `json:"pages"`
}

type rawPage struct {
	Region   string        `json:"region"`
	Blocks   *[]rawBlock   `json:"blocks"`
	Sections *[]rawSection `json:"sections"`
}

type rawBlock struct {
	Title    string       `json:"block_title"`
	Type     string       `json:"block_type"`
	Sections []rawSection `json:"sections"`
}

type rawSection struct {
	Title   string      `json:"title"`
	Content Lines       `json:"content"`
	Rewards []rawReward `json:"rewards"`
	Table   *Table      `json:"table"`
}

type rawReward struct {
	Name  string   `json:"name"`
	Desc  string   `json:"desc"`
	Image ImageRef `json:"image"`
}

// Decode reads one document from r.
func Decode(r io.Reader) (*Document, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return FromJSON(raw)
}

// FromJSON builds a document from a JSON payload.
func FromJSON(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if raw.Pages == nil {
		return nil, ErrNoPages
	}
	doc := &Document{Pages: make([]Page, 0, len(*raw.Pages))}
	for i, rp := range *raw.Pages {
		p, err := rp.normalize()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, p)
	}
	return doc, nil
}

func (rp rawPage) normalize() (Page, error) {
	p := Page{Region: rp.Region}
	switch {
	case rp.Blocks != nil && (len(*rp.Blocks) > 0 || rp.Sections == nil):
		for _, rb := range *rp.Blocks {
			typ := rb.Type
			if typ == "" {
				typ = BlockRules
			}
			b := Block{Title: rb.Title, Type: typ}
			for _, rs := range rb.Sections {
				b.Sections = append(b.Sections, rs.section())
			}
			p.Blocks = append(p.Blocks, b)
		}
	case rp.Sections != nil:
		p.Legacy = true
		for _, rs := range *rp.Sections {
			p.Blocks = append(p.Blocks, Block{Type: BlockRules, Sections: []Section{rs.section()}})
		}
	default:
		return Page{}, ErrMalformedPage
	}
	return p, nil
}

func (rs rawSection) section() Section {
	s := Section{Title: rs.Title, Content: rs.Content, Table: rs.Table}
	for _, rr := range rs.Rewards {
		s.Rewards = append(s.Rewards, Reward{Name: rr.Name, Desc: rr.Desc, Image: rr.Image})
	}
	return s
}
