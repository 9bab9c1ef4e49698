package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultSheetName names the single sheet of a bare document payload.
const DefaultSheetName = "Sheet1"

// ErrNoSheets is returned when a parse response carries no usable sheet.
var ErrNoSheets = errors.New("no sheets in payload")

// Sheet is one independently switchable document variant.
type Sheet struct {
	Name     string
	Document *Document
}

// Workbook is the ordered set of sheets of one ingestion.
type Workbook struct {
	Sheets  []Sheet
	Skipped []string
}

// Sheet returns the sheet with the given name.
func (w *Workbook) Sheet(name string) (*Document, bool) {
	for _, s := range w.Sheets {
		if s.Name == name {
			return s.Document, true
		}
	}
	return nil, false
}

// PageCount returns the number of pages across all sheets.
func (w *Workbook) PageCount() int {
	n := 0
	for _, s := range w.Sheets {
		if s.Document != nil {
			n += len(s.Document.Pages)
		}
	}
	return n
}

type parseResponse struct {
	OK      *bool           `json:"ok"`
	Sheets  json.RawMessage `json:"sheets"`
	Skipped []string        `json:"skipped_sheets"`
	Error   string          `json:"error"`
}

type sheetPayload struct {
	Result json.RawMessage   `json:"result"`
	Images map[string]string `json:"images"`
}

// DecodeWorkbook reads either a parse-service response
// ({"ok", "sheets": {name: {"result", "images"}}, ...}) or a bare document
// ({"pages": [...]}), which becomes a single sheet named DefaultSheetName.
// Sheet order follows the order of keys in the payload.
func DecodeWorkbook(r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	var resp parseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode workbook: %w", err)
	}
	if resp.Sheets == nil || bytes.Equal(bytes.TrimSpace(resp.Sheets), []byte("null")) {
		if resp.OK != nil && !*resp.OK {
			return nil, parseFailure(resp.Error)
		}
		doc, err := FromJSON(data)
		if err != nil {
			return nil, err
		}
		return &Workbook{Sheets: []Sheet{{Name: DefaultSheetName, Document: doc}}}, nil
	}
	if resp.OK != nil && !*resp.OK {
		return nil, parseFailure(resp.Error)
	}

	names, payloads, err := orderedSheets(resp.Sheets)
	if err != nil {
		return nil, err
	}
	wb := &Workbook{Skipped: resp.Skipped}
	for i, name := range names {
		doc, err := FromJSON(payloads[i].Result)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Document: RewriteImages(doc, payloads[i].Images)})
	}
	if len(wb.Sheets) == 0 {
		return nil, ErrNoSheets
	}
	return wb, nil
}

func parseFailure(msg string) error {
	if msg == "" {
		msg = "parse failed"
	}
	return fmt.Errorf("parse response: %s", msg)
}

// orderedSheets walks the sheets object token by token so key order survives.
func orderedSheets(raw json.RawMessage) ([]string, []sheetPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("decode sheets: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("decode sheets: expected object")
	}
	var (
		names    []string
		payloads []sheetPayload
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode sheets: %w", err)
		}
		name, _ := tok.(string)
		var p sheetPayload
		if err := dec.Decode(&p); err != nil {
			return nil, nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		names = append(names, name)
		payloads = append(payloads, p)
	}
	return names, payloads, nil
}

// RewriteImages returns a copy of doc in which every reward and table-cell
// image whose file name appears in images points at the mapped URI.
func RewriteImages(doc *Document, images map[string]string) *Document {
	if doc == nil || len(images) == 0 {
		return doc
	}
	rewrite := func(ref ImageRef) ImageRef {
		if ref.IsZero() {
			return ref
		}
		if uri, ok := images[FileName(ref.URL)]; ok && uri != "" {
			ref.URL = uri
		}
		return ref
	}
	out := &Document{Pages: make([]Page, len(doc.Pages))}
	for pi, p := range doc.Pages {
		np := Page{Region: p.Region, Legacy: p.Legacy, Blocks: make([]Block, len(p.Blocks))}
		for bi, b := range p.Blocks {
			nb := Block{Title: b.Title, Type: b.Type, Sections: make([]Section, len(b.Sections))}
			for si, s := range b.Sections {
				ns := s
				ns.Rewards = make([]Reward, len(s.Rewards))
				for ri, rw := range s.Rewards {
					rw.Image = rewrite(rw.Image)
					ns.Rewards[ri] = rw
				}
				if s.Table != nil {
					t := &Table{Headers: s.Table.Headers, Rows: make([][]Cell, len(s.Table.Rows))}
					for r, row := range s.Table.Rows {
						cells := make([]Cell, len(row))
						for c, cell := range row {
							cell.Image = rewrite(cell.Image)
							cells[c] = cell
						}
						t.Rows[r] = cells
					}
					ns.Table = t
				}
				nb.Sections[si] = ns
			}
			np.Blocks[bi] = nb
		}
		out.Pages[pi] = np
	}
	return out
}

// FileName returns the last path segment of a URL or path with any query or
// fragment removed.
func FileName(p string) string {
	q := p
	if i := strings.IndexByte(q, '?'); i >= 0 {
		q = q[:i]
	}
	if i := strings.IndexByte(q, '#'); i >= 0 {
		q = q[:i]
	}
	if i := strings.LastIndexByte(q, '/'); i >= 0 {
		if seg := q[i+1:]; seg != "" {
			return seg
		}
	}
	return q
}
