package document

import (
	"strings"
	"testing"
)

func TestDecodeWorkbookPreservesSheetOrder(t *testing.T) {
	src := `{"ok":true,"sheets":{
		"Zeta":{"result":{"pages":[{"sections":[{"rewards":[{"image":"/media/abc/gem.png?v=2"}]}]}]},"images":{"gem.png":"data:image/png;base64,AA"}},
		"Alpha":{"result":{"pages":[{"sections":[]},{"sections":[]}]}}
	},"skipped_sheets":["Notes"],"blob_store_size":1}`
	wb, err := DecodeWorkbook(strings.NewReader(src))
	if err != nil {
		t.Fatalf("DecodeWorkbook() error = %v", err)
	}
	if len(wb.Sheets) != 2 || wb.Sheets[0].Name != "Zeta" || wb.Sheets[1].Name != "Alpha" {
		t.Fatalf("unexpected sheet order: %+v", wb.Sheets)
	}
	if wb.PageCount() != 3 {
		t.Fatalf("PageCount() = %d, want 3", wb.PageCount())
	}
	if len(wb.Skipped) != 1 || wb.Skipped[0] != "Notes" {
		t.Fatalf("Skipped = %v", wb.Skipped)
	}
	zeta, ok := wb.Sheet("Zeta")
	if !ok {
		t.Fatalf("Sheet(Zeta) missing")
	}
	if got := zeta.Pages[0].Blocks[0].Sections[0].Rewards[0].Image.URL; got != "data:image/png;base64,AA" {
		t.Fatalf("image not rewritten: %q", got)
	}
}

func TestDecodeWorkbookBareDocument(t *testing.T) {
	wb, err := DecodeWorkbook(strings.NewReader(`{"pages":[{"sections":[]}]}`))
	if err != nil {
		t.Fatalf("DecodeWorkbook() error = %v", err)
	}
	if len(wb.Sheets) != 1 || wb.Sheets[0].Name != DefaultSheetName {
		t.Fatalf("unexpected sheets: %+v", wb.Sheets)
	}
}

func TestDecodeWorkbookFailure(t *testing.T) {
	_, err := DecodeWorkbook(strings.NewReader(`{"ok":false,"error":"bad sheet"}`))
	if err == nil || !strings.Contains(err.Error(), "bad sheet") {
		t.Fatalf("expected parse failure, got %v", err)
	}
	_, err = DecodeWorkbook(strings.NewReader(`{"ok":true,"sheets":{}}`))
	if err != ErrNoSheets {
		t.Fatalf("expected ErrNoSheets, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"/media/abc/x.png":      "x.png",
		"http://h/a/b.webp?q=1": "b.webp",
		"y.jpg#frag":            "y.jpg",
		"plain":                 "plain",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRewriteImagesLeavesOriginalUntouched(t *testing.T) {
	doc := &Document{Pages: []Page{{Blocks: []Block{{Sections: []Section{{
		Rewards: []Reward{{Image: Ref("/m/a.png")}},
		Table:   &Table{Headers: []string{"h"}, Rows: [][]Cell{{{IsImage: true, Image: Ref("/m/a.png")}}}},
	}}}}}}}
	out := RewriteImages(doc, map[string]string{"a.png": "blob:1"})
	s := out.Pages[0].Blocks[0].Sections[0]
	if s.Rewards[0].Image.URL != "blob:1" || s.Table.Rows[0][0].Image.URL != "blob:1" {
		t.Fatalf("rewrite missed references: %+v", s)
	}
	if doc.Pages[0].Blocks[0].Sections[0].Rewards[0].Image.URL != "/m/a.png" {
		t.Fatalf("original document mutated")
	}
	if doc.Pages[0].Blocks[0].Sections[0].Table.Rows[0][0].Image.URL != "/m/a.png" {
		t.Fatalf("original table mutated")
	}
}
