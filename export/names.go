package export

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/wudi/sheetkit/document"
)

// SanitizeName makes s safe as one archive path segment. The result is NFC
// normalized, path separators and characters rejected by common file
// systems become '_', and leading or trailing dots and spaces are dropped.
func SanitizeName(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, ". ")
	if s == "" {
		return "_"
	}
	return s
}

// PageFileName names the index-th page (zero based) of a sheet, e.g.
// "003-EU.png".
func PageFileName(index int, region string, f Format) string {
	name := fmt.Sprintf("%03d", index+1)
	if region = strings.TrimSpace(region); region != "" {
		name += "-" + SanitizeName(region)
	}
	return name + "." + f.Ext()
}

// sheetFolders returns one unique folder name per sheet, in order.
// Repeated names get a numeric suffix.
func sheetFolders(sheets []document.Sheet) []string {
	out := make([]string, len(sheets))
	seen := make(map[string]bool, len(sheets))
	for i, s := range sheets {
		name := s.Name
		if strings.TrimSpace(name) == "" {
			name = document.DefaultSheetName
		}
		base := SanitizeName(name)
		folder := base
		for n := 2; seen[strings.ToLower(folder)]; n++ {
			folder = fmt.Sprintf("%s-%d", base, n)
		}
		seen[strings.ToLower(folder)] = true
		out[i] = folder
	}
	return out
}
