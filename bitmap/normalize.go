package bitmap

import "strings"

// Normalize resolves an image reference to the URL used as cache key.
// data:, blob:, file: and absolute http(s) URLs pass through unchanged; a
// root-relative path is prefixed with base. Anything else is returned as is.
func Normalize(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ref
	}
	for _, scheme := range passthroughSchemes {
		if hasPrefixFold(ref, scheme) {
			return ref
		}
	}
	if strings.HasPrefix(ref, "/") {
		return strings.TrimRight(base, "/") + ref
	}
	return ref
}

var passthroughSchemes = []string{"data:", "blob:", "file:", "http://", "https://"}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
