package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ImageRef points at an image. It decodes from a bare URL string or from an
// object carrying at least a "url" key.
type ImageRef struct {
	URL  string `json:"url"`
	ID   string `json:"id,omitempty"`
	MIME string `json:"mime,omitempty"`
}

// Ref returns a reference holding only url.
func Ref(url string) ImageRef { return ImageRef{URL: url} }

func (r ImageRef) IsZero() bool { return strings.TrimSpace(r.URL) == "" }

func (r *ImageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = ImageRef{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ImageRef{URL: s}
		return nil
	case data[0] == '{':
		type plain ImageRef
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("image reference: %w", err)
		}
		*r = ImageRef(p)
		return nil
	}
	return fmt.Errorf("image reference: unsupported JSON %q", truncate(data, 32))
}

// MarshalJSON writes the bare string form when only the URL is set.
func (r ImageRef) MarshalJSON() ([]byte, error) {
	if r.ID == "" && r.MIME == "" {
		return json.Marshal(r.URL)
	}
	type plain ImageRef
	return json.Marshal(plain(r))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
