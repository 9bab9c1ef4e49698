package bitmap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ErrUnsupportedRef is returned for references no fetcher can serve.
var ErrUnsupportedRef = errors.New("unsupported image reference")

// maxFetchBytes bounds a single image download.
const maxFetchBytes = 64 << 20

// Fetcher returns the raw bytes behind a normalized URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// SchemeFetcher dispatches on the URL scheme: http(s), data:, file: and blob:.
type SchemeFetcher struct {
	Client *http.Client
	Blobs  *BlobStore
}

func (f *SchemeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case hasPrefixFold(ref, "data:"):
		return decodeDataURL(ref)
	case hasPrefixFold(ref, BlobScheme):
		if f.Blobs == nil {
			return nil, fmt.Errorf("%w: no blob store for %s", ErrUnsupportedRef, ref)
		}
		b, ok := f.Blobs.Get(ref[len(BlobScheme):])
		if !ok {
			return nil, fmt.Errorf("blob %s not found", ref)
		}
		return b.Data, nil
	case hasPrefixFold(ref, "file:"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return os.ReadFile(p)
	case hasPrefixFold(ref, "http://"), hasPrefixFold(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
}

func (f *SchemeFetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch failed: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>.
func decodeDataURL(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, errors.New("malformed data url")
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return data, nil
		}
		data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(s), nil
}
