// Package bitmap resolves image references to decoded bitmaps and memoizes
// them for the life of the session.
package bitmap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register decoders
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/wudi/sheetkit/observability"
)

// Cache maps normalized URLs to decoded bitmaps. Entries are never evicted;
// Reset clears them. Returned images are shared and must not be modified.
type Cache struct {
	base    string
	fetcher Fetcher
	log     observability.Logger

	mu      sync.RWMutex
	entries map[string]image.Image
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithAPIBase sets the prefix applied to root-relative references.
func WithAPIBase(base string) Option {
	return func(c *Cache) { c.base = base }
}

// WithFetcher replaces the default scheme fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) { c.fetcher = f }
}

// WithHTTPClient sets the client used by the default fetcher.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if sf, ok := c.fetcher.(*SchemeFetcher); ok {
			sf.Client = client
		}
	}
}

// WithBlobStore lets the default fetcher serve blob: references.
func WithBlobStore(s *BlobStore) Option {
	return func(c *Cache) {
		if sf, ok := c.fetcher.(*SchemeFetcher); ok {
			sf.Blobs = s
		}
	}
}

// WithLogger sets the logger used for fetch and decode failures.
func WithLogger(l observability.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		fetcher: &SchemeFetcher{},
		log:     observability.NopLogger{},
		entries: make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Normalize applies the cache's API base to ref.
func (c *Cache) Normalize(ref string) string { return Normalize(ref, c.base) }

// Resolve returns the bitmap for ref, fetching and decoding it on a miss.
// Concurrent misses for the same URL share one fetch. Any failure is logged
// and yields nil.
func (c *Cache) Resolve(ctx context.Context, ref string) image.Image {
	key := c.Normalize(ref)
	if key == "" {
		return nil
	}
	if img, ok := c.lookup(key); ok {
		return img
	}
	// The shared fetch outlives any single caller, so one caller giving up
	// does not fail the others waiting on the same URL.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if img, ok := c.lookup(key); ok {
			return img, nil
		}
		img, err := c.load(shared, key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = img
		c.mu.Unlock()
		return img, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn("image load failed", observability.String("url", key), observability.Error("error", res.Err))
			return nil
		}
		return res.Val.(image.Image)
	case <-ctx.Done():
		c.log.Debug("image wait cancelled", observability.String("url", key), observability.Error("error", ctx.Err()))
		return nil
	}
}

func (c *Cache) lookup(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.entries[key]
	return img, ok
}

func (c *Cache) load(ctx context.Context, key string) (image.Image, error) {
	data, err := c.fetcher.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode image: empty %s bitmap", format)
	}
	return toRGBA(src), nil
}

// toRGBA converts to a premultiplied RGBA bitmap anchored at the origin.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Len returns the number of cached bitmaps.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every cached bitmap.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]image.Image)
	c.mu.Unlock()
}
