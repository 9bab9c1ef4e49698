package bitmap

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
)

// BlobScheme prefixes references served by a BlobStore.
const BlobScheme = "blob:"

// Blob is one stored binary resource.
type Blob struct {
	Data []byte
	MIME string
	Ext  string
}

// BlobStore is a session-scoped in-memory store keyed by the SHA-256 of the
// content. Identical content is stored once.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]Blob)}
}

// Put stores data and returns its hex hash.
func (s *BlobStore) Put(data []byte, ext string) string {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[hash]; !ok {
		ext = strings.ToLower(ext)
		s.blobs[hash] = Blob{Data: data, MIME: MIMEType(ext), Ext: ext}
	}
	return hash
}

// Get returns the blob for a hash, with or without the blob: prefix.
func (s *BlobStore) Get(ref string) (Blob, bool) {
	hash := strings.TrimPrefix(ref, BlobScheme)
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[hash]
	return b, ok
}

// URL returns the blob: reference for a hash.
func (s *BlobStore) URL(hash string) string { return BlobScheme + hash }

func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *BlobStore) Clear() {
	s.mu.Lock()
	s.blobs = make(map[string]Blob)
	s.mu.Unlock()
}

// MIMEType maps an image file extension to its MIME type.
func MIMEType(ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = filepath.Ext(ext)
	}
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}
