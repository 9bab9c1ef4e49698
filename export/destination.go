package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Destination is where a finished archive is written.
type Destination interface {
	Open(ctx context.Context) (Sink, error)
}

// Sink receives the archive bytes. Exactly one of Commit or Abort is called
// after the last Write.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// FileDestination writes the archive to Path. Bytes go to a temporary file
// in the same directory which is renamed over Path on commit, so a failed
// export never leaves a partial archive behind.
type FileDestination struct {
	Path string
	// Perm is applied before the rename; zero means 0644.
	Perm os.FileMode
}

func (d FileDestination) Open(ctx context.Context) (Sink, error) {
	if d.Path == "" {
		return nil, errors.New("empty destination path")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(d.Path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	perm := d.Perm
	if perm == 0 {
		perm = 0o644
	}
	return &fileSink{f: f, path: d.Path, perm: perm}, nil
}

type fileSink struct {
	f    *os.File
	path string
	perm os.FileMode
	done bool
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *fileSink) Commit() error {
	if s.done {
		return errors.New("sink already closed")
	}
	s.done = true
	tmp := s.f.Name()
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		os.Remove(tmp)
		return err
	}
	if err := s.f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, s.perm); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	s.f.Close()
	if err := os.Remove(s.f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// WriterDestination streams the archive to W. Bytes already written when an
// export fails cannot be taken back; callers that need all-or-nothing
// delivery should buffer or use FileDestination.
type WriterDestination struct {
	W io.Writer
}

func (d WriterDestination) Open(ctx context.Context) (Sink, error) {
	if d.W == nil {
		return nil, ErrNilDestination
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return writerSink{d.W}, nil
}

type writerSink struct{ io.Writer }

func (writerSink) Commit() error { return nil }
func (writerSink) Abort() error  { return nil }
