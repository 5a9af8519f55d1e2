package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"listcart/pkg/domain"
	"listcart/pkg/platform/sentinel"
)

// Metadata describes a stored object.
type Metadata struct {
	Size int64
}

// FilesystemStore keeps objects under root/bucket/key. Objects are write-once.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates the base directory if needed.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &FilesystemStore{baseDir: abs}, nil
}

func (s *FilesystemStore) path(ref domain.ObjectRef) (string, error) {
	if err := domain.ValidateBucket(ref.Bucket); err != nil {
		return "", err
	}
	path := filepath.Join(s.baseDir, ref.Bucket, filepath.FromSlash(ref.Key.String()))

	// Security: prevent directory traversal
	if !strings.HasPrefix(filepath.Clean(path), s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: path traversal detected")
	}
	return path, nil
}

// Put stores the contents of r at ref. It returns sentinel.ErrConflict when
// the object already exists; nothing is overwritten.
func (s *FilesystemStore) Put(ctx context.Context, ref domain.ObjectRef, r io.Reader) (int64, error) {
	path, err := s.path(ref)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(path); err == nil {
		return 0, fmt.Errorf("object %s: %w", ref, sentinel.ErrConflict)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("failed to sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close object: %w", err)
	}

	// Link fails if the target exists, which makes the final step atomic and
	// write-once even with concurrent writers.
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("object %s: %w", ref, sentinel.ErrConflict)
		}
		return 0, fmt.Errorf("failed to publish object: %w", err)
	}
	return n, nil
}

// Open returns a reader for the object at ref.
func (s *FilesystemStore) Open(_ context.Context, ref domain.ObjectRef) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) // #nosec G304 - path confined to baseDir above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", ref, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Stat returns object metadata.
func (s *FilesystemStore) Stat(_ context.Context, ref domain.ObjectRef) (*Metadata, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", ref, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return &Metadata{Size: info.Size()}, nil
}

// contextReader stops a copy once ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
