// Package storage keeps uploaded images on local disk under a single root.
// Stored paths are relative ("menu-items/<uuid>.png") and are served as
// /uploads/<path>.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bistro-pos/api/internal/apperr"
	"github.com/bistro-pos/api/internal/logger"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of the upload mimetype needs to decide.
const sniffLen = 3072

type ImageStore struct {
	root     string
	maxBytes int64
}

func NewImageStore(root string, maxBytes int64) (*ImageStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ImageStore{root: root, maxBytes: maxBytes}, nil
}

func (s *ImageStore) Root() string { return s.root }

func (s *ImageStore) MaxBytes() int64 { return s.maxBytes }

// Save sniffs r, rejects anything that is not an image or exceeds the size
// limit, and writes it under kind/. It returns the relative path.
func (s *ImageStore) Save(kind string, r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperr.Validation("image is empty")
	}

	mt := mimetype.Detect(head)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", apperr.Validation("only image files are allowed, got %s", mt.String())
	}

	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s dir: %w", kind, err)
	}
	name := uuid.NewString() + mt.Extension()
	full := filepath.Join(dir, name)

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	// Read one byte past the limit to detect oversize uploads.
	src := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("write image file: %w", err)
	}
	if written > s.maxBytes {
		_ = os.Remove(full)
		return "", apperr.Validation("image exceeds the %s limit", humanize.IBytes(uint64(s.maxBytes)))
	}

	logger.L().Debugw("image stored", "path", filepath.ToSlash(filepath.Join(kind, name)), "size", humanize.IBytes(uint64(written)))
	return filepath.ToSlash(filepath.Join(kind, name)), nil
}

// Delete removes a stored image. An empty path is a no-op and a missing
// file is not an error. Paths escaping the root are refused.
func (s *ImageStore) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if r, err := filepath.Rel(s.root, full); err != nil || strings.HasPrefix(r, "..") {
		return apperr.Storage("image path %q is outside the upload root", rel)
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &apperr.Error{Kind: apperr.ErrStorage, Msg: fmt.Sprintf("remove image %s: %v", rel, err)}
	}
	return nil
}

// DeleteQuietly is Delete for cleanup paths: failures are logged, never
// returned, so they cannot fail the mutation that owns the image.
func (s *ImageStore) DeleteQuietly(rel string) {
	if err := s.Delete(rel); err != nil {
		logger.L().Warnw("image cleanup failed", "path", rel, "error", err)
	}
}
