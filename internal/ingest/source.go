package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

// Source is one SPED file to import.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a file from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string {
	return filepath.Base(s.Path)
}

func (s FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	return f, nil
}

// ObjectSource streams an object from the configured object store.
type ObjectSource struct {
	Storage port.ObjectStorage
	Bucket  string
	Key     string
}

func (s ObjectSource) Name() string {
	return path.Base(s.Key)
}

func (s ObjectSource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.Storage.Open(ctx, s.Bucket, s.Key)
	if err != nil {
		return nil, fmt.Errorf("opening s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return rc, nil
}

// ParseObjectURI splits "s3://bucket/key" into bucket and key.
func ParseObjectURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// ConfineLocalPath resolves p against root and rejects any result outside
// root. Symlinks are followed when the path exists.
func ConfineLocalPath(root, p string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving import root: %w", err)
	}
	if real, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = real
	}

	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(absRoot, full)
	}
	full = filepath.Clean(full)
	if real, err := filepath.EvalSymlinks(full); err == nil {
		full = real
	}

	rel, err := filepath.Rel(absRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", domain.ErrPathOutsideRoot, p)
	}
	return full, nil
}
