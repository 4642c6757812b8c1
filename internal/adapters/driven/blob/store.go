package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Backend stores blobs by path. The path is the name with its prefix removed.
type Backend interface {
	Put(ctx context.Context, path string, r io.Reader) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (bool, error)
}

// Store dispatches blob operations on the name prefix.
type Store struct {
	backends map[string]Backend
}

// NewStore creates a store from a static prefix mapping.
func NewStore(backends map[string]Backend) *Store {
	m := make(map[string]Backend, len(backends))
	for k, v := range backends {
		m[k] = v
	}
	return &Store{backends: m}
}

// SplitName separates the prefix from the backend path.
func SplitName(name string) (prefix, path string, err error) {
	prefix, path, ok := strings.Cut(name, ":")
	if !ok || prefix == "" || path == "" {
		return "", "", fmt.Errorf("blob: %w: malformed name %q", domain.ErrInvalidInput, name)
	}
	return prefix, path, nil
}

func (s *Store) backend(name string) (Backend, string, string, error) {
	prefix, path, err := SplitName(name)
	if err != nil {
		return nil, "", "", err
	}
	b, ok := s.backends[prefix]
	if !ok {
		return nil, "", "", fmt.Errorf("blob: %w: prefix %q", domain.ErrUnsupportedType, prefix)
	}
	return b, prefix, path, nil
}

// Save writes r under name and returns the stored name.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	b, prefix, path, err := s.backend(name)
	if err != nil {
		return "", err
	}
	if err := b.Put(ctx, path, r); err != nil {
		return "", fmt.Errorf("blob: saving %s: %w", name, err)
	}
	return prefix + ":" + path, nil
}

// Open reads a stored blob.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	b, _, path, err := s.backend(name)
	if err != nil {
		return nil, err
	}
	rc, err := b.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("blob: opening %s: %w", name, err)
	}
	return rc, nil
}

// Delete removes a stored blob. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	b, _, path, err := s.backend(name)
	if err != nil {
		return err
	}
	if err := b.Remove(ctx, path); err != nil {
		return fmt.Errorf("blob: deleting %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a blob is stored under name.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	b, _, path, err := s.backend(name)
	if err != nil {
		return false, err
	}
	return b.Stat(ctx, path)
}

// Prefixes of the built-in backends.
const (
	PrefixFile = "file"
	PrefixS3   = "s3"
)

// FromSettings builds a store with a file backend when FileRoot is set and an
// S3 backend when S3Endpoint is set.
func FromSettings(s domain.StorageSettings) (*Store, error) {
	backends := make(map[string]Backend)
	if s.FileRoot != "" {
		fb, err := NewFileBackend(s.FileRoot)
		if err != nil {
			return nil, err
		}
		backends[PrefixFile] = fb
	}
	if s.S3Endpoint != "" {
		sb, err := NewS3Backend(S3Config{
			Endpoint:        s.S3Endpoint,
			AccessKey:       s.S3AccessKey,
			SecretKey:       s.S3SecretKey,
			UseSSL:          s.S3UseSSL,
			ReadOnlyBuckets: s.ReadOnlyBuckets,
		})
		if err != nil {
			return nil, err
		}
		backends[PrefixS3] = sb
	}
	return NewStore(backends), nil
}
