package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// FileBackend stores blobs in a directory tree.
type FileBackend struct {
	fs afero.Fs
}

// NewFileBackend stores blobs under root on the local disk.
func NewFileBackend(root string) (*FileBackend, error) {
	if root == "" {
		return nil, errors.New("blob: file root cannot be empty")
	}
	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating %s: %w", root, err)
	}
	return NewFileBackendFs(afero.NewBasePathFs(osfs, root)), nil
}

// NewFileBackendFs stores blobs on fsys, e.g. an in-memory filesystem in tests.
func NewFileBackendFs(fsys afero.Fs) *FileBackend {
	return &FileBackend{fs: fsys}
}

// clean rejects paths that escape the root.
func clean(p string) (string, error) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: path %q", domain.ErrInvalidInput, p)
		}
	}
	c := path.Clean("/" + p)
	if c == "/" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}
	return c, nil
}

// Put writes through a temporary file and renames it into place.
func (b *FileBackend) Put(_ context.Context, p string, r io.Reader) error {
	c, err := clean(p)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(path.Dir(c), 0o755); err != nil {
		return err
	}
	tmp := c + ".part"
	f, err := b.fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = b.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = b.fs.Remove(tmp)
		return err
	}
	return b.fs.Rename(tmp, c)
}

// Get opens a stored file.
func (b *FileBackend) Get(_ context.Context, p string) (io.ReadCloser, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	f, err := b.fs.Open(c)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, p)
	}
	return f, err
}

// Remove deletes a stored file.
func (b *FileBackend) Remove(_ context.Context, p string) error {
	c, err := clean(p)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(c); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Stat reports whether a file exists.
func (b *FileBackend) Stat(_ context.Context, p string) (bool, error) {
	c, err := clean(p)
	if err != nil {
		return false, err
	}
	return afero.Exists(b.fs, c)
}
