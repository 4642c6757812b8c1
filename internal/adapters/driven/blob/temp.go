package blob

import (
	"fmt"
	"io"
	"os"
)

// TempFile is a file on local disk that is removed on Release.
type TempFile struct {
	Path string
	Size int64
}

// Release removes the file. It is safe to call more than once.
func (t *TempFile) Release() {
	if t == nil || t.Path == "" {
		return
	}
	_ = os.Remove(t.Path)
	t.Path = ""
}

// Open opens the file for reading.
func (t *TempFile) Open() (*os.File, error) {
	return os.Open(t.Path)
}

// SpoolTemp copies r into a new temp file in dir. A failed copy leaves nothing behind.
func SpoolTemp(dir, pattern string, r io.Reader) (*TempFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("blob: creating temp file: %w", err)
	}
	t := &TempFile{Path: f.Name()}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		t.Release()
		return nil, fmt.Errorf("blob: writing temp file: %w", err)
	}
	t.Size = n
	return t, nil
}

// WithTemp spools r to a temp file, calls fn with it and always removes it.
func WithTemp(dir, pattern string, r io.Reader, fn func(*TempFile) error) error {
	t, err := SpoolTemp(dir, pattern, r)
	if err != nil {
		return err
	}
	defer t.Release()
	return fn(t)
}
