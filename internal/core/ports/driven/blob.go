package driven

import (
	"context"
	"io"
)

// BlobStore stores blobs under prefixed names, e.g. "file:docs/1/source.pdf"
// or "s3:archive:docs/1/source.pdf".
type BlobStore interface {
	// Save writes r under name and returns the stored name, prefix included.
	// Writes to read-only backends are discarded and the name is still returned.
	Save(ctx context.Context, name string, r io.Reader) (string, error)

	// Open reads a stored blob.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a stored blob.
	Delete(ctx context.Context, name string) error

	// Exists reports whether a blob is stored under name.
	Exists(ctx context.Context, name string) (bool, error)
}

// Converter turns office documents into PDFs.
type Converter interface {
	// ConvertToPDF converts the file at inputPath into outDir and returns the PDF path.
	ConvertToPDF(ctx context.Context, inputPath, outDir string) (string, error)
}
