package upstream

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/laws-africa/peachjam/internal/adapters/driven/blob"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
	"github.com/laws-africa/peachjam/internal/logger"
)

// convertible lists source types that get a PDF companion.
var convertible = map[string]bool{
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.oasis.opendocument.text":                                 true,
	"application/rtf": true,
}

// Attacher downloads upstream files into blob storage.
type Attacher struct {
	client *Client
	deps   driven.AdapterDeps
}

// NewAttacher creates an attacher writing through deps.Blobs.
func NewAttacher(client *Client, deps driven.AdapterDeps) *Attacher {
	return &Attacher{client: client, deps: deps}
}

// blobName builds a prefixed storage name under dir.
func (a *Attacher) blobName(dir, filename string) string {
	prefix := a.deps.BlobPrefix
	if prefix == "" {
		prefix = "file"
	}
	return prefix + ":" + path.Join(a.deps.BlobDir, dir, blob.SanitizeFilename(filename))
}

// SourceFile downloads ref as the source file of a document stored under dir.
// inspect, when set, sees the local copy before it is stored. Word-processor
// sources also get a converted PDF when a converter is set; a failed
// conversion is logged and the source is kept.
func (a *Attacher) SourceFile(ctx context.Context, ref, dir, filename string, inspect func(localPath, mimeType string) error) (*domain.SourceFile, error) {
	tmp, mimeType, err := a.client.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer tmp.Release()

	if filename == "" {
		filename = path.Base(strings.SplitN(ref, "?", 2)[0])
	}
	mimeType, err = sniff(tmp, filename, mimeType)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(filename) == "" {
		filename += blob.ExtensionFor(mimeType)
	}
	if inspect != nil {
		if err := inspect(tmp.Path, mimeType); err != nil {
			return nil, err
		}
	}

	stored, err := a.save(ctx, a.blobName(dir, filename), tmp.Path)
	if err != nil {
		return nil, err
	}
	sf := &domain.SourceFile{Filename: blob.SanitizeFilename(filename), MimeType: mimeType, Size: tmp.Size, Blob: stored}

	if convertible[mimeType] && a.deps.Converter != nil {
		pdfBlob, err := a.convert(ctx, tmp.Path, dir, filename)
		if err != nil {
			logger.Warn("attachments: converting %s to PDF: %v", filename, err)
		} else {
			sf.PDFBlob = pdfBlob
		}
	}
	return sf, nil
}

// Image downloads ref as an image of a document stored under dir.
func (a *Attacher) Image(ctx context.Context, ref, dir, filename string) (domain.Image, error) {
	tmp, mimeType, err := a.client.Download(ctx, ref)
	if err != nil {
		return domain.Image{}, err
	}
	defer tmp.Release()

	mimeType, err = sniff(tmp, filename, mimeType)
	if err != nil {
		return domain.Image{}, err
	}
	stored, err := a.save(ctx, a.blobName(path.Join(dir, "media"), filename), tmp.Path)
	if err != nil {
		return domain.Image{}, err
	}
	return domain.Image{Filename: blob.SanitizeFilename(filename), MimeType: mimeType, Blob: stored}, nil
}

func (a *Attacher) convert(ctx context.Context, src, dir, filename string) (string, error) {
	outDir, err := os.MkdirTemp("", "peachjam-pdf-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrConversionFailure, err)
	}
	defer os.RemoveAll(outDir)

	// the converter names its output after the input file
	in := filepath.Join(outDir, "in"+filepath.Ext(filename))
	if err := os.Link(src, in); err != nil {
		if err := copyFile(src, in); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrConversionFailure, err)
		}
	}
	pdfPath, err := a.deps.Converter.ConvertToPDF(ctx, in, outDir)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return a.save(ctx, a.blobName(dir, stem+".pdf"), pdfPath)
}

func (a *Attacher) save(ctx context.Context, name, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("attachments: opening %s: %w", localPath, err)
	}
	defer f.Close()
	stored, err := a.deps.Blobs.Save(ctx, name, f)
	if err != nil {
		return "", fmt.Errorf("attachments: saving %s: %w", name, err)
	}
	return stored, nil
}

// sniff keeps a specific upstream MIME type and detects anything generic.
func sniff(tmp *blob.TempFile, filename, mimeType string) (string, error) {
	if mimeType != "" && mimeType != "application/octet-stream" && mimeType != "binary/octet-stream" {
		return mimeType, nil
	}
	f, err := tmp.Open()
	if err != nil {
		return "", fmt.Errorf("attachments: %w", err)
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	return blob.DetectMIME(filename, head[:n]), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
