package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/adapters/driven/blob"
	"github.com/laws-africa/peachjam/internal/core/domain"
	"github.com/laws-africa/peachjam/internal/core/ports/driven"
)

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// fakeConverter writes a PDF next to the input.
type fakeConverter struct {
	err   error
	calls int
}

func (f *fakeConverter) ConvertToPDF(_ context.Context, in, outDir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(outDir, "in.pdf")
	return out, os.WriteFile(out, []byte("%PDF converted"), 0o600)
}

func newAttacher(t *testing.T, conv driven.Converter) (*Attacher, *blob.Store) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/source.docx":
			w.Header().Set("Content-Type", docxType)
			_, _ = fmt.Fprint(w, "docx bytes")
		case "/v3/media/logo.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	store := blob.NewStore(map[string]blob.Backend{"file": blob.NewFileBackendFs(afero.NewMemMapFs())})
	deps := driven.AdapterDeps{Blobs: store, Converter: conv, BlobPrefix: "file"}
	return NewAttacher(newTestClient(t, srv), deps), store
}

func readBlob(t *testing.T, store *blob.Store, name string) string {
	t.Helper()
	r, err := store.Open(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestAttacher_SourceFileWithPDF(t *testing.T) {
	conv := &fakeConverter{}
	a, store := newAttacher(t, conv)

	sf, err := a.SourceFile(context.Background(), "source.docx", "za/act/2009/1", "Act 1: final.docx", nil)
	require.NoError(t, err)

	assert.Equal(t, "Act 1 final.docx", sf.Filename)
	assert.Equal(t, docxType, sf.MimeType)
	assert.Equal(t, int64(len("docx bytes")), sf.Size)
	assert.Equal(t, "file:za/act/2009/1/Act 1 final.docx", sf.Blob)
	assert.Equal(t, "file:za/act/2009/1/Act 1 final.pdf", sf.PDFBlob)
	assert.Equal(t, 1, conv.calls)

	assert.Equal(t, "docx bytes", readBlob(t, store, sf.Blob))
	assert.Equal(t, "%PDF converted", readBlob(t, store, sf.PDFBlob))
}

func TestAttacher_ConversionFailureKeepsSource(t *testing.T) {
	a, _ := newAttacher(t, &fakeConverter{err: domain.ErrConversionFailure})

	sf, err := a.SourceFile(context.Background(), "source.docx", "doc", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "source.docx", sf.Filename)
	assert.Empty(t, sf.PDFBlob)
}

func TestAttacher_InspectSeesLocalCopy(t *testing.T) {
	a, _ := newAttacher(t, nil)

	var seen string
	_, err := a.SourceFile(context.Background(), "source.docx", "doc", "", func(p, mimeType string) error {
		data, err := os.ReadFile(p)
		seen = mimeType + " " + string(data)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, docxType+" docx bytes", seen)
}

func TestAttacher_ImageSniffsType(t *testing.T) {
	a, store := newAttacher(t, nil)

	img, err := a.Image(context.Background(), "media/logo.png", "doc", "logo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, "file:doc/media/logo.png", img.Blob)
	assert.NotEmpty(t, readBlob(t, store, img.Blob))
}

func TestAttacher_NotFound(t *testing.T) {
	a, _ := newAttacher(t, nil)

	_, err := a.SourceFile(context.Background(), "missing.pdf", "doc", "", nil)
	assert.ErrorIs(t, err, domain.ErrNotFoundUpstream)
}
