package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

func newMemStore() (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewStore(map[string]Backend{PrefixFile: NewFileBackendFs(fs)}), fs
}

func TestStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store, fs := newMemStore()

	name, err := store.Save(ctx, "file:docs/12/source.docx", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "file:docs/12/source.docx", name)

	ok, err := afero.Exists(fs, "/docs/12/source.docx")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Open(ctx, name)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	exists, err := store.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, name))
	require.NoError(t, store.Delete(ctx, name))
	exists, err = store.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Open(ctx, name)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_BadNames(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemStore()

	_, err := store.Save(ctx, "gcs:bucket:key", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = store.Save(ctx, "no-prefix", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Save(ctx, "file:../etc/passwd", strings.NewReader(""))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_DotsInFilenames(t *testing.T) {
	store, _ := newMemStore()
	_, err := store.Save(context.Background(), "file:docs/a..b.pdf", strings.NewReader("x"))
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFileBackend_FailedWriteLeavesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	b := NewFileBackendFs(fs)

	err := b.Put(context.Background(), "docs/1/x.pdf", failingReader{})
	require.Error(t, err)

	for _, p := range []string{"/docs/1/x.pdf", "/docs/1/x.pdf.part"} {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.False(t, ok, p)
	}
}

func TestNewFileBackend(t *testing.T) {
	_, err := NewFileBackend("")
	assert.Error(t, err)

	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, b.Put(context.Background(), "a/b.txt", strings.NewReader("x")))
	ok, err := b.Stat(context.Background(), "a/b.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFromSettings(t *testing.T) {
	store, err := FromSettings(domain.StorageSettings{
		FileRoot:        t.TempDir(),
		S3Endpoint:      "localhost:9000",
		ReadOnlyBuckets: []string{"archive"},
	})
	require.NoError(t, err)
	assert.Contains(t, store.backends, PrefixFile)
	assert.Contains(t, store.backends, PrefixS3)

	// read-only writes never reach the network
	name, err := store.Save(context.Background(), "s3:archive:docs/1.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "s3:archive:docs/1.pdf", name)
}
