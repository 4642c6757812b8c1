package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/laws-africa/peachjam/internal/core/domain"
)

// objectClient is the part of the minio client the backend uses.
type objectClient interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// S3Config configures an S3-compatible object store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// ReadOnlyBuckets accept writes and deletes without touching the store.
	ReadOnlyBuckets []string
}

// S3Backend stores blobs as objects. Paths have the form <bucket>:<key>.
type S3Backend struct {
	client   objectClient
	readOnly map[string]bool
}

// NewS3Backend connects to an S3-compatible endpoint.
func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: s3 client: %w", err)
	}
	return newS3Backend(client, cfg.ReadOnlyBuckets), nil
}

func newS3Backend(client objectClient, readOnly []string) *S3Backend {
	ro := make(map[string]bool, len(readOnly))
	for _, b := range readOnly {
		ro[b] = true
	}
	return &S3Backend{client: client, readOnly: ro}
}

func splitObject(p string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(p, ":")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: object path %q", domain.ErrInvalidInput, p)
	}
	return bucket, key, nil
}

// Put uploads an object. Writes to read-only buckets are discarded.
func (b *S3Backend) Put(ctx context.Context, p string, r io.Reader) error {
	bucket, key, err := splitObject(p)
	if err != nil {
		return err
	}
	if b.readOnly[bucket] {
		return nil
	}
	_, err = b.client.PutObject(ctx, bucket, key, r, -1, minio.PutObjectOptions{})
	return err
}

// Get downloads an object.
func (b *S3Backend) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	bucket, key, err := splitObject(p)
	if err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err, p)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, notFound(err, p)
	}
	return obj, nil
}

// Remove deletes an object. Deletes in read-only buckets are discarded.
func (b *S3Backend) Remove(ctx context.Context, p string) error {
	bucket, key, err := splitObject(p)
	if err != nil {
		return err
	}
	if b.readOnly[bucket] {
		return nil
	}
	return b.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

// Stat reports whether an object exists.
func (b *S3Backend) Stat(ctx context.Context, p string) (bool, error) {
	bucket, key, err := splitObject(p)
	if err != nil {
		return false, err
	}
	if _, err := b.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func notFound(err error, p string) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, p)
	}
	return err
}
