package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsObjects is the slice of the GCS client this package uses.
type gcsObjects interface {
	Attrs(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error)
	Delete(ctx context.Context, bucket, object string) error
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	SignedURL(bucket, object string, opts *gcs.SignedURLOptions) (string, error)
}

type gcsClient struct {
	c *gcs.Client
}

func (g gcsClient) Attrs(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error) {
	return g.c.Bucket(bucket).Object(object).Attrs(ctx)
}

func (g gcsClient) Delete(ctx context.Context, bucket, object string) error {
	return g.c.Bucket(bucket).Object(object).Delete(ctx)
}

func (g gcsClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return g.c.Bucket(bucket).Object(object).NewReader(ctx)
}

func (g gcsClient) SignedURL(bucket, object string, opts *gcs.SignedURLOptions) (string, error) {
	return g.c.Bucket(bucket).SignedURL(object, opts)
}

var newGCSClient = func(ctx context.Context, opts ...option.ClientOption) (gcsObjects, error) {
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return gcsClient{c: c}, nil
}

// GCSStorage is the Google Cloud Storage backend. Signed URLs use the V4
// scheme with the client's service account.
type GCSStorage struct {
	client   gcsObjects
	validity time.Duration
	now      func() time.Time
}

// NewGCSStorage uses credentialsFile when set, application default
// credentials otherwise.
func NewGCSStorage(ctx context.Context, credentialsFile string, validity time.Duration) (*GCSStorage, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := newGCSClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSStorage{client: c, validity: validity, now: time.Now}, nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	return exists(ctx, s, path)
}

func (s *GCSStorage) Info(ctx context.Context, path string) (*ObjectInfo, error) {
	u, err := ParseObjectURL(path, SchemeGCS)
	if err != nil {
		return nil, err
	}
	attrs, err := s.client.Attrs(ctx, u.Bucket, u.Object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("gcs attrs %s: %w", path, err)
	}
	return &ObjectInfo{Size: attrs.Size, ContentType: attrs.ContentType, Updated: attrs.Updated}, nil
}

func (s *GCSStorage) Delete(ctx context.Context, path string, onlyIfPresent bool) error {
	u, err := ParseObjectURL(path, SchemeGCS)
	if err != nil {
		return err
	}
	err = s.client.Delete(ctx, u.Bucket, u.Object)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		if onlyIfPresent {
			return nil
		}
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("gcs delete %s: %w", path, err)
	}
	return nil
}

func (s *GCSStorage) signed(path, method string) (string, error) {
	u, err := ParseObjectURL(path, SchemeGCS)
	if err != nil {
		return "", err
	}
	return s.client.SignedURL(u.Bucket, u.Object, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  method,
		Expires: s.now().Add(s.validity),
	})
}

func (s *GCSStorage) SignedUploadURL(_ context.Context, path string) (string, error) {
	return s.signed(path, http.MethodPut)
}

func (s *GCSStorage) SignedDownloadURL(_ context.Context, path string) (string, error) {
	return s.signed(path, http.MethodGet)
}

func (s *GCSStorage) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	u, err := ParseObjectURL(path, SchemeGCS)
	if err != nil {
		return nil, err
	}
	r, err := s.client.NewReader(ctx, u.Bucket, u.Object)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("gcs read %s: %w", path, err)
	}
	return r, nil
}
