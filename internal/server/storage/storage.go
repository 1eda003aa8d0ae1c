// Package storage is the blob-store collaborator: object metadata, deletion,
// signed transfer URLs and streaming reads, over S3, GCS, Azure Blob Storage
// or a local directory.
//
// Objects are addressed by URLs of the form scheme://bucket/object. The
// scheme selects the backend and must match the one the Storage was built for.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound is returned when the addressed object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Backend schemes.
const (
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeAzure = "az"
	SchemeLocal = "file"
)

// ObjectInfo is the subset of object metadata the service relies on.
type ObjectInfo struct {
	Size        int64
	ContentType string
	Updated     time.Time
}

// Storage is implemented by every backend.
type Storage interface {
	Exists(ctx context.Context, path string) (bool, error)
	// Info fails with ErrObjectNotFound when the object is absent.
	Info(ctx context.Context, path string) (*ObjectInfo, error)
	// Delete removes the object. With onlyIfPresent a missing object is not
	// an error; otherwise it yields ErrObjectNotFound.
	Delete(ctx context.Context, path string, onlyIfPresent bool) error
	SignedUploadURL(ctx context.Context, path string) (string, error)
	SignedDownloadURL(ctx context.Context, path string) (string, error)
	DownloadStream(ctx context.Context, path string) (io.ReadCloser, error)
}

// Options configures New. Only the fields of the selected backend are read.
type Options struct {
	URLPrefix         string
	SignedURLValidity time.Duration

	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string

	GCSCredentialsFile string

	AzureAccount string
	AzureKey     string

	LocalRoot     string
	PublicBaseURL string
	SigningKey    string
}

// New builds the backend matching the scheme of o.URLPrefix.
func New(ctx context.Context, o Options) (Storage, error) {
	u, err := ParseURL(o.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("storage url prefix: %w", err)
	}
	switch u.Scheme {
	case SchemeS3:
		return NewS3Storage(ctx, o.S3Region, o.S3AccessKey, o.S3SecretKey, o.S3BaseEndpoint, o.SignedURLValidity)
	case SchemeGCS:
		return NewGCSStorage(ctx, o.GCSCredentialsFile, o.SignedURLValidity)
	case SchemeAzure:
		return NewAzureStorage(o.AzureAccount, o.AzureKey, o.SignedURLValidity)
	case SchemeLocal:
		return NewLocalStorage(o.LocalRoot, o.PublicBaseURL, []byte(o.SigningKey), o.SignedURLValidity)
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

// exists maps Info onto a presence check.
func exists(ctx context.Context, s Storage, path string) (bool, error) {
	_, err := s.Info(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	return false, err
}
