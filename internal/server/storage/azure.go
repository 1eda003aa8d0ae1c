package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// azureBlobs is the slice of the azblob client this package uses. The
// bucket of an az:// url is the container name.
type azureBlobs interface {
	Properties(ctx context.Context, container, name string) (blob.GetPropertiesResponse, error)
	Delete(ctx context.Context, container, name string) error
	Download(ctx context.Context, container, name string) (io.ReadCloser, error)
	SASURL(container, name string, perms sas.BlobPermissions, expiry time.Time) (string, error)
}

type azureClient struct {
	c *azblob.Client
}

func (a azureClient) blob(container, name string) *blob.Client {
	return a.c.ServiceClient().NewContainerClient(container).NewBlobClient(name)
}

func (a azureClient) Properties(ctx context.Context, container, name string) (blob.GetPropertiesResponse, error) {
	return a.blob(container, name).GetProperties(ctx, nil)
}

func (a azureClient) Delete(ctx context.Context, container, name string) error {
	_, err := a.c.DeleteBlob(ctx, container, name, nil)
	return err
}

func (a azureClient) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	resp, err := a.c.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (a azureClient) SASURL(container, name string, perms sas.BlobPermissions, expiry time.Time) (string, error) {
	return a.blob(container, name).GetSASURL(perms, expiry, nil)
}

var newAzureClient = func(account, key string) (azureBlobs, error) {
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, err
	}
	c, err := azblob.NewClientWithSharedKeyCredential(fmt.Sprintf("https://%s.blob.core.windows.net/", account), cred, nil)
	if err != nil {
		return nil, err
	}
	return azureClient{c: c}, nil
}

// AzureStorage is the Azure Blob Storage backend, authenticated with an
// account shared key so that SAS urls can be signed locally.
type AzureStorage struct {
	client   azureBlobs
	validity time.Duration
	now      func() time.Time
}

func NewAzureStorage(account, key string, validity time.Duration) (*AzureStorage, error) {
	c, err := newAzureClient(account, key)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	return &AzureStorage{client: c, validity: validity, now: time.Now}, nil
}

func (s *AzureStorage) Exists(ctx context.Context, path string) (bool, error) {
	return exists(ctx, s, path)
}

func (s *AzureStorage) Info(ctx context.Context, path string) (*ObjectInfo, error) {
	u, err := ParseObjectURL(path, SchemeAzure)
	if err != nil {
		return nil, err
	}
	props, err := s.client.Properties(ctx, u.Bucket, u.Object)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("azure properties %s: %w", path, err)
	}
	info := &ObjectInfo{}
	if props.ContentLength != nil {
		info.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		info.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		info.Updated = *props.LastModified
	}
	return info, nil
}

func (s *AzureStorage) Delete(ctx context.Context, path string, onlyIfPresent bool) error {
	u, err := ParseObjectURL(path, SchemeAzure)
	if err != nil {
		return err
	}
	err = s.client.Delete(ctx, u.Bucket, u.Object)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		if onlyIfPresent {
			return nil
		}
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("azure delete %s: %w", path, err)
	}
	return nil
}

func (s *AzureStorage) sas(path string, perms sas.BlobPermissions) (string, error) {
	u, err := ParseObjectURL(path, SchemeAzure)
	if err != nil {
		return "", err
	}
	return s.client.SASURL(u.Bucket, u.Object, perms, s.now().Add(s.validity))
}

func (s *AzureStorage) SignedUploadURL(_ context.Context, path string) (string, error) {
	return s.sas(path, sas.BlobPermissions{Create: true, Write: true})
}

func (s *AzureStorage) SignedDownloadURL(_ context.Context, path string) (string, error) {
	return s.sas(path, sas.BlobPermissions{Read: true})
}

func (s *AzureStorage) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	u, err := ParseObjectURL(path, SchemeAzure)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Download(ctx, u.Bucket, u.Object)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("azure download %s: %w", path, err)
	}
	return rc, nil
}
