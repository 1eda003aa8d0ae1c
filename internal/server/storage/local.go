package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/filex"
)

// LocalStorage keeps objects under a root directory, one subdirectory per
// bucket. Signed urls point at this service's own /blobs endpoint and carry
// an HS256 token naming the object and the allowed method.
type LocalStorage struct {
	root     string
	baseURL  string
	signer   urlSigner
	validity time.Duration
}

func NewLocalStorage(root, publicBaseURL string, signingKey []byte, validity time.Duration) (*LocalStorage, error) {
	if root == "" {
		return nil, errors.New("local storage root is not set")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("local storage signing key is not set")
	}
	abs, err := filex.EnsureDir(root, 0o750)
	if err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{
		root:     abs,
		baseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		signer:   urlSigner{key: signingKey, now: time.Now},
		validity: validity,
	}, nil
}

// file maps an object url to a location inside root.
func (s *LocalStorage) file(path string) (string, error) {
	u, err := ParseObjectURL(path, SchemeLocal)
	if err != nil {
		return "", err
	}
	name := filepath.Join(s.root, u.Bucket, filepath.FromSlash(u.Object))
	if !strings.HasPrefix(name, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the storage root", ErrInvalidURL, path)
	}
	return name, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	return exists(ctx, s, path)
}

func (s *LocalStorage) Info(_ context.Context, path string) (*ObjectInfo, error) {
	name, err := s.file(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, ErrObjectNotFound
	}
	return &ObjectInfo{Size: st.Size(), Updated: st.ModTime()}, nil
}

func (s *LocalStorage) Delete(_ context.Context, path string, onlyIfPresent bool) error {
	name, err := s.file(path)
	if err != nil {
		return err
	}
	err = os.Remove(name)
	if errors.Is(err, fs.ErrNotExist) {
		if onlyIfPresent {
			return nil
		}
		return ErrObjectNotFound
	}
	return err
}

func (s *LocalStorage) signedURL(path, method string) (string, error) {
	if _, err := s.file(path); err != nil {
		return "", err
	}
	token, err := s.signer.sign(path, method, s.validity)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/blobs/" + token, nil
}

func (s *LocalStorage) SignedUploadURL(_ context.Context, path string) (string, error) {
	return s.signedURL(path, http.MethodPut)
}

func (s *LocalStorage) SignedDownloadURL(_ context.Context, path string) (string, error) {
	return s.signedURL(path, http.MethodGet)
}

func (s *LocalStorage) DownloadStream(_ context.Context, path string) (io.ReadCloser, error) {
	name, err := s.file(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Receive stores body under the object granted by a PUT token. The data is
// written to a temporary file first so readers never see a partial object.
func (s *LocalStorage) Receive(ctx context.Context, token string, body io.Reader) (int64, error) {
	path, err := s.signer.verify(token, http.MethodPut)
	if err != nil {
		return 0, err
	}
	name, err := s.file(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	return n, os.Rename(tmp.Name(), name)
}

// Open resolves a GET token and opens the object it names.
func (s *LocalStorage) Open(ctx context.Context, token string) (io.ReadCloser, error) {
	path, err := s.signer.verify(token, http.MethodGet)
	if err != nil {
		return nil, err
	}
	return s.DownloadStream(ctx, path)
}
