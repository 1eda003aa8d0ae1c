package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/", []byte("signing-key"), time.Minute)
	require.NoError(t, err)
	return s
}

func tokenOf(t *testing.T, signed string) string {
	t.Helper()
	tok, ok := strings.CutPrefix(signed, "http://localhost:8080/blobs/")
	require.True(t, ok, signed)
	return tok
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()
	path := "file://blobs/ab/cd"

	ok, err := s.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, ok)

	up, err := s.SignedUploadURL(ctx, path)
	require.NoError(t, err)

	n, err := s.Receive(ctx, tokenOf(t, up), strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	info, err := s.Info(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)

	down, err := s.SignedDownloadURL(ctx, path)
	require.NoError(t, err)
	rc, err := s.Open(ctx, tokenOf(t, down))
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(b))

	require.NoError(t, s.Delete(ctx, path, false))
	assert.ErrorIs(t, s.Delete(ctx, path, false), ErrObjectNotFound)
	require.NoError(t, s.Delete(ctx, path, true))

	_, err = s.DownloadStream(ctx, path)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_TokenChecks(t *testing.T) {
	s := newLocal(t)
	ctx := context.Background()

	up, err := s.SignedUploadURL(ctx, "file://blobs/x")
	require.NoError(t, err)

	// a PUT token cannot be used to read
	_, err = s.Open(ctx, tokenOf(t, up))
	assert.ErrorIs(t, err, ErrInvalidBlobToken)

	_, err = s.Receive(ctx, "garbage", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidBlobToken)

	other, err := NewLocalStorage(t.TempDir(), "http://localhost:8080", []byte("other-key"), time.Minute)
	require.NoError(t, err)
	_, err = other.Receive(ctx, tokenOf(t, up), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidBlobToken)

	s.signer.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = s.Receive(ctx, tokenOf(t, up), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidBlobToken)
}

func TestLocalStorage_RejectsEscapes(t *testing.T) {
	s := newLocal(t)
	_, err := s.Info(context.Background(), "file://blobs/../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = s.SignedUploadURL(context.Background(), "s3://blobs/x")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestNewLocalStorage_Validation(t *testing.T) {
	_, err := NewLocalStorage("", "", []byte("k"), time.Minute)
	assert.Error(t, err)
	_, err = NewLocalStorage(t.TempDir(), "", nil, time.Minute)
	assert.Error(t, err)
}

func TestNew_SelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Options{
		URLPrefix:  "file://blobs/",
		LocalRoot:  t.TempDir(),
		SigningKey: "k",
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = New(context.Background(), Options{URLPrefix: "ftp://x/"})
	assert.ErrorContains(t, err, "unsupported storage scheme")

	_, err = New(context.Background(), Options{URLPrefix: "nope"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}
