package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
	"github.com/stretchr/testify/require"
)

type fakeUploads struct {
	Uploads

	begin    func(hash models.Hash, length int64, name string) (*models.Upload, string, error)
	cancel   func(id int64) error
	report   func(id, reported int64) error
	progress func(id int64) (float64, error)
	list     func() ([]*models.Upload, error)
	finish   func(id int64, name string, tags []string, relevance *time.Time) (*models.File, error)
}

func (f *fakeUploads) Begin(_ context.Context, hash models.Hash, length int64, name string) (*models.Upload, string, error) {
	return f.begin(hash, length, name)
}

func (f *fakeUploads) Cancel(_ context.Context, id int64) error { return f.cancel(id) }

func (f *fakeUploads) ReportProgress(_ context.Context, id, reported int64) error {
	return f.report(id, reported)
}

func (f *fakeUploads) GetProgress(_ context.Context, id int64) (float64, error) {
	return f.progress(id)
}

func (f *fakeUploads) ListInProgress(context.Context) ([]*models.Upload, error) { return f.list() }

func (f *fakeUploads) Finish(_ context.Context, id int64, name string, tags []string, relevance *time.Time) (*models.File, error) {
	return f.finish(id, name, tags, relevance)
}

type fakeFiles struct {
	Files

	list     func() ([]services.FileEntry, error)
	get      func(id int64) (services.FileEntry, error)
	state    func(id int64) (*models.FileIndexingState, error)
	failure  func(id int64) (*models.IndexingErrorContext, error)
	download func(id int64) (string, error)
}

func (f *fakeFiles) List(context.Context) ([]services.FileEntry, error) { return f.list() }

func (f *fakeFiles) Get(_ context.Context, id int64) (services.FileEntry, error) { return f.get(id) }

func (f *fakeFiles) IndexingState(_ context.Context, id int64) (*models.FileIndexingState, error) {
	return f.state(id)
}

func (f *fakeFiles) IndexingError(_ context.Context, id int64) (*models.IndexingErrorContext, error) {
	return f.failure(id)
}

func (f *fakeFiles) RequestDownload(_ context.Context, id int64) (string, error) {
	return f.download(id)
}

func newHandlers(u *fakeUploads, f *fakeFiles) *Handlers {
	return New(u, f, logging.Nop())
}

func params(t *testing.T, s string) rpc.Params {
	t.Helper()
	var p rpc.Params
	require.NoError(t, json.Unmarshal([]byte(s), &p))
	return p
}

// requireRPCError asserts err is an *rpc.Error with the given code and
// message and returns it.
func requireRPCError(t *testing.T, err error, code int, message string) *rpc.Error {
	t.Helper()
	rerr, ok := err.(*rpc.Error)
	require.True(t, ok, "want *rpc.Error, got %T: %v", err, err)
	require.Equal(t, code, rerr.Code)
	require.Equal(t, message, rerr.Message)
	return rerr
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
