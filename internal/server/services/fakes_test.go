package services

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/files"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/indexing"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testStaleAfter = 24 * time.Hour

// -------- test fakes --------

type fakeUploads struct {
	uploads.Repository
	byID    map[int64]*models.Upload
	nextID  int64
	created int
	// createErr is returned once by CreateEmpty, then cleared.
	createErr error
	deleted   []int64
}

func (f *fakeUploads) visible(u *models.Upload, flt uploads.Filter) bool {
	if u.Buried() && !flt.IncludeBuried {
		return false
	}
	if u.Stale(testNow, testStaleAfter) && !flt.IncludeStale {
		return false
	}
	return true
}

func (f *fakeUploads) CreateEmpty(ctx context.Context, hash models.Hash, length int64, path, name string) (*models.Upload, error) {
	if err := f.createErr; err != nil {
		f.createErr = nil
		return nil, err
	}
	f.nextID++
	f.created++
	u := &models.Upload{ID: f.nextID, Hash: hash, Length: length, StoragePath: path, Name: name, UploadStart: testNow}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUploads) Get(ctx context.Context, id int64, flt uploads.Filter) (*models.Upload, error) {
	u, ok := f.byID[id]
	if !ok || !f.visible(u, flt) {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUploads) FindByHash(ctx context.Context, hash models.Hash, flt uploads.Filter) (*models.Upload, error) {
	for _, u := range f.byID {
		if string(u.Hash) == string(hash) && f.visible(u, flt) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUploads) Select(ctx context.Context, flt uploads.Filter) ([]*models.Upload, error) {
	var out []*models.Upload
	for _, u := range f.byID {
		if f.visible(u, flt) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUploads) Bury(ctx context.Context, id int64, at time.Time) error {
	u, ok := f.byID[id]
	if !ok || u.Buried() {
		return common.ErrorNotFound
	}
	u.PendingRemovalSince = &at
	return nil
}

func (f *fakeUploads) SetProgress(ctx context.Context, id int64, progress float64, at time.Time) error {
	u, ok := f.byID[id]
	if !ok || u.Buried() {
		return common.ErrorNotFound
	}
	u.Progress = progress
	u.LastProgressReport = &at
	return nil
}

func (f *fakeUploads) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeFiles struct {
	files.Repository
	byID      map[int64]*models.File
	nextID    int64
	createErr error
}

func (f *fakeFiles) Create(ctx context.Context, file *models.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	file.ID = 1000 + f.nextID
	f.byID[file.ID] = file
	return nil
}

func (f *fakeFiles) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeFiles) Get(ctx context.Context, id int64) (*models.File, error) {
	file, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

func (f *fakeFiles) FindByHash(ctx context.Context, hash models.Hash) (*models.File, error) {
	for _, file := range f.byID {
		if string(file.Hash) == string(hash) {
			return file, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFiles) List(ctx context.Context) ([]*models.File, error) {
	var out []*models.File
	for _, file := range f.byID {
		out = append(out, file)
	}
	return out, nil
}

type fakeIndexing struct {
	indexing.Repository
	states map[int64]*models.FileIndexingState
}

func (f *fakeIndexing) Get(ctx context.Context, id int64) (*models.FileIndexingState, error) {
	st, ok := f.states[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return st, nil
}

func (f *fakeIndexing) List(ctx context.Context) (map[int64]*models.FileIndexingState, error) {
	return f.states, nil
}

type fakeRM struct {
	repomanager.RepositoryManager
	uploads  *fakeUploads
	files    *fakeFiles
	indexing *fakeIndexing
}

func newFakeRM() *fakeRM {
	return &fakeRM{
		uploads:  &fakeUploads{byID: map[int64]*models.Upload{}},
		files:    &fakeFiles{byID: map[int64]*models.File{}},
		indexing: &fakeIndexing{states: map[int64]*models.FileIndexingState{}},
	}
}

func (m *fakeRM) Uploads(db dbx.DBTX) uploads.Repository   { return m.uploads }
func (m *fakeRM) Files(db dbx.DBTX) files.Repository       { return m.files }
func (m *fakeRM) Indexing(db dbx.DBTX) indexing.Repository { return m.indexing }

type fakeStorage struct {
	storage.Storage
	sizes   map[string]int64
	infoErr error
}

func (f *fakeStorage) Info(ctx context.Context, path string) (*storage.ObjectInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	size, ok := f.sizes[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.ObjectInfo{Size: size}, nil
}

func (f *fakeStorage) SignedUploadURL(ctx context.Context, path string) (string, error) {
	return "https://upload/" + path, nil
}

func (f *fakeStorage) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	return "https://download/" + path, nil
}

func (f *fakeStorage) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

type fakeIndexer struct {
	queued []int64
}

func (f *fakeIndexer) Enqueue(id int64) { f.queued = append(f.queued, id) }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}
