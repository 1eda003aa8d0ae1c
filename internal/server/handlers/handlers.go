// Package handlers binds the upload and file services to RPC method names
// and translates their outcomes into RPC results and errors.
package handlers

import (
	"context"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
)

// Uploads is the upload lifecycle as the handlers use it.
type Uploads interface {
	Begin(ctx context.Context, hash models.Hash, length int64, name string) (*models.Upload, string, error)
	Cancel(ctx context.Context, id int64) error
	ReportProgress(ctx context.Context, id int64, reported int64) error
	GetProgress(ctx context.Context, id int64) (float64, error)
	ListInProgress(ctx context.Context) ([]*models.Upload, error)
	Finish(ctx context.Context, id int64, name string, tags []string, relevance *time.Time) (*models.File, error)
}

// Files is read access to finished files.
type Files interface {
	List(ctx context.Context) ([]services.FileEntry, error)
	Get(ctx context.Context, id int64) (services.FileEntry, error)
	IndexingState(ctx context.Context, id int64) (*models.FileIndexingState, error)
	IndexingError(ctx context.Context, id int64) (*models.IndexingErrorContext, error)
	RequestDownload(ctx context.Context, id int64) (string, error)
}

type Handlers struct {
	uploads Uploads
	files   Files
	logger  logging.Logger
}

func New(u Uploads, f Files, logger logging.Logger) *Handlers {
	return &Handlers{uploads: u, files: f, logger: logger.With("module", "handlers")}
}

// Register installs every method on r.
func (h *Handlers) Register(r *rpc.Registry) {
	r.RegisterFunc("test.hello_world", func(ctx context.Context, _ rpc.Params) (any, error) {
		return "hi!", nil
	})

	r.RegisterFunc("uploads.begin", h.BeginUpload)
	r.RegisterFunc("uploads.cancel", h.CancelUpload)
	r.RegisterFunc("uploads.finish", h.FinishUpload)
	r.RegisterFunc("uploads.report_progress", h.ReportProgress)
	r.RegisterFunc("uploads.progress", h.GetProgress)
	r.RegisterFunc("uploads.list", h.ListUploads)

	r.RegisterFunc("files.list", h.ListFiles)
	r.RegisterFunc("files.get", h.GetFile)
	r.RegisterFunc("files.indexing_progress", h.IndexingProgress)
	r.RegisterFunc("files.indexing_error", h.IndexingError)
	r.RegisterFunc("files.request_download", h.RequestDownload)
}
