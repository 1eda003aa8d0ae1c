// Package services holds the business logic behind the RPC methods.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/config"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
)

// Indexer is notified once per finished file. Enqueue must not block.
type Indexer interface {
	Enqueue(fileID int64)
}

// UploadService coordinates the upload lifecycle: begin, progress reports,
// cancel and finish into a File.
type UploadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	indexer     Indexer
	config      *config.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewUploadService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, idx Indexer, cfg *config.Config, logger logging.Logger) *UploadService {
	return &UploadService{
		db:          db,
		repomanager: m,
		storage:     st,
		indexer:     idx,
		config:      cfg,
		logger:      logger.With("module", "uploads"),
		now:         time.Now,
	}
}

// Begin registers a new upload of hash and returns it with a signed URL
// the client uploads the content to.
//
// The file and upload conflict checks run in the same transaction as the
// insert. A concurrent Begin for the same hash that commits first is
// reported as UploadInProgressError by the unique index on live hashes.
func (s *UploadService) Begin(ctx context.Context, hash models.Hash, length int64, name string) (*models.Upload, string, error) {
	if length > s.config.MaxUploadSize {
		return nil, "", ErrSizeLimitExceeded
	}

	path := storage.ObjectPath(s.config.StorageURLPrefix, hash)

	var upload *models.Upload
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		f, err := s.repomanager.Files(tx).FindByHash(ctx, hash)
		if err == nil {
			return &AlreadyUploadedError{File: f}
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		repo := s.repomanager.Uploads(tx)
		u, err := repo.FindByHash(ctx, hash, uploads.Filter{IncludeStale: true})
		if err == nil {
			return &UploadInProgressError{Upload: u}
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		upload, err = repo.CreateEmpty(ctx, hash, length, path, name)
		return err
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		u, ferr := s.repomanager.Uploads(s.db).FindByHash(ctx, hash, uploads.Filter{IncludeStale: true})
		if ferr != nil {
			return nil, "", fmt.Errorf("lost begin race, reload winner: %w", ferr)
		}
		return nil, "", &UploadInProgressError{Upload: u}
	}
	if err != nil {
		return nil, "", err
	}

	url, err := s.storage.SignedUploadURL(ctx, path)
	if err != nil {
		return nil, "", fmt.Errorf("signed upload url: %w", err)
	}

	s.logger.Info(ctx, "upload started", "upload_id", upload.ID, "hash", hash.Hex(), "length", length)
	return upload, url, nil
}

// Cancel buries the upload. The object is left for the cleanup sweep since
// the client may still be writing to the signed URL.
func (s *UploadService) Cancel(ctx context.Context, id int64) error {
	repo := s.repomanager.Uploads(s.db)
	if _, err := repo.Get(ctx, id, uploads.Active); err != nil {
		return err
	}
	if err := repo.Bury(ctx, id, s.now()); err != nil {
		return err
	}
	s.logger.Info(ctx, "upload cancelled", "upload_id", id)
	return nil
}

// ReportProgress stores reported/length as the upload's progress. Reports
// are not required to increase; the fraction is clamped to [0, 1].
func (s *UploadService) ReportProgress(ctx context.Context, id int64, reported int64) error {
	repo := s.repomanager.Uploads(s.db)
	u, err := repo.Get(ctx, id, uploads.Active)
	if err != nil {
		return err
	}
	return repo.SetProgress(ctx, id, fraction(reported, u.Length), s.now())
}

func fraction(reported, length int64) float64 {
	if length <= 0 {
		return 1
	}
	p := float64(reported) / float64(length)
	return min(max(p, 0), 1)
}

func (s *UploadService) GetProgress(ctx context.Context, id int64) (float64, error) {
	u, err := s.repomanager.Uploads(s.db).Get(ctx, id, uploads.Active)
	if err != nil {
		return 0, err
	}
	return u.Progress, nil
}

// ListInProgress returns uploads that are neither stale nor buried.
func (s *UploadService) ListInProgress(ctx context.Context) ([]*models.Upload, error) {
	return s.repomanager.Uploads(s.db).Select(ctx, uploads.Active)
}

// Finish turns a completed upload into a File. The object must already be
// in storage with exactly the declared length. Indexing is triggered after
// the transaction commits.
func (s *UploadService) Finish(ctx context.Context, id int64, name string, tags []string, relevance *time.Time) (*models.File, error) {
	u, err := s.repomanager.Uploads(s.db).Get(ctx, id, uploads.Active)
	if err != nil {
		return nil, err
	}

	info, err := s.storage.Info(ctx, u.StoragePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, &UploadInProgressError{Upload: u}
	}
	if err != nil {
		return nil, fmt.Errorf("object info: %w", err)
	}
	if info.Size != u.Length || info.Size > s.config.MaxUploadSize {
		return nil, ErrSizeLimitExceeded
	}

	f := models.NewFileFromUpload(u, name, tags, relevance)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Files(tx).Create(ctx, f); err != nil {
			return err
		}
		return s.repomanager.Uploads(tx).Delete(ctx, u.ID)
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		winner, ferr := s.repomanager.Files(s.db).FindByHash(ctx, u.Hash)
		if ferr != nil {
			return nil, fmt.Errorf("lost finish race, reload winner: %w", ferr)
		}
		return nil, &AlreadyUploadedError{File: winner}
	}
	if err != nil {
		return nil, err
	}

	s.indexer.Enqueue(f.ID)
	s.logger.Info(ctx, "upload finished", "upload_id", u.ID, "file_id", f.ID)
	return f, nil
}
