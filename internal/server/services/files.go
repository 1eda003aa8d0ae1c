package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
)

// FileEntry is a file together with its indexing progress.
type FileEntry struct {
	File     *models.File
	Indexing models.IndexingState
}

// FileService serves read access to finished files.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage) *FileService {
	return &FileService{db: db, repomanager: m, storage: st}
}

func (s *FileService) List(ctx context.Context) ([]FileEntry, error) {
	list, err := s.repomanager.Files(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	states, err := s.repomanager.Indexing(s.db).List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]FileEntry, 0, len(list))
	for _, f := range list {
		e := FileEntry{File: f, Indexing: models.IndexingQueued}
		if st, ok := states[f.ID]; ok {
			e.Indexing = st.State
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *FileService) Get(ctx context.Context, id int64) (FileEntry, error) {
	f, err := s.repomanager.Files(s.db).Get(ctx, id)
	if err != nil {
		return FileEntry{}, err
	}
	st, err := s.indexingState(ctx, id)
	if err != nil {
		return FileEntry{}, err
	}
	return FileEntry{File: f, Indexing: st.State}, nil
}

// IndexingState returns the recorded state, or a queued state for files the
// indexer has not picked up yet.
func (s *FileService) IndexingState(ctx context.Context, id int64) (*models.FileIndexingState, error) {
	ok, err := s.repomanager.Files(s.db).Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s.indexingState(ctx, id)
}

func (s *FileService) indexingState(ctx context.Context, id int64) (*models.FileIndexingState, error) {
	st, err := s.repomanager.Indexing(s.db).Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return &models.FileIndexingState{FileID: id, State: models.IndexingQueued}, nil
	}
	return st, err
}

// IndexingError returns why indexing failed, or ErrNotInErrorState.
func (s *FileService) IndexingError(ctx context.Context, id int64) (*models.IndexingErrorContext, error) {
	st, err := s.IndexingState(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.State != models.IndexingError || st.ErrorContext == nil {
		return nil, ErrNotInErrorState
	}
	return st.ErrorContext, nil
}

// RequestDownload returns a signed URL for the file's content.
func (s *FileService) RequestDownload(ctx context.Context, id int64) (string, error) {
	f, err := s.repomanager.Files(s.db).Get(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.storage.SignedDownloadURL(ctx, f.StoragePath)
	if err != nil {
		return "", fmt.Errorf("signed download url: %w", err)
	}
	return url, nil
}
