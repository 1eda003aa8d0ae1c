// Package indexing persists per-file indexing progress and extracted text.
package indexing

import (
	"context"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the file was never picked up.
	Get(ctx context.Context, fileID int64) (*models.FileIndexingState, error)
	// List returns every recorded state keyed by file id.
	List(ctx context.Context) (map[int64]*models.FileIndexingState, error)
	Save(ctx context.Context, st *models.FileIndexingState) error
	SaveFulltext(ctx context.Context, fileID int64, content string) error
}
