package files

import (
	"context"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

type Repository interface {
	// Create allocates an id for f and inserts it. It must run inside the
	// caller's transaction. A duplicate hash yields common.ErrorAlreadyExists.
	Create(ctx context.Context, f *models.File) error
	Exists(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64) (*models.File, error)
	FindByHash(ctx context.Context, hash models.Hash) (*models.File, error)
	List(ctx context.Context) ([]*models.File, error)
	SetType(ctx context.Context, id int64, t models.FileType) error
}
