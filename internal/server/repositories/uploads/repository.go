// Package uploads persists in-flight uploads.
//
// Read paths hide stale and buried uploads unless a Filter asks for them.
// An upload is stale once its upload_start is older than the repository's
// stale threshold, and buried once pending_removal_since is set.
package uploads

import (
	"context"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

// Filter widens a read to stale and/or buried uploads.
type Filter struct {
	IncludeStale  bool
	IncludeBuried bool
}

// Active is the default filter: neither stale nor buried.
var Active = Filter{}

type Repository interface {
	// CreateEmpty inserts a fresh upload with progress 0 and an allocated id.
	// It must run inside the caller's transaction. A live upload with the
	// same hash yields common.ErrorAlreadyExists.
	CreateEmpty(ctx context.Context, hash models.Hash, length int64, path, name string) (*models.Upload, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Get(ctx context.Context, id int64, f Filter) (*models.Upload, error)
	FindByHash(ctx context.Context, hash models.Hash, f Filter) (*models.Upload, error)
	Select(ctx context.Context, f Filter) ([]*models.Upload, error)
	// ListStale returns uploads that are stale or already buried.
	ListStale(ctx context.Context) ([]*models.Upload, error)
	Bury(ctx context.Context, id int64, at time.Time) error
	BuryMany(ctx context.Context, ids []int64, at time.Time) (int64, error)
	SetProgress(ctx context.Context, id int64, progress float64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
}

// FilterBuried returns the uploads buried before start-buriedAfter. start
// should be taken before the listing was read.
func FilterBuried(list []*models.Upload, start time.Time, buriedAfter time.Duration) []*models.Upload {
	threshold := start.Add(-buriedAfter)
	var out []*models.Upload
	for _, u := range list {
		if u.PendingRemovalSince != nil && u.PendingRemovalSince.Before(threshold) {
			out = append(out, u)
		}
	}
	return out
}
