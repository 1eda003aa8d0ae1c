// Package cleanup garbage-collects abandoned uploads: stale uploads are
// buried, and uploads buried long enough are deleted for good, with their
// stored objects removed first unless a File or a live upload still uses
// the same object.
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
)

// Result counts what one sweep did.
type Result struct {
	Seen           int
	ObjectsDeleted int
	ObjectsShared  int
	DeleteFailures int
	Buried         int64
	Purged         int64
}

type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	buriedAfter time.Duration
	logger      logging.Logger
	now         func() time.Time
}

func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, buriedAfter time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		db:          db,
		repomanager: m,
		storage:     st,
		buriedAfter: buriedAfter,
		logger:      logger.With("module", "cleanup"),
		now:         time.Now,
	}
}

// Sweep runs one pass. Objects are deleted before any row changes, so an
// interrupted sweep leaves the upload stale and the next pass retries it.
// An upload whose object could not be deleted is neither buried nor purged
// in this pass.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	start := s.now()
	repo := s.repomanager.Uploads(s.db)

	list, err := repo.ListStale(ctx)
	if err != nil {
		return res, err
	}
	res.Seen = len(list)

	var (
		cleared []*models.Upload
		toBury  []int64
	)
	for _, u := range list {
		shared, err := s.objectInUse(ctx, u)
		if err != nil {
			res.DeleteFailures++
			s.logger.Warn(ctx, "object usage check failed", "upload_id", u.ID, "path", u.StoragePath, "error", err)
			continue
		}
		if shared {
			res.ObjectsShared++
		} else {
			if err := s.storage.Delete(ctx, u.StoragePath, true); err != nil {
				res.DeleteFailures++
				s.logger.Warn(ctx, "object delete failed", "upload_id", u.ID, "path", u.StoragePath, "error", err)
				continue
			}
			res.ObjectsDeleted++
		}
		cleared = append(cleared, u)
		if !u.Buried() {
			toBury = append(toBury, u.ID)
		}
	}

	expired := uploads.FilterBuried(cleared, start, s.buriedAfter)
	if len(expired) > 0 {
		idList := make([]int64, 0, len(expired))
		for _, u := range expired {
			idList = append(idList, u.ID)
		}
		if res.Purged, err = repo.DeleteMany(ctx, idList); err != nil {
			return res, err
		}
	}

	if res.Buried, err = repo.BuryMany(ctx, toBury, start); err != nil {
		return res, err
	}

	if res.Seen > 0 {
		s.logger.Info(ctx, "sweep finished",
			"seen", res.Seen, "objects_deleted", res.ObjectsDeleted, "objects_shared", res.ObjectsShared,
			"delete_failures", res.DeleteFailures,
			"buried", res.Buried, "purged", res.Purged)
	}
	return res, nil
}

// objectInUse reports whether the object behind u also backs a File or
// another upload that is not buried. Storage paths derive from the content
// hash, so a cancelled upload and its re-upload share one object.
func (s *Sweeper) objectInUse(ctx context.Context, u *models.Upload) (bool, error) {
	_, err := s.repomanager.Files(s.db).FindByHash(ctx, u.Hash)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	// At most one upload per hash is unburied, so a hit other than u is a
	// live upload writing to the same object.
	other, err := s.repomanager.Uploads(s.db).FindByHash(ctx, u.Hash, uploads.Filter{IncludeStale: true})
	if err == nil {
		return other.ID != u.ID, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}
