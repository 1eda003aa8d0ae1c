package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/files"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/indexing"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/uploads"
)

// RepositoryManager vends repositories bound to a DBTX, so services can hand
// in either the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Uploads(db dbx.DBTX) uploads.Repository
	Files(db dbx.DBTX) files.Repository
	Indexing(db dbx.DBTX) indexing.Repository
}
