package indexing

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
)

// MaxPlaintextSize bounds how much of an object is read into memory.
const MaxPlaintextSize = 32 << 20

const failureMessage = "Sorry, an error has occured."

// PlaintextIndexer stores a file's raw content as its full text.
type PlaintextIndexer struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	now         func() time.Time
}

func NewPlaintextIndexer(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage) *PlaintextIndexer {
	return &PlaintextIndexer{db: db, repomanager: m, storage: st, now: time.Now}
}

// Index runs ingest for fileID. Any failure after the state row exists is
// recorded as an error state before being returned.
func (ix *PlaintextIndexer) Index(ctx context.Context, fileID int64) error {
	f, err := ix.repomanager.Files(ix.db).Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("load file %d: %w", fileID, err)
	}

	states := ix.repomanager.Indexing(ix.db)
	st := &models.FileIndexingState{FileID: fileID, State: models.IndexingIngest, LastActivity: ix.now()}
	if err := states.Save(ctx, st); err != nil {
		return err
	}

	if err := ix.ingest(ctx, f); err != nil {
		st.State = models.IndexingError
		st.ErrorContext = errorContext(err)
		st.LastActivity = ix.now()
		if serr := states.Save(ctx, st); serr != nil {
			return fmt.Errorf("%w (saving error state: %v)", err, serr)
		}
		return err
	}

	st.State = models.IndexingFinished
	st.LastActivity = ix.now()
	return states.Save(ctx, st)
}

func (ix *PlaintextIndexer) ingest(ctx context.Context, f *models.File) error {
	rc, err := ix.storage.DownloadStream(ctx, f.StoragePath)
	if err != nil {
		return fmt.Errorf("download %s: %w", f.StoragePath, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, MaxPlaintextSize))
	if err != nil {
		return fmt.Errorf("read %s: %w", f.StoragePath, err)
	}

	if err := ix.repomanager.Indexing(ix.db).SaveFulltext(ctx, f.ID, sanitize(raw)); err != nil {
		return err
	}
	return ix.repomanager.Files(ix.db).SetType(ctx, f.ID, models.FileTypePlain)
}

// sanitize makes raw storable in a text column: valid UTF-8 without NULs.
func sanitize(raw []byte) string {
	s := strings.ToValidUTF8(string(raw), "�")
	return strings.ReplaceAll(s, "\x00", "")
}

func errorContext(err error) *models.IndexingErrorContext {
	location := "<unknown>:0"
	if _, file, line, ok := runtime.Caller(1); ok {
		location = fmt.Sprintf("%s:%d", file, line)
	}
	return &models.IndexingErrorContext{
		Message:          failureMessage,
		Exception:        fmt.Sprintf("%T", err),
		ExceptionMessage: err.Error(),
		Location:         location,
		Trace:            string(debug.Stack()),
	}
}
