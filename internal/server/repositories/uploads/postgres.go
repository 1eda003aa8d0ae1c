package uploads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

const selectColumns = `SELECT id, hash, length, gcs_path, name, upload_start, progress, last_progress_report, pending_removal_since FROM uploads`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db         dbx.DBTX
	staleAfter time.Duration
	now        func() time.Time
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX, staleAfter time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, staleAfter: staleAfter, now: time.Now}
}

func (r *PostgresRepository) CreateEmpty(ctx context.Context, hash models.Hash, length int64, path, name string) (*models.Upload, error) {
	id, err := ids.Allocate(ctx, r.Exists)
	if err != nil {
		return nil, err
	}

	u := &models.Upload{
		ID:          id,
		Hash:        hash,
		Length:      length,
		StoragePath: path,
		Name:        name,
		UploadStart: r.now().UTC(),
		Progress:    0,
	}

	query := `
		INSERT INTO uploads (id, hash, length, gcs_path, name, upload_start, progress)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
	`
	_, err = r.db.ExecContext(ctx, query, u.ID, []byte(u.Hash), u.Length, u.StoragePath, u.Name, u.UploadStart)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM uploads WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64, f Filter) (*models.Upload, error) {
	return r.one(ctx, f, "id=$%d", id)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash models.Hash, f Filter) (*models.Upload, error) {
	return r.one(ctx, f, "hash=$%d", []byte(hash))
}

func (r *PostgresRepository) Select(ctx context.Context, f Filter) ([]*models.Upload, error) {
	where, args := r.conditions(f)
	query := selectColumns + where + ` ORDER BY upload_start`
	return r.list(ctx, query, args...)
}

func (r *PostgresRepository) ListStale(ctx context.Context) ([]*models.Upload, error) {
	query := selectColumns + ` WHERE upload_start < $1 OR pending_removal_since IS NOT NULL`
	return r.list(ctx, query, r.staleThreshold())
}

func (r *PostgresRepository) Bury(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE uploads SET pending_removal_since=$1 WHERE id=$2 AND pending_removal_since IS NULL`
	res, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

func (r *PostgresRepository) BuryMany(ctx context.Context, idList []int64, at time.Time) (int64, error) {
	if len(idList) == 0 {
		return 0, nil
	}
	query := `UPDATE uploads SET pending_removal_since=$1 WHERE id = ANY($2) AND pending_removal_since IS NULL`
	res, err := r.db.ExecContext(ctx, query, at.UTC(), idList)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) SetProgress(ctx context.Context, id int64, progress float64, at time.Time) error {
	query := `UPDATE uploads SET progress=$1, last_progress_report=$2 WHERE id=$3 AND pending_removal_since IS NULL`
	res, err := r.db.ExecContext(ctx, query, progress, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return exactlyOne(res)
}

func (r *PostgresRepository) DeleteMany(ctx context.Context, idList []int64) (int64, error) {
	if len(idList) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ANY($1)`, idList)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) staleThreshold() time.Time {
	return r.now().Add(-r.staleAfter).UTC()
}

// conditions renders the WHERE clause for f. Placeholders start at $1.
func (r *PostgresRepository) conditions(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if !f.IncludeStale {
		args = append(args, r.staleThreshold())
		clauses = append(clauses, fmt.Sprintf("upload_start >= $%d", len(args)))
	}
	if !f.IncludeBuried {
		clauses = append(clauses, "pending_removal_since IS NULL")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// one selects a single upload matching f and cond. cond is a format string
// taking the placeholder index of val.
func (r *PostgresRepository) one(ctx context.Context, f Filter, cond string, val any) (*models.Upload, error) {
	where, args := r.conditions(f)
	args = append(args, val)
	c := fmt.Sprintf(cond, len(args))
	if where == "" {
		where = " WHERE " + c
	} else {
		where += " AND " + c
	}

	u, err := scanUpload(r.db.QueryRowContext(ctx, selectColumns+where+` LIMIT 1`, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Upload, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select uploads: %w", err)
	}
	defer rows.Close()

	var result []*models.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (*models.Upload, error) {
	var (
		u              models.Upload
		hash           []byte
		lastReport     sql.NullTime
		pendingRemoval sql.NullTime
	)
	if err := s.Scan(&u.ID, &hash, &u.Length, &u.StoragePath, &u.Name, &u.UploadStart, &u.Progress, &lastReport, &pendingRemoval); err != nil {
		return nil, err
	}
	u.Hash = models.Hash(hash)
	if lastReport.Valid {
		t := lastReport.Time
		u.LastProgressReport = &t
	}
	if pendingRemoval.Valid {
		t := pendingRemoval.Time
		u.PendingRemovalSince = &t
	}
	return &u, nil
}

func exactlyOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
