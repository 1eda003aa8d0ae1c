// Package files persists finalized files.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/ids"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
	"github.com/jackc/pgx/v5/pgtype"
)

const selectColumns = `SELECT id, name, length, gcs_path, tags, upload_timestamp, relevance_timestamp, type, hash FROM files`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.File) error {
	id, err := ids.Allocate(ctx, r.Exists)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (id, name, length, gcs_path, tags, upload_timestamp, relevance_timestamp, type, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		id, f.Name, f.Length, f.StoragePath, f.Tags, f.UploadTimestamp, nullTime(f), nullType(f.Type), []byte(f.Hash))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	f.ID = id
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.File, error) {
	return r.one(ctx, selectColumns+` WHERE id=$1`, id)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, hash models.Hash) (*models.File, error) {
	return r.one(ctx, selectColumns+` WHERE hash=$1`, []byte(hash))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY upload_timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) SetType(ctx context.Context, id int64, t models.FileType) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET type=$1 WHERE id=$2`, string(t), id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, arg any) (*models.File, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	var (
		f         models.File
		relevance sql.NullTime
		fileType  sql.NullString
		hash      []byte
	)
	// pgtype.Map is not safe for concurrent use, so each scan gets its own;
	// it decodes the text[] column that database/sql cannot scan alone.
	m := pgtype.NewMap()
	err := s.Scan(&f.ID, &f.Name, &f.Length, &f.StoragePath, m.SQLScanner(&f.Tags),
		&f.UploadTimestamp, &relevance, &fileType, &hash)
	if err != nil {
		return nil, err
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	if relevance.Valid {
		t := relevance.Time
		f.RelevanceTimestamp = &t
	}
	f.Type = models.FileType(fileType.String)
	f.Hash = models.Hash(hash)
	return &f, nil
}

func nullTime(f *models.File) sql.NullTime {
	if f.RelevanceTimestamp == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *f.RelevanceTimestamp, Valid: true}
}

func nullType(t models.FileType) sql.NullString {
	return sql.NullString{String: string(t), Valid: t != ""}
}
