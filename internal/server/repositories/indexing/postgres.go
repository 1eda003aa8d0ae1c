package indexing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/dbx"
	"github.com/dmitrijs2005/foxhound/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, fileID int64) (*models.FileIndexingState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, state, error_context, last_activity FROM files_indexing_state WHERE id=$1`, fileID)
	st, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return st, nil
}

func (r *PostgresRepository) List(ctx context.Context) (map[int64]*models.FileIndexingState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, state, error_context, last_activity FROM files_indexing_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to select indexing states: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*models.FileIndexingState)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		result[st.FileID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts the state row. The error context is cleared for every state
// other than error, matching the table's check constraint.
func (r *PostgresRepository) Save(ctx context.Context, st *models.FileIndexingState) error {
	if st.State != models.IndexingError {
		st.ErrorContext = nil
	} else if st.ErrorContext == nil {
		return fmt.Errorf("%w: error state without context", common.ErrorInvalidArgument)
	}
	raw, err := st.ErrorContextJSON()
	if err != nil {
		return fmt.Errorf("encode error context: %w", err)
	}
	var errCtx any
	if raw != nil {
		errCtx = raw
	}

	query := `
		INSERT INTO files_indexing_state (id, state, error_context, last_activity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			error_context = EXCLUDED.error_context,
			last_activity = EXCLUDED.last_activity
	`
	_, err = r.db.ExecContext(ctx, query, st.FileID, string(st.State), errCtx, st.LastActivity.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SaveFulltext(ctx context.Context, fileID int64, content string) error {
	query := `
		INSERT INTO files_fulltext (id, content, locators) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, locators = EXCLUDED.locators
	`
	if _, err := r.db.ExecContext(ctx, query, fileID, content, []byte{}); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(s scanner) (*models.FileIndexingState, error) {
	var (
		st     models.FileIndexingState
		state  string
		errCtx []byte
	)
	if err := s.Scan(&st.FileID, &state, &errCtx, &st.LastActivity); err != nil {
		return nil, err
	}
	st.State = models.IndexingState(state)
	if len(errCtx) > 0 {
		st.ErrorContext = &models.IndexingErrorContext{}
		if err := json.Unmarshal(errCtx, st.ErrorContext); err != nil {
			return nil, fmt.Errorf("decode error context: %w", err)
		}
	}
	return &st, nil
}
