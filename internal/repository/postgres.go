package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS batches (
	id         UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_records (
	batch_id         UUID    NOT NULL REFERENCES batches(id),
	seq              BIGINT  NOT NULL,
	source_file_name TEXT    NOT NULL,
	issuer_tax_id    TEXT    NOT NULL,
	recipient_tax_id TEXT    NOT NULL,
	document_id      TEXT    NOT NULL,
	issue_date       TEXT    NOT NULL,
	subtotal         TEXT    NOT NULL,
	total_amount     TEXT    NOT NULL,
	value_added_tax  TEXT    NOT NULL,
	lodging_tax      TEXT    NOT NULL,
	status           TEXT    NOT NULL,
	PRIMARY KEY (batch_id, seq)
);`

type postgresBatchRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresBatchRepository creates the schema if needed and takes ownership
// of pool.
func NewPostgresBatchRepository(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (BatchRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: create schema: %v", common.ErrDatabase, err)
	}
	return &postgresBatchRepo{pool: pool, logger: logger}, nil
}

func (r *postgresBatchRepo) Create(ctx context.Context) (entity.Batch, error) {
	b := entity.Batch{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	if _, err := r.pool.Exec(ctx, `INSERT INTO batches (id, created_at) VALUES ($1, $2)`, b.ID, b.CreatedAt); err != nil {
		r.logger.Error("failed to create batch", "error", err)
		return entity.Batch{}, fmt.Errorf("%w: create batch: %v", common.ErrDatabase, err)
	}
	return b, nil
}

func (r *postgresBatchRepo) Get(ctx context.Context, id uuid.UUID) (entity.Batch, error) {
	b := entity.Batch{ID: id}
	err := r.pool.QueryRow(ctx, `SELECT created_at FROM batches WHERE id = $1`, id).Scan(&b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Batch{}, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return entity.Batch{}, fmt.Errorf("%w: get batch: %v", common.ErrDatabase, err)
	}
	b.CreatedAt = b.CreatedAt.UTC()

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM batch_records WHERE batch_id = $1 ORDER BY seq`, id)
	if err != nil {
		return entity.Batch{}, fmt.Errorf("%w: list records: %v", common.ErrDatabase, err)
	}
	defer rows.Close()
	b.Records = []entity.ExtractedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return entity.Batch{}, fmt.Errorf("%w: scan record: %v", common.ErrDatabase, err)
		}
		b.Records = append(b.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return entity.Batch{}, fmt.Errorf("%w: list records: %v", common.ErrDatabase, err)
	}
	return b, nil
}

func (r *postgresBatchRepo) AppendRecords(ctx context.Context, id uuid.UUID, records []entity.ExtractedRecord) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Locking the batch row serializes concurrent appends to one batch.
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM batches WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: lock batch: %v", common.ErrDatabase, err)
		}

		var next int64
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM batch_records WHERE batch_id = $1`, id).Scan(&next); err != nil {
			return fmt.Errorf("%w: next seq: %v", common.ErrDatabase, err)
		}

		batch := &pgx.Batch{}
		for i, rec := range records {
			args := append([]any{id, next + int64(i) + 1}, recordArgs(rec)...)
			batch.Queue(`INSERT INTO batch_records (batch_id, seq, `+recordColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: insert records: %v", common.ErrDatabase, err)
		}
		r.logger.Debug("batch records appended", "batch_id", id.String(), "count", len(records))
		return nil
	})
}

func (r *postgresBatchRepo) ClearRecords(ctx context.Context, id uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM batches WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("%w: lock batch: %v", common.ErrDatabase, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM batch_records WHERE batch_id = $1`, id); err != nil {
			return fmt.Errorf("%w: clear records: %v", common.ErrDatabase, err)
		}
		return nil
	})
}

func (r *postgresBatchRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *postgresBatchRepo) Close() error {
	r.pool.Close()
	return nil
}
