package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/cfdi-tracker/internal/common"
	"github.com/joseph-ayodele/cfdi-tracker/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_records (
	batch_id         TEXT    NOT NULL REFERENCES batches(id),
	seq              INTEGER NOT NULL,
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

type sqliteBatchRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) a SQLite store. ":memory:" gives a private
// in-memory database.
func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (BatchRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dsn) == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", common.ErrDatabase, err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", common.ErrDatabase, err)
	}
	logger.Info("sqlite store ready")
	return &sqliteBatchRepo{db: db, logger: logger}, nil
}

func (r *sqliteBatchRepo) Create(ctx context.Context) (entity.Batch, error) {
	b := entity.Batch{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx, `INSERT INTO batches (id, created_at) VALUES (?, ?)`,
		b.ID.String(), b.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Error("failed to create batch", "error", err)
		return entity.Batch{}, fmt.Errorf("%w: create batch: %v", common.ErrDatabase, err)
	}
	return b, nil
}

func (r *sqliteBatchRepo) Get(ctx context.Context, id uuid.UUID) (entity.Batch, error) {
	var created string
	err := r.db.QueryRowContext(ctx, `SELECT created_at FROM batches WHERE id = ?`, id.String()).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Batch{}, fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return entity.Batch{}, fmt.Errorf("%w: get batch: %v", common.ErrDatabase, err)
	}
	b := entity.Batch{ID: id}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return entity.Batch{}, fmt.Errorf("%w: batch %s created_at: %v", common.ErrDatabase, id, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM batch_records WHERE batch_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return entity.Batch{}, fmt.Errorf("%w: list records: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()
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

func (r *sqliteBatchRepo) AppendRecords(ctx context.Context, id uuid.UUID, records []entity.ExtractedRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT MAX(seq) FROM batch_records WHERE batch_id = b.id), 0)
		   FROM batches b WHERE b.id = ?`, id.String()).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: next seq: %v", common.ErrDatabase, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO batch_records (batch_id, seq, `+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", common.ErrDatabase, err)
	}
	defer func() { _ = stmt.Close() }()

	for i, rec := range records {
		args := append([]any{id.String(), next + int64(i) + 1}, recordArgs(rec)...)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: insert record: %v", common.ErrDatabase, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrDatabase, err)
	}
	r.logger.Debug("batch records appended", "batch_id", id.String(), "count", len(records))
	return nil
}

func (r *sqliteBatchRepo) ClearRecords(ctx context.Context, id uuid.UUID) error {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM batches WHERE id = ?`, id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("batch %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: clear records: %v", common.ErrDatabase, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM batch_records WHERE batch_id = ?`, id.String()); err != nil {
		return fmt.Errorf("%w: clear records: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *sqliteBatchRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *sqliteBatchRepo) Close() error {
	return r.db.Close()
}
