package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS delivery_audit (
	id UUID PRIMARY KEY,
	at TIMESTAMPTZ NOT NULL,
	stream TEXT NOT NULL,
	entries INTEGER NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_delivery_audit_at ON delivery_audit (at DESC);
`

// PostgresRepository stores delivery records in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to the database and ensures the audit table
// exists.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// Record inserts one delivery record, assigning an id when absent.
func (r *PostgresRepository) Record(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO delivery_audit (id, at, stream, entries, success, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.At, rec.Stream, rec.Entries, rec.Success, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

// Recent returns the latest delivery records, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, at, stream, entries, success, error
		 FROM delivery_audit ORDER BY at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query delivery records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Stream, &rec.Entries, &rec.Success, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan delivery record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
