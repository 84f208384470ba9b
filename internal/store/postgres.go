package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         UUID PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	tbl        TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_records_owner_tbl ON records (owner_id, tbl);
CREATE INDEX IF NOT EXISTS idx_records_data ON records USING GIN (data);
`

// PostgresStore backs the Store contract with PostgreSQL. Field filters use
// JSONB containment so the GIN index serves them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn, pings, and bootstraps the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: bootstrap postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, ownerID, table string, data map[string]any) (Record, error) {
	if data == nil {
		data = map[string]any{}
	}
	rec := Record{ID: uuid.New(), OwnerID: ownerID, Table: table, Data: data}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO records (id, owner_id, tbl, data)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		rec.ID, ownerID, table, data,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("store: create record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, ownerID, table string, id uuid.UUID, patch map[string]any) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx,
		`UPDATE records SET data = data || $1::jsonb, updated_at = now()
		 WHERE id = $2 AND owner_id = $3 AND tbl = $4
		 RETURNING id, owner_id, tbl, data, created_at, updated_at`,
		patch, id, ownerID, table,
	).Scan(&rec.ID, &rec.OwnerID, &rec.Table, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("store: record %s: %w", id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("store: update record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ownerID, table string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE id = $1 AND owner_id = $2 AND tbl = $3`,
		id, ownerID, table,
	)
	if err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, ownerID, table string, filter Filter) ([]Record, error) {
	limit := clampLimit(filter.Limit)
	fields := filter.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, tbl, data, created_at, updated_at
		 FROM records
		 WHERE owner_id = $1 AND tbl = $2 AND data @> $3::jsonb
		 ORDER BY created_at ASC LIMIT $4`,
		ownerID, table, fields, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Table, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
