package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	tbl        TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_owner_tbl ON records (owner_id, tbl);
`

// SQLiteStore backs the Store contract with an embedded SQLite database.
// The default backend for the standalone binary.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path and bootstraps
// the schema. Use ":memory:" for an ephemeral database.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// The modernc driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent redemptions.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, ownerID, table string, data map[string]any) (Record, error) {
	if data == nil {
		data = map[string]any{}
	}
	now := time.Now().UTC()
	rec := Record{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Table:     table,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode record data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, owner_id, tbl, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), ownerID, table, string(raw),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("store: create record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Update(ctx context.Context, ownerID, table string, id uuid.UUID, patch map[string]any) (Record, error) {
	rec, err := s.get(ctx, ownerID, table, id)
	if err != nil {
		return Record{}, err
	}
	for k, v := range patch {
		rec.Data[k] = v
	}
	rec.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode record data: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND tbl = ?`,
		string(raw), rec.UpdatedAt.Format(time.RFC3339Nano),
		id.String(), ownerID, table,
	)
	if err != nil {
		return Record{}, fmt.Errorf("store: update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Record{}, fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ownerID, table string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE id = ? AND owner_id = ? AND tbl = ?`,
		id.String(), ownerID, table,
	)
	if err != nil {
		return fmt.Errorf("store: delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, ownerID, table string, filter Filter) ([]Record, error) {
	limit := clampLimit(filter.Limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, tbl, data, created_at, updated_at
		 FROM records WHERE owner_id = ? AND tbl = ? ORDER BY created_at ASC`,
		ownerID, table,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		// Field filtering happens here: SQLite stores data as opaque JSON
		// text, so equality checks run after decoding.
		if !matches(rec.Data, filter.Fields) {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) get(ctx context.Context, ownerID, table string, id uuid.UUID) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, tbl, data, created_at, updated_at
		 FROM records WHERE id = ? AND owner_id = ? AND tbl = ?`,
		id.String(), ownerID, table,
	)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("store: record %s: %w", id, ErrNotFound)
	}
	return rec, err
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row sqlScanner) (Record, error) {
	var (
		rec                  Record
		idStr, raw, cAt, uAt string
	)
	if err := row.Scan(&idStr, &rec.OwnerID, &rec.Table, &raw, &cAt, &uAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("store: scan record: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Record{}, fmt.Errorf("store: parse record id: %w", err)
	}
	rec.ID = id
	if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
		return Record{}, fmt.Errorf("store: decode record data: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, cAt); err != nil {
		return Record{}, fmt.Errorf("store: parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, uAt); err != nil {
		return Record{}, fmt.Errorf("store: parse updated_at: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
