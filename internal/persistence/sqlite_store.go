package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteBackend persists user records in a SQLite database, one row per
// user with the whole document as a JSON blob.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend initializes the required schema in the given database
// and returns a new SQLiteBackend.
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	b := &SQLiteBackend{db: db}
	if err := b.initSchema(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_records (
			user_id TEXT PRIMARY KEY,
			document BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	)
	return err
}

func (b *SQLiteBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT document FROM user_records WHERE user_id = ?`,
		userID,
	)

	var document []byte
	if err := row.Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("load user record: %w", err)
	}

	var record map[string]any
	if err := json.Unmarshal(document, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	if record == nil {
		record = map[string]any{}
	}
	return record, nil
}

func (b *SQLiteBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO user_records (user_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at`,
		userID,
		document,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save user record: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM user_records WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("remove user record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (b *SQLiteBackend) HealthCheck(ctx context.Context) bool {
	return b.db.PingContext(ctx) == nil
}

func (b *SQLiteBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT user_id FROM user_records ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list user records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
