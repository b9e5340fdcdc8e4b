package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// GetSetting retrieves a value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetSetting sets a key-value pair.
func (d *Database) SetSetting(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastIndexRun returns the timestamp of the last library index run.
// Returns zero time if never run.
func (d *Database) GetLastIndexRun(ctx context.Context) (time.Time, error) {
	value, err := d.GetSetting(ctx, "last_index_run")
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastIndexRun stores the timestamp of the last library index run.
func (d *Database) SetLastIndexRun(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetSetting(ctx, "last_index_run", "")
	}
	return d.SetSetting(ctx, "last_index_run", t.Format(time.RFC3339))
}
