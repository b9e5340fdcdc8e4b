package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"asset-preview/internal/metadata"
)

var _ metadata.Store = (*Database)(nil)

// GetMetadata loads the record for an asset, or metadata.ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, assetPath string) (rec *metadata.Record, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, metadata.ErrNotFound) {
			recordQuery("load_record", start, nil)
			return
		}
		recordQuery("load_record", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var raw string
	err = d.db.QueryRowContext(ctx, "SELECT record FROM asset_metadata WHERE asset_path = ?", assetPath).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", metadata.ErrNotFound, assetPath)
	}
	if err != nil {
		return nil, err
	}

	rec = &metadata.Record{}
	if err = json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, fmt.Errorf("decode record for %s: %w", assetPath, err)
	}
	return rec, nil
}

// PutMetadata inserts or replaces the record for rec.AssetPath.
func (d *Database) PutMetadata(ctx context.Context, rec *metadata.Record) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_record", start, err) }()

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record for %s: %w", rec.AssetPath, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO asset_metadata (asset_path, tier, fingerprint, file_type, size, mod_time, record, extracted_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(asset_path) DO UPDATE SET
		tier = excluded.tier,
		fingerprint = excluded.fingerprint,
		file_type = excluded.file_type,
		size = excluded.size,
		mod_time = excluded.mod_time,
		record = excluded.record,
		extracted_at = excluded.extracted_at,
		updated_at = strftime('%s', 'now')
	`,
		rec.AssetPath,
		string(rec.Tier),
		rec.Fingerprint,
		string(rec.Basic.Type),
		rec.Basic.Size,
		rec.Basic.ModTime.Unix(),
		string(raw),
		rec.ExtractedAt.Unix(),
	)
	return err
}

// DeleteMetadata removes the record for an asset. Deleting an unknown
// asset is not an error.
func (d *Database) DeleteMetadata(ctx context.Context, assetPath string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_record", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM asset_metadata WHERE asset_path = ?", assetPath)
	return err
}

// ListAssetPaths returns every asset that has a record, sorted.
func (d *Database) ListAssetPaths(ctx context.Context) (paths []string, err error) {
	start := time.Now()
	defer func() { recordQuery("list_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT asset_path FROM asset_metadata ORDER BY asset_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	return paths, err
}

// RecordCounts holds row counts used for metrics.
type RecordCounts struct {
	Basic   int
	Full    int
	Reports int
}

// Counts returns the number of records per tier and stored reports.
func (d *Database) Counts(ctx context.Context) (c RecordCounts, err error) {
	start := time.Now()
	defer func() { recordQuery("count_records", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM asset_metadata WHERE tier = ?),
		(SELECT COUNT(*) FROM asset_metadata WHERE tier = ?),
		(SELECT COUNT(*) FROM cleanup_reports)
	`, string(metadata.TierBasic), string(metadata.TierFull)).Scan(&c.Basic, &c.Full, &c.Reports)
	return c, err
}
