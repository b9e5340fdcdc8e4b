package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"asset-preview/internal/cleanup"
)

// DefaultReportHistory is how many reports are kept per asset.
const DefaultReportHistory = 10

// SaveReport appends a cleanup report for an asset and trims older ones.
func (d *Database) SaveReport(ctx context.Context, assetPath string, r *cleanup.Report) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_report", start, err) }()

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report for %s: %w", assetPath, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	if _, err = tx.ExecContext(ctx, `
	INSERT INTO cleanup_reports (asset_path, namespace, state, escalated, report, finished_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, assetPath, r.Namespace, string(r.State), r.Escalated, string(raw), finished.Unix()); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
	DELETE FROM cleanup_reports
	WHERE asset_path = ? AND id NOT IN (
		SELECT id FROM cleanup_reports WHERE asset_path = ? ORDER BY id DESC LIMIT ?
	)
	`, assetPath, assetPath, DefaultReportHistory); err != nil {
		return err
	}

	return tx.Commit()
}

// LatestReport returns the newest report for an asset, or nil if none.
func (d *Database) LatestReport(ctx context.Context, assetPath string) (*cleanup.Report, error) {
	reports, err := d.ListReports(ctx, assetPath, 1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return reports[0], nil
}

// ListReports returns up to limit reports for an asset, newest first.
func (d *Database) ListReports(ctx context.Context, assetPath string, limit int) (reports []*cleanup.Report, err error) {
	start := time.Now()
	defer func() { recordQuery("load_report", start, err) }()

	if limit <= 0 {
		limit = DefaultReportHistory
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
	SELECT report FROM cleanup_reports WHERE asset_path = ? ORDER BY id DESC LIMIT ?
	`, assetPath, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err = rows.Scan(&raw); err != nil {
			return nil, err
		}
		r := &cleanup.Report{}
		if err = json.Unmarshal([]byte(raw), r); err != nil {
			return nil, fmt.Errorf("decode report for %s: %w", assetPath, err)
		}
		reports = append(reports, r)
	}
	if err = rows.Err(); errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	return reports, err
}

// DeleteReports removes all reports for an asset.
func (d *Database) DeleteReports(ctx context.Context, assetPath string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_record", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM cleanup_reports WHERE asset_path = ?", assetPath)
	return err
}
