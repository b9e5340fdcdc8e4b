package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
)

// defaultTimeout bounds every single-statement operation.
const defaultTimeout = 5 * time.Second

// Database is the SQLite catalog of metadata records, cleanup reports and
// settings.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// connectionOptions are the go-sqlite3 DSN parameters. WAL with a busy
// timeout lets the indexer write while handlers read.
var connectionOptions = map[string]string{
	"_journal_mode": "WAL",
	"_synchronous":  "NORMAL",
	"_cache_size":   "10000",
	"_temp_store":   "MEMORY",
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
}

func dataSourceName(path string) string {
	q := url.Values{}
	for k, v := range connectionOptions {
		q.Set(k, v)
	}
	return path + "?" + q.Encode()
}

// New opens the database file at dbPath and migrates its schema. The parent
// directory must exist; startup.LoadConfig prepares it.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)
	if err := checkDatabaseFiles(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	sqlDB, err := sql.Open("sqlite3", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	d := &Database{db: sqlDB, dbPath: dbPath}
	if err := d.open(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			logging.Error("failed to close database: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Database ready at %s (schema v%d)", dbPath, len(migrations))
	return d, nil
}

func (d *Database) open(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := d.migrate(ctx); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}

// migration upgrades the schema by one version. Versions are recorded in
// PRAGMA user_version and applied in order, each in its own transaction.
type migration struct {
	name string
	ddl  string
}

var migrations = []migration{
	{
		name: "asset metadata",
		ddl: `
		CREATE TABLE IF NOT EXISTS asset_metadata (
			asset_path TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			file_type TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			mod_time INTEGER NOT NULL DEFAULT 0,
			record TEXT NOT NULL,
			extracted_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
		CREATE INDEX IF NOT EXISTS idx_asset_metadata_tier ON asset_metadata(tier);`,
	},
	{
		name: "cleanup reports",
		ddl: `
		CREATE TABLE IF NOT EXISTS cleanup_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_path TEXT NOT NULL,
			namespace TEXT NOT NULL,
			state TEXT NOT NULL,
			escalated INTEGER NOT NULL DEFAULT 0,
			report TEXT NOT NULL,
			finished_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cleanup_reports_path ON cleanup_reports(asset_path, id);`,
	},
	{
		name: "settings",
		ddl: `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	},
}

func (d *Database) migrate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("migrate_schema", start, err) }()

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", current, len(migrations))
	}
	for i := current; i < len(migrations); i++ {
		if err := d.apply(ctx, i+1, migrations[i]); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, migrations[i].name, err)
		}
		logging.Debug("Applied schema migration %d: %s", i+1, migrations[i].name)
	}
	return nil
}

func (d *Database) apply(ctx context.Context, version int, m migration) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.ddl); err != nil {
		return err
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the applied schema version.
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Vacuum rebuilds the database file, holding off writers while it runs.
func (d *Database) Vacuum() (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateDBMetrics publishes connection pool stats.
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

// checkDatabaseFiles verifies the directory is writable and makes
// read-only WAL and SHM files writable again. Those are left behind when
// the service ran under another user, and SQLite then fails every write.
func checkDatabaseFiles(dbPath string) error {
	dir := filepath.Dir(dbPath)
	probe, err := os.CreateTemp(dir, ".perm-test-*")
	if err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	if info, err := os.Stat(dbPath); err == nil && info.Mode().Perm()&0o200 == 0 {
		logging.Warn("Database file %s is read-only (mode %v)", dbPath, info.Mode())
	}

	var errs []error
	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil || info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode %v), fixing", path, info.Mode())
		if err := os.Chmod(path, 0o600); err != nil {
			errs = append(errs, fmt.Errorf("chmod %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
