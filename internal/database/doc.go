// Package database provides SQLite persistence for the preview engine.
//
// It stores:
//   - Metadata records for library assets (basic and full tiers)
//   - Cleanup reports from import sessions
//   - Small key/value settings such as the last library index run
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
