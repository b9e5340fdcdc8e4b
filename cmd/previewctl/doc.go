// Command previewctl runs the preview engine in-process against the same
// library, cache and database as the server.
//
// Usage:
//
//	previewctl [--config file] [--json] [--verbose] <command>
//
// Commands:
//
//	preview <asset>...  Capture previews at --size, reusing current cache
//	                    entries unless --force is given. Failed captures
//	                    report the generic icon instead.
//	metadata <asset>    Extract metadata at --tier basic or full and store it.
//	workspace <asset>   Full extraction plus a forced capture in one session.
//	report <asset>      Stored cleanup reports, newest first (--limit).
//	index               Walk the library once.
//	status              Catalog counts and the last index run.
//
// Environment:
//
// The server's variables apply (LIBRARY_DIR, CACHE_DIR, DATABASE_DIR,
// MASTER_SIZE, PREVIEW_SIZES, HOST_EXECUTOR, PREVIEW_CONFIG). Logging is
// limited to warnings unless LOG_LEVEL or --verbose say otherwise.
//
// Tables use rounded borders on a terminal and ASCII when piped.
package main
