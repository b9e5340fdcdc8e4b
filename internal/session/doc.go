// Package session manages isolated imports into the host scene.
//
// A Session is one asset imported under its own namespace. The Manager
// guarantees that at most one Session per asset is open at a time: a second
// Open for the same asset blocks until the first Session is closed. Opening
// captures the selection, view and current namespace before importing, and
// closing always runs the full cleanup engine and restores that state, even
// when the work done inside the session failed.
//
// All host access goes through the Manager's hostexec.Executor.
package session
