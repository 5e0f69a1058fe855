// ABOUTME: Package documentation for the store package
// ABOUTME: Describes the persistence layer and its SQLite implementation

// Package store provides persistence for chatd: users and their daily
// quota state, conversations with append-only ordered messages, engine
// configurations with the single-active activation protocol, report
// tickets, and browser sessions.
//
// The Store interface defines the contract; SQLiteStore is the only
// implementation, using modernc.org/sqlite with WAL mode and
// schema-on-open. Entities that don't exist return ErrNotFound;
// uniqueness violations return typed sentinel errors so callers can
// map them to HTTP status codes without string matching.
package store
