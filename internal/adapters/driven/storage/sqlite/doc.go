// Package sqlite provides a SQLite-based implementation of the document and
// session stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - DocumentStore: Document, raw content and chunk persistence
//   - SessionRepository: Session and turn persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Lifecycle Transitions
//
// Status changes are a single conditional UPDATE guarded by the allowed source
// statuses, so two callers racing to begin processing cannot both succeed.
//
// # Data Location
//
// By default, the database is stored at ~/.docqa/data/docqa.db
package sqlite
