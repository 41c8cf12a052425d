// Package sqlite provides the default local vector store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database file holds any number of
// named collections; each VectorStore returned by Store.VectorStore is scoped to
// one of them.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
//   - collections: uuid, unique name, metadata
//   - embeddings: chunk id, text, JSON metadata and a little-endian float32 vector
//   - ingestions: per-source progress markers
//
// Similarity is computed in process with cosine distance over the collection's
// vectors, which is adequate for the document counts a single user indexes.
//
// # Data Location
//
// By default, the database is stored at ~/.ragchat/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
