package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/similarity"
	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "vectors.db"

// Store is a SQLite database holding any number of collections.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragchat/data/vectors.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragchat", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", domain.ErrBackendConnectivity, err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL for concurrent readers; foreign keys on every pooled connection.
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", domain.ErrBackendConnectivity, err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// VectorStore returns a VectorStore scoped to the named collection.
// Closing it closes the Store.
func (s *Store) VectorStore(collection string) *VectorStore {
	return &VectorStore{store: s, name: collection}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return classify("creating schema_migrations table", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// classify wraps driver errors with the matching domain sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return fmt.Errorf("%w: %s: %w", domain.ErrSchemaMissing, op, err)
	case strings.Contains(msg, "unable to open database"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "disk I/O error"),
		strings.Contains(msg, "database is closed"),
		strings.Contains(msg, "readonly database"):
		return fmt.Errorf("%w: %s: %w", domain.ErrBackendConnectivity, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// ==================== Vector Store ====================

// VectorStore implements driven.VectorStore for one collection.
type VectorStore struct {
	store *Store
	name  string
}

var _ driven.VectorStore = (*VectorStore)(nil)

// Name returns the collection name.
func (v *VectorStore) Name() string {
	return v.name
}

// collectionID returns the collection uuid, or "" when it does not exist yet.
func (v *VectorStore) collectionID(ctx context.Context, q querier) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, "SELECT uuid FROM collections WHERE name = ?", v.name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify("looking up collection", err)
	}
	return id, nil
}

// ensureCollection creates the collection on first write.
func (v *VectorStore) ensureCollection(ctx context.Context, tx *sql.Tx) (string, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO collections (uuid, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.NewString(), v.name); err != nil {
		return "", classify("creating collection", err)
	}
	return v.collectionID(ctx, tx)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Count returns the number of chunks in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN collections c ON c.uuid = e.collection_id
		WHERE c.name = ?
	`, v.name).Scan(&n)
	if err != nil {
		return 0, classify("counting chunks", err)
	}
	return n, nil
}

// CountSources returns the number of distinct sources.
func (v *VectorStore) CountSources(ctx context.Context) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT json_extract(e.cmetadata, '$.source')) FROM embeddings e
		JOIN collections c ON c.uuid = e.collection_id
		WHERE c.name = ?
	`, v.name).Scan(&n)
	if err != nil {
		return 0, classify("counting sources", err)
	}
	return n, nil
}

// ListSources returns distinct sources in ascending order.
func (v *VectorStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT DISTINCT json_extract(e.cmetadata, '$.source') AS source FROM embeddings e
		JOIN collections c ON c.uuid = e.collection_id
		WHERE c.name = ? AND json_extract(e.cmetadata, '$.source') IS NOT NULL
		ORDER BY source
	`, v.name)
	if err != nil {
		return nil, classify("listing sources", err)
	}
	defer rows.Close()

	sources := []string{}
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SourceExists reports whether any chunk has the given source.
func (v *VectorStore) SourceExists(ctx context.Context, source string) (bool, error) {
	var exists bool
	err := v.store.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM embeddings e
			JOIN collections c ON c.uuid = e.collection_id
			WHERE c.name = ? AND json_extract(e.cmetadata, '$.source') = ?
		)
	`, v.name, source).Scan(&exists)
	if err != nil {
		return false, classify("checking source", err)
	}
	return exists, nil
}

// DeleteBySource removes every chunk of source in one transaction.
func (v *VectorStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.collectionID(ctx, tx)
	if err != nil || id == "" {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE collection_id = ? AND json_extract(cmetadata, '$.source') = ?
	`, id, source)
	if err != nil {
		return 0, classify("deleting chunks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("committing transaction", err)
	}
	return int(n), nil
}

// Clear removes the collection with its chunks and markers.
func (v *VectorStore) Clear(ctx context.Context) error {
	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.collectionID(ctx, tx)
	if err != nil || id == "" {
		return err
	}

	for _, stmt := range []string{
		"DELETE FROM embeddings WHERE collection_id = ?",
		"DELETE FROM ingestions WHERE collection_id = ?",
		"DELETE FROM collections WHERE uuid = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return classify("clearing collection", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// Add upserts chunks in one transaction.
func (v *VectorStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.ensureCollection(ctx, tx)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (collection_id, id, document, cmetadata, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			document = excluded.document,
			cmetadata = excluded.cmetadata,
			embedding = excluded.embedding
	`)
	if err != nil {
		return classify("preparing statement", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return domain.NewConfigError("chunk id", nil, "is required")
		}
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, id, chunk.ID, chunk.Content,
			string(metadataJSON), float32SliceToBytes(chunk.Embedding)); err != nil {
			return classify("saving chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// storedChunk is one row loaded for ranking.
type storedChunk struct {
	content   string
	metadata  map[string]any
	embedding []float32
}

// SimilaritySearch ranks every vector of the collection by cosine similarity.
func (v *VectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT e.document, e.cmetadata, e.embedding FROM embeddings e
		JOIN collections c ON c.uuid = e.collection_id
		WHERE c.name = ?
		ORDER BY e.rowid
	`, v.name)
	if err != nil {
		return nil, classify("loading vectors", err)
	}
	defer rows.Close()

	var candidates []storedChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c storedChunk
		var metadataJSON string
		var blob []byte
		if err := rows.Scan(&c.content, &metadataJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &c.metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
			}
		}
		c.embedding = bytesToFloat32Slice(blob)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("loading vectors", err)
	}

	top := similarity.TopK(vector, candidates, func(c storedChunk) []float32 { return c.embedding }, k)
	out := make([]domain.RetrievedChunk, len(top))
	for i, t := range top {
		out[i] = domain.RetrievedChunk{
			Content:  t.Item.content,
			Metadata: t.Item.metadata,
			Score:    t.Score,
		}
	}
	return out, nil
}

// SetIngestionState upserts the marker for a source.
func (v *VectorStore) SetIngestionState(ctx context.Context, state domain.IngestionState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.ensureCollection(ctx, tx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingestions (collection_id, source, run_id, expected_chunks, complete, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, source) DO UPDATE SET
			run_id = excluded.run_id,
			expected_chunks = excluded.expected_chunks,
			complete = excluded.complete,
			updated_at = excluded.updated_at
	`, id, state.Source, state.RunID, state.ExpectedChunks, state.Complete, state.UpdatedAt.UTC())
	if err != nil {
		return classify("saving ingestion state", err)
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// DeleteIngestionState removes the marker for a source.
func (v *VectorStore) DeleteIngestionState(ctx context.Context, source string) error {
	_, err := v.store.db.ExecContext(ctx, `
		DELETE FROM ingestions
		WHERE source = ? AND collection_id = (SELECT uuid FROM collections WHERE name = ?)
	`, source, v.name)
	if err != nil {
		return classify("deleting ingestion state", err)
	}
	return nil
}

// IngestionStates returns all markers ordered by source.
func (v *VectorStore) IngestionStates(ctx context.Context) ([]domain.IngestionState, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT i.source, i.run_id, i.expected_chunks, i.complete, i.updated_at FROM ingestions i
		JOIN collections c ON c.uuid = i.collection_id
		WHERE c.name = ?
		ORDER BY i.source
	`, v.name)
	if err != nil {
		return nil, classify("listing ingestion states", err)
	}
	defer rows.Close()

	var states []domain.IngestionState //nolint:prealloc // size unknown from query
	for rows.Next() {
		var st domain.IngestionState
		if err := rows.Scan(&st.Source, &st.RunID, &st.ExpectedChunks, &st.Complete, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning ingestion state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// Close closes the underlying database.
func (v *VectorStore) Close() error {
	return v.store.Close()
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
