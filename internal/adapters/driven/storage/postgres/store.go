// Package postgres implements the vector store on PostgreSQL with the
// pgvector extension. The table layout is the one used by LangChain's
// PGVector, so collections written by other tools can be queried in place.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Config configures the PostgreSQL vector store.
type Config struct {
	// DatabaseURL is the connection string (required).
	DatabaseURL string

	// Collection is the collection name (required).
	Collection string

	// MaxOpenConns caps the connection pool (default: 4).
	MaxOpenConns int
}

// DefaultMaxOpenConns is the pool size used when Config.MaxOpenConns is unset.
const DefaultMaxOpenConns = 4

// schemaStatements create the tables on first write.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS langchain_pg_collection (
		uuid UUID PRIMARY KEY,
		name VARCHAR NOT NULL UNIQUE,
		cmetadata JSON
	)`,
	`CREATE TABLE IF NOT EXISTS langchain_pg_embedding (
		id VARCHAR NOT NULL,
		collection_id UUID NOT NULL REFERENCES langchain_pg_collection(uuid) ON DELETE CASCADE,
		embedding VECTOR,
		document VARCHAR,
		cmetadata JSONB,
		PRIMARY KEY (collection_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_cmetadata_gin ON langchain_pg_embedding USING gin (cmetadata jsonb_path_ops)`,
	`CREATE TABLE IF NOT EXISTS ragchat_ingestions (
		collection_id UUID NOT NULL REFERENCES langchain_pg_collection(uuid) ON DELETE CASCADE,
		source TEXT NOT NULL,
		run_id TEXT NOT NULL,
		expected_chunks INTEGER NOT NULL DEFAULT 0,
		complete BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection_id, source)
	)`,
}

// VectorStore implements driven.VectorStore for one collection.
// The connection pool is opened lazily by database/sql, so constructing a
// store never touches the network.
type VectorStore struct {
	db   *sql.DB
	name string

	schemaMu    sync.Mutex
	schemaReady bool
}

var _ driven.VectorStore = (*VectorStore)(nil)

// New creates a store for cfg.Collection.
func New(cfg Config) (*VectorStore, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, domain.NewConfigError("DATABASE_URL", nil, "is required for the postgres store")
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, domain.NewConfigError("PG_VECTOR_COLLECTION_NAME", nil, "must not be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultMaxOpenConns
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, domain.NewConfigError("DATABASE_URL", Redact(cfg.DatabaseURL), err.Error())
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &VectorStore{db: db, name: cfg.Collection}, nil
}

// Name returns the collection name.
func (v *VectorStore) Name() string {
	return v.name
}

// Close releases the connection pool.
func (v *VectorStore) Close() error {
	return v.db.Close()
}

// ensureSchema creates the extension and tables once per process.
func (v *VectorStore) ensureSchema(ctx context.Context) error {
	v.schemaMu.Lock()
	defer v.schemaMu.Unlock()
	if v.schemaReady {
		return nil
	}
	for _, stmt := range schemaStatements {
		if _, err := v.db.ExecContext(ctx, stmt); err != nil {
			return classify("creating schema", err)
		}
	}
	v.schemaReady = true
	return nil
}

// ensureCollection returns the collection uuid, creating the row if needed.
// The NOT EXISTS guard also works on collection tables without a unique name.
func (v *VectorStore) ensureCollection(ctx context.Context, tx *sql.Tx) (string, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO langchain_pg_collection (uuid, name, cmetadata)
		SELECT $1, $2, '{}'
		WHERE NOT EXISTS (SELECT 1 FROM langchain_pg_collection WHERE name = $2)
	`, uuid.NewString(), v.name); err != nil {
		return "", classify("creating collection", err)
	}
	return v.collectionID(ctx, tx)
}

// collectionID returns the collection uuid, or "" when it does not exist.
func (v *VectorStore) collectionID(ctx context.Context, tx *sql.Tx) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx,
		"SELECT uuid FROM langchain_pg_collection WHERE name = $1", v.name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify("looking up collection", err)
	}
	return id, nil
}

// Count returns the number of chunks in the collection.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM langchain_pg_embedding e
		JOIN langchain_pg_collection c ON e.collection_id = c.uuid
		WHERE c.name = $1
	`, v.name).Scan(&n)
	if err != nil {
		return 0, classify("counting chunks", err)
	}
	return n, nil
}

// CountSources returns the number of distinct sources.
func (v *VectorStore) CountSources(ctx context.Context) (int, error) {
	var n int
	err := v.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.cmetadata->>'source')
		FROM langchain_pg_embedding e
		JOIN langchain_pg_collection c ON e.collection_id = c.uuid
		WHERE c.name = $1
	`, v.name).Scan(&n)
	if err != nil {
		return 0, classify("counting sources", err)
	}
	return n, nil
}

// ListSources returns distinct sources in ascending order.
func (v *VectorStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT DISTINCT e.cmetadata->>'source' AS source
		FROM langchain_pg_embedding e
		JOIN langchain_pg_collection c ON e.collection_id = c.uuid
		WHERE c.name = $1 AND e.cmetadata->>'source' IS NOT NULL
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
	if err := rows.Err(); err != nil {
		return nil, classify("listing sources", err)
	}
	return sources, nil
}

// SourceExists reports whether any chunk has the given source.
func (v *VectorStore) SourceExists(ctx context.Context, source string) (bool, error) {
	var exists bool
	err := v.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM langchain_pg_embedding e
			JOIN langchain_pg_collection c ON e.collection_id = c.uuid
			WHERE c.name = $1 AND e.cmetadata->>'source' = $2
		)
	`, v.name, source).Scan(&exists)
	if err != nil {
		return false, classify("checking source", err)
	}
	return exists, nil
}

// DeleteBySource removes every chunk of source in one transaction.
// A database that was never written to has nothing to delete.
func (v *VectorStore) DeleteBySource(ctx context.Context, source string) (int, error) {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		DELETE FROM langchain_pg_embedding
		WHERE cmetadata->>'source' = $1
		AND collection_id = (SELECT uuid FROM langchain_pg_collection WHERE name = $2)
	`, source, v.name)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
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

// Clear removes every chunk and marker of the collection.
func (v *VectorStore) Clear(ctx context.Context) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.collectionID(ctx, tx)
	if isUndefinedTable(err) {
		return nil
	}
	if err != nil || id == "" {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM langchain_pg_embedding WHERE collection_id = $1", id); err != nil {
		return classify("clearing collection", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM ragchat_ingestions WHERE collection_id = $1", id); err != nil && !isUndefinedTable(err) {
		return classify("clearing ingestion states", err)
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// Add upserts chunks in one transaction. Existing rows with the same IDs
// are replaced, which keeps re-ingestion idempotent on tables created with
// either a global or a per-collection primary key.
func (v *VectorStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := v.ensureSchema(ctx); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return domain.NewConfigError("chunk id", nil, "is required")
		}
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunk.ID)
		}
		ids[i] = chunk.ID
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	collectionID, err := v.ensureCollection(ctx, tx)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM langchain_pg_embedding WHERE collection_id = $1 AND id = ANY($2)",
		collectionID, pq.Array(ids)); err != nil {
		return classify("replacing chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO langchain_pg_embedding (id, collection_id, embedding, document, cmetadata)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return classify("preparing statement", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, collectionID,
			pgvector.NewVector(chunk.Embedding), chunk.Content, string(metadataJSON)); err != nil {
			return classify("saving chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

// SimilaritySearch returns the k nearest chunks by cosine distance.
// Score is reported as cosine similarity (1 - distance).
func (v *VectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		return []domain.RetrievedChunk{}, nil
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT e.document, e.cmetadata, 1 - (e.embedding <=> $2::vector) AS score
		FROM langchain_pg_embedding e
		JOIN langchain_pg_collection c ON e.collection_id = c.uuid
		WHERE c.name = $1
		ORDER BY e.embedding <=> $2::vector, e.id
		LIMIT $3
	`, v.name, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, classify("searching vectors", err)
	}
	defer rows.Close()

	results := make([]domain.RetrievedChunk, 0, k)
	for rows.Next() {
		var (
			document     sql.NullString
			metadataJSON []byte
			score        float64
		)
		if err := rows.Scan(&document, &metadataJSON, &score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		metadata, err := decodeMetadata(metadataJSON)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.RetrievedChunk{
			Content:  document.String,
			Metadata: metadata,
			Score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("searching vectors", err)
	}
	return results, nil
}

// SetIngestionState upserts the marker for a source.
func (v *VectorStore) SetIngestionState(ctx context.Context, state domain.IngestionState) error {
	if err := v.ensureSchema(ctx); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	id, err := v.ensureCollection(ctx, tx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ragchat_ingestions (collection_id, source, run_id, expected_chunks, complete, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (collection_id, source) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			expected_chunks = EXCLUDED.expected_chunks,
			complete = EXCLUDED.complete,
			updated_at = EXCLUDED.updated_at
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
	_, err := v.db.ExecContext(ctx, `
		DELETE FROM ragchat_ingestions
		WHERE source = $1
		AND collection_id = (SELECT uuid FROM langchain_pg_collection WHERE name = $2)
	`, source, v.name)
	if err != nil && !isUndefinedTable(err) {
		return classify("deleting ingestion state", err)
	}
	return nil
}

// IngestionStates returns all markers ordered by source.
// A database without the marker table has no markers.
func (v *VectorStore) IngestionStates(ctx context.Context) ([]domain.IngestionState, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT i.source, i.run_id, i.expected_chunks, i.complete, i.updated_at
		FROM ragchat_ingestions i
		JOIN langchain_pg_collection c ON c.uuid = i.collection_id
		WHERE c.name = $1
		ORDER BY i.source
	`, v.name)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
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

// ==================== Helper Functions ====================

// decodeMetadata parses a JSONB metadata column. NULL yields an empty map.
func decodeMetadata(raw []byte) (map[string]any, error) {
	metadata := map[string]any{}
	if len(raw) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}
	return metadata, nil
}

// PostgreSQL error codes and classes used for classification.
const (
	codeUndefinedTable     = pq.ErrorCode("42P01")
	classConnection        = "08"
	classInvalidAuth       = "28"
	classInsufficientRes   = "53"
	classOperatorIntervene = "57"
)

// isUndefinedTable reports whether err is a missing-table failure.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUndefinedTable
}

// classify wraps driver errors with the matching domain sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == codeUndefinedTable {
			return fmt.Errorf("%w: %s: %w", domain.ErrSchemaMissing, op, err)
		}
		switch pqErr.Code.Class() {
		case classConnection, classInvalidAuth, classInsufficientRes, classOperatorIntervene:
			return fmt.Errorf("%w: %s: %w", domain.ErrBackendConnectivity, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %s: %w", domain.ErrBackendConnectivity, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Redact hides the password of a postgres:// URL. Other DSN forms are
// returned unchanged.
func Redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		creds = creds[:colon] + ":****"
	}
	return dsn[:scheme+3] + creds + dsn[at:]
}
