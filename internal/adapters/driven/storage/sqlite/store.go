package sqlite

import (
	"context"
	"database/sql"
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

	"github.com/custodia-labs/rag-platform/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// dbFileName is the database file inside the data directory.
const dbFileName = "ingestion.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db             *sql.DB
	path           string
	now            func() time.Time
	artifactPolicy domain.ArtifactPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for leases and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithArtifactPolicy selects overwrite or keep-history artifact writes.
func WithArtifactPolicy(p domain.ArtifactPolicy) Option {
	return func(s *Store) {
		if p.IsValid() {
			s.artifactPolicy = p
		}
	}
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragd/data/ingestion.db.
func NewStore(dataDir string, opts ...Option) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragd", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)

	// Pragmas in the DSN apply to every pooled connection. Foreign keys
	// are needed on all of them for cascading deletes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:             db,
		path:           dbPath,
		now:            time.Now,
		artifactPolicy: domain.ArtifactOverwrite,
	}
	for _, opt := range opts {
		opt(s)
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

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ArtifactStore returns an ArtifactStore interface backed by this store.
func (s *Store) ArtifactStore() driven.ArtifactStore {
	return &artifactStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
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

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records its version atomically.
func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping checks the database answers a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// nowMillis returns the store clock as unix milliseconds.
func (s *Store) nowMillis() int64 {
	return s.now().UTC().UnixMilli()
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, tenant_id, s3_bucket, s3_key, s3_url, file_type, checksum, pending_checksum,
	status, last_error, created_at, updated_at`

// RegisterDocument inserts doc unless its (bucket, key) already exists.
func (s *documentStore) RegisterDocument(ctx context.Context, doc *domain.Document) (*domain.Document, bool, error) {
	if doc == nil || doc.Bucket == "" || doc.Key == "" {
		return nil, false, domain.ErrInvalidInput
	}

	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}
	url := doc.URL
	if url == "" {
		url = domain.ObjectURL(doc.Bucket, doc.Key)
	}
	now := s.store.nowMillis()

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, tenant_id, s3_bucket, s3_key, s3_url, file_type, checksum, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(s3_bucket, s3_key) DO NOTHING
	`, id, nullString(doc.TenantID), doc.Bucket, doc.Key, url, string(doc.FileType),
		nullString(doc.Checksum), string(domain.DocumentRegistered), now, now)
	if err != nil {
		return nil, false, fmt.Errorf("registering document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("registering document: %w", err)
	}

	stored, err := s.GetDocumentByLocation(ctx, doc.Bucket, doc.Key)
	if err != nil {
		return nil, false, err
	}
	return stored, n == 1, nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// GetDocumentByLocation retrieves a document by bucket and key.
func (s *documentStore) GetDocumentByLocation(ctx context.Context, bucket, key string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE s3_bucket = ? AND s3_key = ?", bucket, key)
	return scanDocument(row)
}

// ListDocuments returns documents matching filter, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE 1 = 1"
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.TenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document. Artifacts, chunks and jobs cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionDocument is a compare-and-set on the document status.
func (s *documentStore) TransitionDocument(
	ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, lastError string,
) (bool, error) {
	if len(from) == 0 || !to.IsValid() {
		return false, domain.ErrInvalidInput
	}

	placeholders := make([]string, len(from))
	args := []any{string(to), nullString(lastError), s.store.nowMillis(), id}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, string(st))
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return false, fmt.Errorf("transitioning document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transitioning document: %w", err)
	}
	return n == 1, nil
}

// UpdateChecksum records a new content checksum.
func (s *documentStore) UpdateChecksum(ctx context.Context, id, checksum string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET checksum = ?, updated_at = ? WHERE id = ?",
		nullString(checksum), s.store.nowMillis(), id)
	if err != nil {
		return fmt.Errorf("updating checksum: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPendingChecksum records a checksum to apply after the current run.
func (s *documentStore) SetPendingChecksum(ctx context.Context, id, checksum string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET pending_checksum = ?, updated_at = ? WHERE id = ?",
		nullString(checksum), s.store.nowMillis(), id)
	if err != nil {
		return fmt.Errorf("setting pending checksum: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyPendingChecksum moves pending_checksum into checksum and returns the
// document to REGISTERED when it is INDEXED or FAILED. Only one caller sees
// true for a given pending value.
func (s *documentStore) ApplyPendingChecksum(ctx context.Context, id string) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET checksum = pending_checksum, pending_checksum = NULL, status = ?, last_error = NULL, updated_at = ?
		WHERE id = ? AND pending_checksum IS NOT NULL AND status IN (?, ?)
	`, string(domain.DocumentRegistered), s.store.nowMillis(), id,
		string(domain.DocumentIndexed), string(domain.DocumentFailed))
	if err != nil {
		return false, fmt.Errorf("applying pending checksum: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("applying pending checksum: %w", err)
	}
	return n == 1, nil
}

// ListPendingReruns returns finished documents that still hold a pending
// checksum, oldest update first.
func (s *documentStore) ListPendingReruns(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT id FROM documents
		WHERE pending_checksum IS NOT NULL AND status IN (?, ?)
		ORDER BY updated_at, id`
	args := []any{string(domain.DocumentIndexed), string(domain.DocumentFailed)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending reruns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning pending rerun: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending reruns: %w", err)
	}
	return ids, nil
}

// Ping checks the database is reachable.
func (s *documentStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ==================== Artifact Store ====================

// artifactStore implements driven.ArtifactStore.
type artifactStore struct {
	store *Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

// WriteArtifact upserts by (document, type). Under keep-history each write
// adds the next version instead.
func (s *artifactStore) WriteArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error) {
	if artifact == nil || artifact.DocumentID == "" || artifact.Type == "" || artifact.URL == "" {
		return nil, domain.ErrInvalidInput
	}

	id := artifact.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := s.store.nowMillis()

	var err error
	if s.store.artifactPolicy == domain.ArtifactKeepHistory {
		_, err = s.store.db.ExecContext(ctx, `
			INSERT INTO document_artifacts (id, document_id, artifact_type, s3_url, version, created_at)
			SELECT ?, ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?
			FROM document_artifacts WHERE document_id = ? AND artifact_type = ?
		`, id, artifact.DocumentID, string(artifact.Type), artifact.URL, now,
			artifact.DocumentID, string(artifact.Type))
	} else {
		_, err = s.store.db.ExecContext(ctx, `
			INSERT INTO document_artifacts (id, document_id, artifact_type, s3_url, version, created_at)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT(document_id, artifact_type, version) DO UPDATE SET
				s3_url = excluded.s3_url,
				created_at = excluded.created_at
		`, id, artifact.DocumentID, string(artifact.Type), artifact.URL, now)
	}
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, artifact_type, s3_url, created_at
		FROM document_artifacts WHERE document_id = ? AND artifact_type = ?
		ORDER BY version DESC LIMIT 1
	`, artifact.DocumentID, string(artifact.Type))
	return scanArtifact(row)
}

// ListArtifacts returns the newest artifact of each type.
func (s *artifactStore) ListArtifacts(ctx context.Context, documentID string) ([]domain.Artifact, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT a.id, a.document_id, a.artifact_type, a.s3_url, a.created_at
		FROM document_artifacts a
		WHERE a.document_id = ? AND a.version = (
			SELECT MAX(b.version) FROM document_artifacts b
			WHERE b.document_id = a.document_id AND b.artifact_type = a.artifact_type
		)
		ORDER BY a.artifact_type
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact //nolint:prealloc // size unknown from query
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// ReplaceChunks swaps the document's chunk set inside one transaction.
func (s *chunkStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if documentID == "" {
		return domain.ErrInvalidInput
	}
	if err := domain.ValidateChunkSet(documentID, chunks); err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	now := s.store.nowMillis()
	for i := range chunks {
		c := &chunks[i]
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}

		metadataJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}

		if _, err := stmt.ExecContext(ctx, id, documentID, c.Index, c.Content, metadataJSON,
			float32SliceToBytes(c.Embedding), now); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	return nil
}

// GetChunks returns a document's chunks ordered by index.
func (s *chunkStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, metadata, embedding, created_at
		FROM chunks WHERE document_id = ? ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// CountChunks returns the number of chunks for a document.
func (s *chunkStore) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// SaveEmbeddings stores embeddings by chunk index in one transaction.
func (s *chunkStore) SaveEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE chunks SET embedding = ? WHERE document_id = ? AND chunk_index = ?")
	if err != nil {
		return fmt.Errorf("preparing embedding update: %w", err)
	}
	defer stmt.Close()

	for i, emb := range embeddings {
		res, err := stmt.ExecContext(ctx, float32SliceToBytes(emb), documentID, i)
		if err != nil {
			return fmt.Errorf("saving embedding %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: chunk %d of document %s no longer exists", domain.ErrConflict, i, documentID)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&count); err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	if count != len(embeddings) {
		return fmt.Errorf("%w: document %s has %d chunks, got %d embeddings",
			domain.ErrConflict, documentID, count, len(embeddings))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing embeddings: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

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

// scanDocument scans one document row.
func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var tenantID, checksum, pendingChecksum, lastError sql.NullString
	var fileType, status string
	var createdAt, updatedAt int64

	if err := row.Scan(&doc.ID, &tenantID, &doc.Bucket, &doc.Key, &doc.URL, &fileType,
		&checksum, &pendingChecksum, &status, &lastError, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.TenantID = tenantID.String
	doc.Checksum = checksum.String
	doc.PendingChecksum = pendingChecksum.String
	doc.LastError = lastError.String
	doc.FileType = domain.FileType(fileType)
	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt = fromMillis(createdAt)
	doc.UpdatedAt = fromMillis(updatedAt)
	return &doc, nil
}

// scanArtifact scans one artifact row.
func scanArtifact(row scanner) (*domain.Artifact, error) {
	var a domain.Artifact
	var artifactType string
	var createdAt int64

	if err := row.Scan(&a.ID, &a.DocumentID, &artifactType, &a.URL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning artifact: %w", err)
	}

	a.Type = domain.ArtifactType(artifactType)
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

// scanChunk scans one chunk row.
func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON string
	var createdAt int64

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&metadataJSON, &embeddingBlob, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	chunk.CreatedAt = fromMillis(createdAt)

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
	}

	return &chunk, nil
}

// marshalMetadata encodes chunk metadata, storing nil as an empty object.
func marshalMetadata(md domain.Metadata) (string, error) {
	if md == nil {
		return "{}", nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("marshalling chunk metadata: %w", err)
	}
	return string(data), nil
}

// nullString returns a sql.NullString, null when s is empty.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// fromMillis converts stored unix milliseconds to UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// fromNullMillis converts a nullable column, zero time when null.
func fromNullMillis(ms sql.NullInt64) time.Time {
	if !ms.Valid || ms.Int64 == 0 {
		return time.Time{}
	}
	return fromMillis(ms.Int64)
}

// isForeignKeyViolation reports whether err is a SQLite foreign key failure.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
