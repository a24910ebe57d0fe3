// Package sqlite provides the SQLite-backed storage driver. This is the
// default durable backend: a single-file database suitable for a local-first
// agent replica.
//
// The full CRDT document is stored as a JSON blob; scalar columns and a tag
// join table mirror the queryable fields so lookups never parse every row.
// Put runs inside an immediate transaction so the read-merge-write cycle is
// atomic against concurrent local writers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id           TEXT PRIMARY KEY,
	memory_type  TEXT NOT NULL,
	importance   REAL NOT NULL,
	content_hash TEXT NOT NULL,
	sync_status  TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	doc          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);
CREATE INDEX IF NOT EXISTS idx_memories_sync_status ON memories(sync_status);
CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at);
CREATE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(content_hash);

CREATE TABLE IF NOT EXISTS memory_tags (
	memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
	tag       TEXT NOT NULL,
	PRIMARY KEY (memory_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_memory_tags_tag ON memory_tags(tag);

CREATE TABLE IF NOT EXISTS embeddings (
	text_hash  TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	vector     BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	model      TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// SQLiteDriver implements storage.Driver using SQLite via mattn/go-sqlite3.
type SQLiteDriver struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteDriver creates a new SQLite-backed store. The dbPath can be a file
// path or ":memory:" for an in-memory database.
func NewSQLiteDriver(dbPath string, logger *zap.Logger) (*SQLiteDriver, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// _txlock=immediate makes BeginTx take the write lock up front, so the
	// read-merge-write in Put cannot interleave with another writer.
	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite storage driver initialized",
		zap.String("db_path", dbPath),
	)

	return &SQLiteDriver{
		db:     db,
		logger: logger,
	}, nil
}

// Put merges the incoming document with any stored state under the same id
// and persists the result, refreshing the tag join table.
func (d *SQLiteDriver) Put(ctx context.Context, doc *memory.Document) (*memory.Document, error) {
	if doc == nil {
		return nil, storage.StorageError{Op: "put", Err: fmt.Errorf("cannot store nil document")}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storage.StorageError{Op: "put", Err: err}
	}
	defer tx.Rollback()

	stored := doc
	var blob string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM memories WHERE id = ?`, doc.ID,
	).Scan(&blob)

	switch err {
	case nil:
		existing, derr := decodeDocument(blob)
		if derr != nil {
			return nil, storage.StorageError{Op: "put", Err: derr}
		}
		stored = existing.Merge(doc)
	case sql.ErrNoRows:
		stored = doc.Clone()
	default:
		return nil, storage.StorageError{Op: "put", Err: err}
	}

	encoded, err := json.Marshal(stored)
	if err != nil {
		return nil, storage.StorageError{Op: "put", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memories (id, memory_type, importance, content_hash, sync_status, created_at, updated_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			importance   = excluded.importance,
			content_hash = excluded.content_hash,
			sync_status  = excluded.sync_status,
			updated_at   = excluded.updated_at,
			doc          = excluded.doc
	`,
		stored.ID, string(stored.Type), stored.Importance.Value, stored.ContentHash,
		string(stored.SyncStatus), stored.CreatedAt, stored.UpdatedAt, string(encoded),
	); err != nil {
		return nil, storage.StorageError{Op: "put", Err: err}
	}

	// The merged tag set can both grow and shrink relative to the stored
	// row, so rebuild the join table entries for this document.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM memory_tags WHERE memory_id = ?`, stored.ID,
	); err != nil {
		return nil, storage.StorageError{Op: "put", Err: err}
	}
	for _, tag := range stored.Tags.Elements() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_tags (memory_id, tag) VALUES (?, ?)`,
			stored.ID, tag,
		); err != nil {
			return nil, storage.StorageError{Op: "put", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storage.StorageError{Op: "put", Err: err}
	}

	d.logger.Debug("stored memory",
		zap.String("id", stored.ID),
		zap.String("type", string(stored.Type)),
	)

	return stored, nil
}

// Get retrieves a document by its id.
func (d *SQLiteDriver) Get(ctx context.Context, id string) (*memory.Document, error) {
	var blob string
	err := d.db.QueryRowContext(ctx,
		`SELECT doc FROM memories WHERE id = ?`, id,
	).Scan(&blob)

	switch err {
	case nil:
		return decodeDocument(blob)
	case sql.ErrNoRows:
		return nil, storage.NotFoundError{ID: id}
	default:
		return nil, storage.StorageError{Op: "get", Err: err}
	}
}

// All returns every document, newest first.
func (d *SQLiteDriver) All(ctx context.Context) ([]*memory.Document, error) {
	return d.queryDocs(ctx, "all",
		`SELECT doc FROM memories ORDER BY updated_at DESC, id ASC`)
}

// Count returns the number of stored documents.
func (d *SQLiteDriver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories`,
	).Scan(&n); err != nil {
		return 0, storage.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// QueryByType returns documents of the given type, newest first.
func (d *SQLiteDriver) QueryByType(ctx context.Context, typ memory.Type) ([]*memory.Document, error) {
	return d.queryDocs(ctx, "query_by_type",
		`SELECT doc FROM memories WHERE memory_type = ? ORDER BY updated_at DESC, id ASC`,
		string(typ))
}

// QueryByTag returns documents currently carrying the tag, newest first.
func (d *SQLiteDriver) QueryByTag(ctx context.Context, tag string) ([]*memory.Document, error) {
	return d.queryDocs(ctx, "query_by_tag", `
		SELECT m.doc
		FROM memories m
		INNER JOIN memory_tags t ON t.memory_id = m.id
		WHERE t.tag = ?
		ORDER BY m.updated_at DESC, m.id ASC
	`, tag)
}

// QueryByImportance returns documents with importance >= min, most important
// first.
func (d *SQLiteDriver) QueryByImportance(ctx context.Context, min float64) ([]*memory.Document, error) {
	return d.queryDocs(ctx, "query_by_importance",
		`SELECT doc FROM memories WHERE importance >= ? ORDER BY importance DESC, updated_at DESC, id ASC`,
		min)
}

// Recent returns up to limit documents, newest first.
func (d *SQLiteDriver) Recent(ctx context.Context, limit int) ([]*memory.Document, error) {
	if limit < 0 {
		limit = 0
	}
	return d.queryDocs(ctx, "recent",
		`SELECT doc FROM memories ORDER BY updated_at DESC, id ASC LIMIT ?`,
		limit)
}

// PutEmbedding stores a content-addressed embedding record. A record with the
// same text hash already present is kept untouched.
func (d *SQLiteDriver) PutEmbedding(ctx context.Context, emb *memory.EmbeddingDocument) error {
	if emb == nil {
		return storage.StorageError{Op: "put_embedding", Err: fmt.Errorf("cannot store nil embedding")}
	}

	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO embeddings (text_hash, id, vector, dimensions, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(text_hash) DO NOTHING
	`,
		emb.TextHash, emb.ID, serializeFloat32(emb.Vector),
		emb.Dimensions, emb.Model, emb.CreatedAt,
	); err != nil {
		return storage.StorageError{Op: "put_embedding", Err: err}
	}
	return nil
}

// GetEmbeddingByHash retrieves an embedding by its text hash.
func (d *SQLiteDriver) GetEmbeddingByHash(ctx context.Context, textHash string) (*memory.EmbeddingDocument, error) {
	var (
		emb  memory.EmbeddingDocument
		blob []byte
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT text_hash, id, vector, dimensions, model, created_at
		FROM embeddings WHERE text_hash = ?
	`, textHash).Scan(&emb.TextHash, &emb.ID, &blob, &emb.Dimensions, &emb.Model, &emb.CreatedAt)

	switch err {
	case nil:
		vec, derr := deserializeFloat32(blob)
		if derr != nil {
			return nil, storage.StorageError{Op: "get_embedding", Err: derr}
		}
		emb.Vector = vec
		return &emb, nil
	case sql.ErrNoRows:
		return nil, storage.NotFoundError{ID: textHash}
	default:
		return nil, storage.StorageError{Op: "get_embedding", Err: err}
	}
}

// PendingSync returns up to batch documents still pending sync, oldest update
// first so no document starves behind a busy one.
func (d *SQLiteDriver) PendingSync(ctx context.Context, batch int) ([]*memory.Document, error) {
	if batch < 0 {
		batch = 0
	}
	return d.queryDocs(ctx, "pending_sync",
		`SELECT doc FROM memories WHERE sync_status = ? ORDER BY updated_at ASC, id ASC LIMIT ?`,
		string(memory.StatusPending), batch)
}

// MarkSynced flips the referenced documents to synced, both in the index
// column and inside the stored blob, and returns how many rows actually
// changed. Re-marking a synced id is a no-op, and a row whose updated_at has
// moved past the pushed snapshot is left pending, so retried and raced cycles
// are both safe.
func (d *SQLiteDriver) MarkSynced(ctx context.Context, refs []storage.PushedRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.StorageError{Op: "mark_synced", Err: err}
	}
	defer tx.Rollback()

	flipped := 0
	for _, ref := range refs {
		res, err := tx.ExecContext(ctx, `
			UPDATE memories
			SET sync_status = ?,
				doc = json_set(doc, '$.sync_status', ?)
			WHERE id = ? AND sync_status = ? AND updated_at = ?
		`, string(memory.StatusSynced), string(memory.StatusSynced), ref.ID, string(memory.StatusPending), ref.UpdatedAt)
		if err != nil {
			return 0, storage.StorageError{Op: "mark_synced", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, storage.StorageError{Op: "mark_synced", Err: err}
		}
		flipped += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, storage.StorageError{Op: "mark_synced", Err: err}
	}
	return flipped, nil
}

// Close releases the underlying database handle.
func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

func (d *SQLiteDriver) queryDocs(ctx context.Context, op, query string, args ...any) ([]*memory.Document, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var docs []*memory.Document
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, storage.StorageError{Op: op, Err: err}
		}
		doc, err := decodeDocument(blob)
		if err != nil {
			return nil, storage.StorageError{Op: op, Err: err}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.StorageError{Op: op, Err: err}
	}
	return docs, nil
}

func decodeDocument(blob string) (*memory.Document, error) {
	var doc memory.Document
	if err := json.Unmarshal([]byte(blob), &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to float32s.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
