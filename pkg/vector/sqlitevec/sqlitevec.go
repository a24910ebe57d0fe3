// Package sqlitevec provides the sqlite-vec backed KNN index for recall.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/vector"
)

// SQLiteVecDriver implements vector.Driver using SQLite with sqlite-vec.
type SQLiteVecDriver struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory index.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewSQLiteVecDriver creates a new KNN index backed by sqlite-vec.
func NewSQLiteVecDriver(c Config, logger *zap.Logger) (*SQLiteVecDriver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrConnection, err)
	}

	// vec0 virtual tables use integer rowids, so string memory ids go
	// through a mapping table.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_memories (
			rowid     INTEGER PRIMARY KEY AUTOINCREMENT,
			memory_id TEXT NOT NULL UNIQUE,
			text_hash TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating memories mapping table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &SQLiteVecDriver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to the little-endian BLOB layout
// sqlite-vec expects.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add indexes entries. A known memory id has its vector replaced, which
// happens whenever a memory's content register takes a new value.
func (d *SQLiteVecDriver) Add(ctx context.Context, entries []vector.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		embBlob := serializeFloat32(entry.Embedding)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM vec_memories WHERE memory_id = ?`, entry.MemoryID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE vec_memories SET text_hash = ? WHERE rowid = ?`,
				entry.TextHash, existingRowID,
			); err != nil {
				return fmt.Errorf("updating entry %s: %w", entry.MemoryID, err)
			}

			// vec0 does not support UPDATE, so replace via DELETE + INSERT
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM vec_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for %s: %w", entry.MemoryID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for %s: %w", entry.MemoryID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO vec_memories(memory_id, text_hash) VALUES (?, ?)`,
				entry.MemoryID, entry.TextHash,
			)
			if err != nil {
				return fmt.Errorf("inserting entry %s: %w", entry.MemoryID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for %s: %w", entry.MemoryID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for %s: %w", entry.MemoryID, err)
			}
		default:
			return fmt.Errorf("checking for existing entry %s: %w", entry.MemoryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("indexed embeddings",
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query finds the topK entries most similar to the given embedding.
func (d *SQLiteVecDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob := serializeFloat32(embedding)

	// KNN via vec0 MATCH, joined back to recover the memory id.
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			m.memory_id,
			m.text_hash,
			ve.distance
		FROM vec_embeddings ve
		INNER JOIN vec_memories m ON m.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
		ORDER BY ve.distance
	`, queryBlob, topK)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var memoryID, textHash string
		var distance float64
		if err := rows.Scan(&memoryID, &textHash, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		results = append(results, vector.QueryResult{
			Entry: vector.Entry{
				MemoryID: memoryID,
				TextHash: textHash,
			},
			// lower distance = higher similarity
			Score: float32(1.0 / (1.0 + distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec index",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves entries by their memory ids.
func (d *SQLiteVecDriver) Get(ctx context.Context, memoryIDs []string) ([]vector.Entry, error) {
	if len(memoryIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(memoryIDs))
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT m.memory_id, m.text_hash, m.rowid
		FROM vec_memories m
		WHERE m.memory_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	// Collect rows first so the cursor is closed before the per-row
	// embedding lookups (SQLite uses a single connection).
	type entryRow struct {
		memoryID string
		textHash string
		rowID    int64
	}
	var entryRows []entryRow

	for rows.Next() {
		var er entryRow
		if err := rows.Scan(&er.memoryID, &er.textHash, &er.rowID); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entryRows = append(entryRows, er)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	rows.Close()

	entries := make([]vector.Entry, 0, len(entryRows))
	for _, er := range entryRows {
		entry := vector.Entry{
			MemoryID: er.memoryID,
			TextHash: er.textHash,
		}

		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM vec_embeddings WHERE rowid = ?`, er.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			entry.Embedding, _ = deserializeFloat32(embBlob)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Delete removes entries by their memory ids.
func (d *SQLiteVecDriver) Delete(ctx context.Context, memoryIDs []string) error {
	if len(memoryIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(memoryIDs))
	args := make([]any, len(memoryIDs))
	for i, id := range memoryIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	query := fmt.Sprintf(
		`SELECT rowid FROM vec_memories WHERE memory_id IN (%s)`, inClause,
	)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vec_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	deleteQuery := fmt.Sprintf(
		`DELETE FROM vec_memories WHERE memory_id IN (%s)`, inClause,
	)
	if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted entries from sqlite-vec index",
		zap.Int("count", len(memoryIDs)),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *SQLiteVecDriver) Close() error {
	return d.db.Close()
}
