package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// VectorRecord holds the stored embedding for a memory.
type VectorRecord struct {
	MemoryID   string
	Embedding  []float32
	Model      string
	Dimensions int
	CreatedAt  int64
}

// encodeEmbedding converts a []float32 to a binary BLOB (4 bytes per float32).
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float32.
func decodeEmbedding(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for a memory.
func (db *DB) SaveVector(memoryID string, embedding []float32, model string) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	_, err := db.Exec(`
		INSERT INTO memory_vectors (memory_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, memoryID, blob, model, len(embedding), now,
		blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the embedding for a memory, or nil if not found.
func (db *DB) GetVector(memoryID string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := db.QueryRow(`
		SELECT memory_id, embedding, model, dimensions, created_at
		FROM memory_vectors WHERE memory_id = ?
	`, memoryID).Scan(&v.MemoryID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// VectorsForContext returns all vectors whose memories pass the access
// filter. The partition is applied in SQL so out-of-scope vectors never reach
// the similarity ranking at all.
func (db *DB) VectorsForContext(qc QueryContext) ([]VectorRecord, error) {
	where, args := qc.Predicate()
	rows, err := db.Query(`
		SELECT v.memory_id, v.embedding, v.model, v.dimensions, v.created_at
		FROM memory_vectors v
		JOIN memories m ON m.id = v.memory_id
		WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("vectors for context: %w", err)
	}
	defer rows.Close()
	return scanVectors(rows)
}

// VectorsForPartition returns vectors for one (owner, tier) partition. The
// merge-candidate search uses this; the structural restriction is what makes
// cross-owner and cross-tier merges impossible.
func (db *DB) VectorsForPartition(ownerID string, tier Tier) ([]VectorRecord, error) {
	rows, err := db.Query(`
		SELECT v.memory_id, v.embedding, v.model, v.dimensions, v.created_at
		FROM memory_vectors v
		JOIN memories m ON m.id = v.memory_id
		WHERE m.owner_id = ? AND m.tier = ?
	`, ownerID, tier)
	if err != nil {
		return nil, fmt.Errorf("vectors for partition: %w", err)
	}
	defer rows.Close()
	return scanVectors(rows)
}

// ListMissingVectors returns memories that have no stored embedding, for
// backfill once the embedding service is reachable again.
func (db *DB) ListMissingVectors(limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT `+prefixCols("m")+`
		FROM memories m
		LEFT JOIN memory_vectors v ON v.memory_id = m.id
		WHERE v.memory_id IS NULL
		ORDER BY m.created_at
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing vectors: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// DeleteVector removes the embedding for a memory.
func (db *DB) DeleteVector(memoryID string) error {
	_, err := db.Exec("DELETE FROM memory_vectors WHERE memory_id = ?", memoryID)
	if err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}
	return nil
}

func scanVectors(rows *sql.Rows) ([]VectorRecord, error) {
	var records []VectorRecord
	for rows.Next() {
		var v VectorRecord
		var blob []byte
		if err := rows.Scan(&v.MemoryID, &blob, &v.Model, &v.Dimensions, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		v.Embedding = decodeEmbedding(blob)
		records = append(records, v)
	}
	return records, rows.Err()
}
