package store

import (
	"fmt"
	"time"
)

// Tombstone is the append-only audit record left behind by an explicit
// deletion: enough to review what was removed and at what sensitivity,
// without resurrecting the content.
type Tombstone struct {
	ID        int64
	MemoryID  string
	OwnerID   string
	Summary   string
	Tier      Tier
	Reason    string
	DeletedAt int64
}

// DeleteMemoryAudited removes a memory and writes its tombstone in one
// transaction. Deletion is always explicit and always leaves the audit row;
// the decay scheduler only ever flags, never deletes.
func (db *DB) DeleteMemoryAudited(id, reason string) error {
	m, err := db.GetMemory(id)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("delete memory: %s not found", id)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("delete memory: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`
		INSERT INTO memory_tombstones (memory_id, owner_id, summary, tier, reason, deleted_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)
	`, m.ID, m.OwnerID, m.Summary, m.Tier, reason, now); err != nil {
		return fmt.Errorf("delete memory: tombstone: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM memory_vectors WHERE memory_id = ?`, m.ID); err != nil {
		return fmt.Errorf("delete memory: vector: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, m.ID); err != nil {
		return fmt.Errorf("delete memory: row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete memory: commit: %w", err)
	}
	return nil
}

// ListTombstones returns an owner's deletion audit trail, newest first.
func (db *DB) ListTombstones(ownerID string) ([]Tombstone, error) {
	rows, err := db.Query(`
		SELECT id, memory_id, owner_id, summary, tier, COALESCE(reason, ''), deleted_at
		FROM memory_tombstones WHERE owner_id = ? ORDER BY deleted_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer rows.Close()

	var stones []Tombstone
	for rows.Next() {
		var t Tombstone
		if err := rows.Scan(&t.ID, &t.MemoryID, &t.OwnerID, &t.Summary, &t.Tier, &t.Reason, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tombstone: %w", err)
		}
		stones = append(stones, t)
	}
	return stones, rows.Err()
}
