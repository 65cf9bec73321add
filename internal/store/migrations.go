package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "memories: tier-scoped memory records",
		SQL: `
CREATE TABLE memories (
    id                  TEXT PRIMARY KEY,
    owner_id            TEXT NOT NULL,
    summary             TEXT NOT NULL,
    summary_norm        TEXT NOT NULL,
    detail              TEXT,
    kind                TEXT NOT NULL CHECK (kind IN ('episodic', 'semantic', 'procedural', 'observation', 'inferred')),
    tier                TEXT NOT NULL CHECK (tier IN ('private', 'scoped', 'community', 'universal')),
    origin_scope_id     TEXT,
    origin_community_id TEXT,

    -- Decay and reinforcement
    confidence          REAL NOT NULL DEFAULT 0.5,
    source_count        INTEGER NOT NULL DEFAULT 1,
    retrieval_count     INTEGER NOT NULL DEFAULT 0,
    decay_policy        TEXT NOT NULL DEFAULT 'standard' CHECK (decay_policy IN ('none', 'standard', 'aggressive', 'pending_removal')),
    protected           INTEGER NOT NULL DEFAULT 0,
    promote_candidate   INTEGER NOT NULL DEFAULT 0,

    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL,
    last_accessed_at    INTEGER,
    last_decayed_at     INTEGER
);

CREATE UNIQUE INDEX idx_memories_owner_norm ON memories(owner_id, summary_norm);
CREATE INDEX idx_memories_owner_tier ON memories(owner_id, tier);
CREATE INDEX idx_memories_community  ON memories(tier, origin_community_id);
CREATE INDEX idx_memories_accessed   ON memories(last_accessed_at);
`,
	},
	{
		Version:     2,
		Description: "memory_vectors: embedding vectors for semantic search",
		SQL: `
CREATE TABLE memory_vectors (
    memory_id  TEXT PRIMARY KEY,
    embedding  BLOB NOT NULL,
    model      TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (memory_id) REFERENCES memories(id) ON DELETE CASCADE
);
`,
	},
	{
		Version:     3,
		Description: "sessions + session_turns: keyed conversation buffers",
		SQL: `
CREATE TABLE sessions (
    id                TEXT PRIMARY KEY,
    owner_id          TEXT NOT NULL,
    scope_id          TEXT NOT NULL,
    community_id      TEXT,
    tier              TEXT NOT NULL,
    message_count     INTEGER NOT NULL DEFAULT 0,
    started_at        INTEGER NOT NULL,
    last_turn_at      INTEGER NOT NULL,
    last_extracted_at INTEGER
);

CREATE UNIQUE INDEX idx_sessions_owner_scope ON sessions(owner_id, scope_id);

CREATE TABLE session_turns (
    id         INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL,
    speaker_id TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX idx_turns_session ON session_turns(session_id);
`,
	},
	{
		Version:     4,
		Description: "memory_tombstones: append-only deletion audit",
		SQL: `
CREATE TABLE memory_tombstones (
    id         INTEGER PRIMARY KEY,
    memory_id  TEXT NOT NULL,
    owner_id   TEXT NOT NULL,
    summary    TEXT NOT NULL,
    tier       TEXT NOT NULL,
    reason     TEXT,
    deleted_at INTEGER NOT NULL
);

CREATE INDEX idx_tombstones_owner ON memory_tombstones(owner_id);
`,
	},
	{
		Version:     5,
		Description: "memory_fts: full-text index over summary and detail",
		SQL: `
CREATE VIRTUAL TABLE memory_fts USING fts5(
    summary,
    detail,
    content=memories,
    content_rowid=rowid
);

CREATE TRIGGER memories_fts_ai AFTER INSERT ON memories BEGIN
    INSERT INTO memory_fts(rowid, summary, detail) VALUES (new.rowid, new.summary, new.detail);
END;

CREATE TRIGGER memories_fts_ad AFTER DELETE ON memories BEGIN
    INSERT INTO memory_fts(memory_fts, rowid, summary, detail) VALUES ('delete', old.rowid, old.summary, old.detail);
END;

CREATE TRIGGER memories_fts_au AFTER UPDATE OF summary, detail ON memories BEGIN
    INSERT INTO memory_fts(memory_fts, rowid, summary, detail) VALUES ('delete', old.rowid, old.summary, old.detail);
    INSERT INTO memory_fts(rowid, summary, detail) VALUES (new.rowid, new.summary, new.detail);
END;
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
