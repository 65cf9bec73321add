package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 5 {
		t.Errorf("SchemaVersion = %d, want 5", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "memories", "memory_vectors", "sessions", "session_turns", "memory_tombstones", "memory_fts"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestNewIDSortable(t *testing.T) {
	db := testDB(t)

	a := db.NewID()
	b := db.NewID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if len(a) != 26 {
		t.Errorf("id length = %d, want 26", len(a))
	}
}

func TestKindConstraint(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`
		INSERT INTO memories (id, owner_id, summary, summary_norm, kind, tier, created_at, updated_at)
		VALUES ('x', 'alice', 's', 's', 'bogus', 'private', 0, 0)
	`)
	if err == nil {
		t.Error("expected CHECK constraint failure for bogus kind")
	}
}
