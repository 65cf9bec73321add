package store

import (
	"testing"
)

func TestDeleteMemoryAudited(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "forget me", Tier: TierScoped, OriginScopeID: "mod-channel"})
	db.SaveVector(m.ID, []float32{1, 0}, "tfidf")

	if err := db.DeleteMemoryAudited(m.ID, "user request"); err != nil {
		t.Fatalf("DeleteMemoryAudited: %v", err)
	}

	gone, _ := db.GetMemory(m.ID)
	if gone != nil {
		t.Error("memory row survived deletion")
	}
	vec, _ := db.GetVector(m.ID)
	if vec != nil {
		t.Error("vector survived deletion")
	}

	stones, err := db.ListTombstones("alice")
	if err != nil {
		t.Fatalf("ListTombstones: %v", err)
	}
	if len(stones) != 1 {
		t.Fatalf("tombstones = %d, want 1", len(stones))
	}
	ts := stones[0]
	if ts.MemoryID != m.ID || ts.Summary != "forget me" || ts.Tier != TierScoped {
		t.Errorf("tombstone = %+v", ts)
	}
	if ts.Reason != "user request" {
		t.Errorf("reason = %q", ts.Reason)
	}
}

func TestDeleteMemoryAuditedMissing(t *testing.T) {
	db := testDB(t)

	if err := db.DeleteMemoryAudited("nope", "reason"); err == nil {
		t.Error("expected error deleting a nonexistent memory")
	}
}

func TestDeletedMemoryUnsearchable(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "ephemeral detail about llamas"})
	if err := db.DeleteMemoryAudited(m.ID, ""); err != nil {
		t.Fatalf("DeleteMemoryAudited: %v", err)
	}

	hits, err := db.LexicalSearch(QueryContext{Kind: ContextPrivate, OwnerID: "alice"}, "llamas", 20)
	if err != nil {
		t.Fatalf("LexicalSearch: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted memory still searchable: %d hits", len(hits))
	}
}
