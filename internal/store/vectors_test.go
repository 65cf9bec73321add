package store

import (
	"testing"
)

func TestSaveVectorRoundTrip(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "vector host"})
	vec := []float32{0.1, -0.5, 0.9, 0}

	if err := db.SaveVector(m.ID, vec, "tfidf"); err != nil {
		t.Fatalf("SaveVector: %v", err)
	}

	got, err := db.GetVector(m.ID)
	if err != nil {
		t.Fatalf("GetVector: %v", err)
	}
	if got == nil {
		t.Fatal("expected vector, got nil")
	}
	if got.Model != "tfidf" || got.Dimensions != 4 {
		t.Errorf("model=%q dims=%d", got.Model, got.Dimensions)
	}
	if len(got.Embedding) != len(vec) {
		t.Fatalf("embedding len = %d, want %d", len(got.Embedding), len(vec))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Errorf("embedding[%d] = %f, want %f", i, got.Embedding[i], vec[i])
		}
	}
}

func TestSaveVectorReplaces(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "host"})
	db.SaveVector(m.ID, []float32{1, 0}, "tfidf")
	if err := db.SaveVector(m.ID, []float32{0, 1, 0}, "ollama:nomic-embed-text"); err != nil {
		t.Fatalf("SaveVector replace: %v", err)
	}

	got, _ := db.GetVector(m.ID)
	if got.Dimensions != 3 || got.Model != "ollama:nomic-embed-text" {
		t.Errorf("vector not replaced: dims=%d model=%q", got.Dimensions, got.Model)
	}
}

func TestVectorsForContextFiltered(t *testing.T) {
	db := testDB(t)

	private := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "private thing", Tier: TierPrivate})
	communal := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "communal thing", Tier: TierCommunity, OriginCommunityID: "smp"})
	db.SaveVector(private.ID, []float32{1, 0}, "tfidf")
	db.SaveVector(communal.ID, []float32{0, 1}, "tfidf")

	vectors, err := db.VectorsForContext(QueryContext{
		Kind: ContextCommunity, OwnerID: "bob", CommunityID: "smp",
	})
	if err != nil {
		t.Fatalf("VectorsForContext: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("vectors = %d, want 1", len(vectors))
	}
	if vectors[0].MemoryID != communal.ID {
		t.Error("private memory's vector reached the ranking set")
	}
}

func TestVectorsForPartition(t *testing.T) {
	db := testDB(t)

	mine := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "mine", Tier: TierPrivate})
	theirs := seedMemory(t, db, Memory{OwnerID: "bob", Summary: "theirs", Tier: TierPrivate})
	otherTier := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "other tier", Tier: TierCommunity, OriginCommunityID: "smp"})
	for _, m := range []*Memory{mine, theirs, otherTier} {
		db.SaveVector(m.ID, []float32{1}, "tfidf")
	}

	vectors, err := db.VectorsForPartition("alice", TierPrivate)
	if err != nil {
		t.Fatalf("VectorsForPartition: %v", err)
	}
	if len(vectors) != 1 || vectors[0].MemoryID != mine.ID {
		t.Errorf("partition returned %d vectors, want only alice/private", len(vectors))
	}
}

func TestListMissingVectors(t *testing.T) {
	db := testDB(t)

	embedded := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "embedded"})
	bare := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "bare"})
	db.SaveVector(embedded.ID, []float32{1}, "tfidf")

	missing, err := db.ListMissingVectors(10)
	if err != nil {
		t.Fatalf("ListMissingVectors: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != bare.ID {
		t.Errorf("missing = %d, want only the bare memory", len(missing))
	}
}

func TestVectorCascadesOnDelete(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "doomed"})
	db.SaveVector(m.ID, []float32{1}, "tfidf")

	if _, err := db.Exec("DELETE FROM memories WHERE id = ?", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := db.GetVector(m.ID)
	if got != nil {
		t.Error("vector survived its memory")
	}
}
