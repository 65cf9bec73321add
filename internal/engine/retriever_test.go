package engine

import (
	"context"
	"testing"

	"github.com/lorekeep/lorekeep/internal/store"
)

func seedRetrievable(t *testing.T, db *store.DB, ownerID string, tier store.Tier, communityID, summary string) string {
	t.Helper()
	m := store.Memory{
		OwnerID:           ownerID,
		Summary:           summary,
		Kind:              store.KindSemantic,
		Tier:              tier,
		OriginCommunityID: communityID,
		Confidence:        0.8,
	}
	if err := db.CreateMemory(&m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	return m.ID
}

func privateContext(ownerID string) store.QueryContext {
	return store.QueryContext{Kind: store.ContextPrivate, OwnerID: ownerID}
}

func TestRetrieveLexicalOnly(t *testing.T) {
	eng, db := testEngine(t, nil)
	want := seedRetrievable(t, db, "alice", store.TierPrivate, "", "Goes by the in-game name CreeperSlayer99")
	seedRetrievable(t, db, "alice", store.TierPrivate, "", "Dislikes mining at night")

	results, err := eng.Retrieve(context.Background(), privateContext("alice"), "CreeperSlayer99", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Memory.ID != want {
		t.Errorf("got %q, want the exact-name match", results[0].Memory.Summary)
	}
	if results[0].Similarity != 0 {
		t.Errorf("similarity = %f, want 0 without an embedder", results[0].Similarity)
	}
}

func TestRetrieveFusesChannels(t *testing.T) {
	eng, db := testEngine(t, nil)
	both := seedRetrievable(t, db, "alice", store.TierPrivate, "", "Enjoys building redstone contraptions")
	lexOnly := seedRetrievable(t, db, "alice", store.TierPrivate, "", "Swapped redstone for slime blocks last week")
	seedRetrievable(t, db, "alice", store.TierPrivate, "", "Keeps a dog named Biscuit")
	embedCorpus(t, eng, db)

	results, err := eng.Retrieve(context.Background(), privateContext("alice"), "enjoys building redstone contraptions", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("results = %d, want both redstone memories", len(results))
	}

	// Scoring on both channels outranks a lexical-only hit.
	if results[0].Memory.ID != both {
		t.Errorf("top result = %q, want the memory matched by both channels", results[0].Memory.Summary)
	}
	if results[0].Similarity == 0 {
		t.Error("top result should carry its vector similarity")
	}
	if results[1].Memory.ID != lexOnly {
		t.Errorf("second result = %q, want the lexical-only hit", results[1].Memory.Summary)
	}
}

func TestRetrieveReinforces(t *testing.T) {
	eng, db := testEngine(t, nil)
	id := seedRetrievable(t, db, "alice", store.TierPrivate, "", "Keeps spare elytra in an ender chest")
	untouched := seedRetrievable(t, db, "alice", store.TierPrivate, "", "Dislikes mining at night")

	if _, err := eng.Retrieve(context.Background(), privateContext("alice"), "elytra ender chest", 5); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	m, err := db.GetMemory(id)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if m.RetrievalCount != 1 {
		t.Errorf("retrieval_count = %d, want 1", m.RetrievalCount)
	}
	if m.LastAccessedAt == nil {
		t.Error("last_accessed_at not stamped on retrieval")
	}

	other, err := db.GetMemory(untouched)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if other.RetrievalCount != 0 {
		t.Errorf("unretrieved memory reinforced, count = %d", other.RetrievalCount)
	}
}

func TestRetrieveHonorsContextPartition(t *testing.T) {
	eng, db := testEngine(t, nil)
	seedRetrievable(t, db, "alice", store.TierPrivate, "", "Keeps a secret base under the desert temple")
	shared := seedRetrievable(t, db, "alice", store.TierCommunity, "smp", "Organizes the secret santa event on the smp")
	embedCorpus(t, eng, db)

	// bob asks from an open channel in the same community. Only the
	// community-tier memory is reachable; alice's private row never is,
	// on either channel.
	qc := store.QueryContext{Kind: store.ContextCommunity, OwnerID: "bob", CommunityID: "smp"}
	results, err := eng.Retrieve(context.Background(), qc, "secret base desert temple", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, r := range results {
		if r.Memory.ID != shared {
			t.Errorf("leaked %q into a community query", r.Memory.Summary)
		}
	}
}

func TestRetrieveRejectsInvalidContext(t *testing.T) {
	eng, db := testEngine(t, nil)
	seedRetrievable(t, db, "alice", store.TierPrivate, "", "Dislikes mining at night")

	if _, err := eng.Retrieve(context.Background(), store.QueryContext{Kind: store.ContextPrivate}, "mining", 5); err == nil {
		t.Error("expected error for context without an owner")
	}
	if _, err := eng.Retrieve(context.Background(), store.QueryContext{Kind: "direct", OwnerID: "alice"}, "mining", 5); err == nil {
		t.Error("expected error for unknown context kind")
	}
}

func TestRetrieveDefaultLimit(t *testing.T) {
	eng, db := testEngine(t, nil)
	farms := []string{
		"Built an iron farm at spawn",
		"Built a gold farm in the nether roof",
		"Built a creeper farm for gunpowder",
		"Built a villager trading farm",
		"Built a wool farm with eight sheep colors",
		"Built a kelp farm for fuel",
		"Built a cactus farm in the desert",
	}
	for _, s := range farms {
		seedRetrievable(t, db, "alice", store.TierPrivate, "", s)
	}

	results, err := eng.Retrieve(context.Background(), privateContext("alice"), "built farm", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != defaultLimit {
		t.Errorf("results = %d, want the default limit %d", len(results), defaultLimit)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	eng, db := testEngine(t, nil)
	seedRetrievable(t, db, "alice", store.TierPrivate, "", "Dislikes mining at night")

	results, err := eng.Retrieve(context.Background(), privateContext("alice"), "   ", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if results != nil {
		t.Errorf("results = %v, want none for an empty query", results)
	}
}
