package store

import (
	"errors"
	"testing"
	"time"
)

func seedMemory(t *testing.T, db *DB, m Memory) *Memory {
	t.Helper()
	if m.Kind == "" {
		m.Kind = KindSemantic
	}
	if m.Tier == "" {
		m.Tier = TierPrivate
	}
	if m.Confidence == 0 {
		m.Confidence = 0.8
	}
	if err := db.CreateMemory(&m); err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	return &m
}

func TestCreateMemory(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{
		OwnerID: "alice",
		Summary: "Uses the in-game name CreeperSlayer99",
		Kind:    KindSemantic,
		Tier:    TierUniversal,
	})

	if m.ID == "" {
		t.Error("expected non-empty ID")
	}
	if m.SourceCount != 1 {
		t.Errorf("source_count = %d, want 1", m.SourceCount)
	}
	if m.DecayPolicy != DecayStandard {
		t.Errorf("decay_policy = %q, want standard", m.DecayPolicy)
	}
}

func TestCreateMemoryValidation(t *testing.T) {
	db := testDB(t)

	cases := []Memory{
		{Summary: "no owner", Kind: KindSemantic, Tier: TierPrivate},
		{OwnerID: "alice", Summary: "  ", Kind: KindSemantic, Tier: TierPrivate},
		{OwnerID: "alice", Summary: "bad kind", Kind: "nope", Tier: TierPrivate},
		{OwnerID: "alice", Summary: "bad tier", Kind: KindSemantic, Tier: "nope"},
	}
	for _, m := range cases {
		if err := db.CreateMemory(&m); err == nil {
			t.Errorf("expected error for %+v", m)
		}
	}
}

func TestCreateMemoryCollapsesDuplicates(t *testing.T) {
	db := testDB(t)

	first := seedMemory(t, db, Memory{
		OwnerID:    "alice",
		Summary:    "Plays on the Java edition",
		Confidence: 0.6,
	})

	// Same fact, different punctuation and case; normalizes identically.
	dup := Memory{
		OwnerID:    "alice",
		Summary:    "plays on the Java edition!",
		Kind:       KindSemantic,
		Tier:       TierPrivate,
		Confidence: 0.9,
	}
	if err := db.CreateMemory(&dup); err != nil {
		t.Fatalf("CreateMemory dup: %v", err)
	}

	if dup.ID != first.ID {
		t.Errorf("duplicate got id %s, want existing %s", dup.ID, first.ID)
	}
	if dup.SourceCount != 2 {
		t.Errorf("source_count = %d, want 2", dup.SourceCount)
	}
	if dup.Confidence != 0.9 {
		t.Errorf("confidence = %f, want max of the two (0.9)", dup.Confidence)
	}

	all, _ := db.ListMemories("alice", "")
	if len(all) != 1 {
		t.Errorf("memories = %d, want 1", len(all))
	}
}

func TestCreateMemoryRejectsCrossTierCollision(t *testing.T) {
	db := testDB(t)

	existing := seedMemory(t, db, Memory{
		OwnerID: "alice",
		Summary: "Runs the weekly build contest",
		Tier:    TierCommunity,
		Detail:  "announced in #events",
	})

	// The same fact resurfaces in a DM. Collapsing it into the community row
	// would make the private detail community-readable.
	private := Memory{
		OwnerID:    "alice",
		Summary:    "Runs the weekly build contest",
		Kind:       KindSemantic,
		Tier:       TierPrivate,
		Detail:     "told the bot in DM: only does it because a mod pressured her",
		Confidence: 0.9,
	}
	err := db.CreateMemory(&private)
	if !errors.Is(err, ErrTierCollision) {
		t.Fatalf("CreateMemory = %v, want ErrTierCollision", err)
	}

	got, _ := db.GetMemory(existing.ID)
	if got.Tier != TierCommunity {
		t.Errorf("tier = %q, want community", got.Tier)
	}
	if got.Detail != "announced in #events" {
		t.Errorf("detail = %q, private content absorbed into a community row", got.Detail)
	}
	if got.SourceCount != 1 {
		t.Errorf("source_count = %d, want 1", got.SourceCount)
	}

	all, _ := db.ListMemories("alice", "")
	if len(all) != 1 {
		t.Errorf("memories = %d, want the community row only", len(all))
	}
}

func TestDuplicateSummariesAcrossOwnersCoexist(t *testing.T) {
	db := testDB(t)

	a := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "Prefers redstone builds"})
	b := seedMemory(t, db, Memory{OwnerID: "bob", Summary: "Prefers redstone builds"})
	if a.ID == b.ID {
		t.Error("same summary for different owners must stay distinct rows")
	}
}

func TestNormalizeSummary(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello,   World!", "hello world"},
		{"  IGN: CreeperSlayer99  ", "ign creeperslayer99"},
		{"a.b.c", "abc"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeSummary(c.in); got != c.want {
			t.Errorf("NormalizeSummary(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConfidenceClampedOnCreate(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "over", Confidence: 4.2})
	if m.Confidence > 1.0 {
		t.Errorf("confidence = %f, want clamped to <= 1", m.Confidence)
	}
}

func TestReinforce(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "fact", Confidence: 0.5})

	if err := db.Reinforce([]string{m.ID}); err != nil {
		t.Fatalf("Reinforce: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.RetrievalCount != 1 {
		t.Errorf("retrieval_count = %d, want 1", got.RetrievalCount)
	}
	if got.LastAccessedAt == nil {
		t.Error("expected last_accessed_at set")
	}
	if got.Confidence <= 0.5 {
		t.Errorf("confidence = %f, want > 0.5 after reinforcement", got.Confidence)
	}
}

func TestReinforceCapsAtCeiling(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "fact", Confidence: 0.985})

	for i := 0; i < 5; i++ {
		if err := db.Reinforce([]string{m.ID}); err != nil {
			t.Fatalf("Reinforce: %v", err)
		}
	}

	got, _ := db.GetMemory(m.ID)
	if got.Confidence > 0.99 {
		t.Errorf("confidence = %f, want <= 0.99", got.Confidence)
	}
	if got.RetrievalCount != 5 {
		t.Errorf("retrieval_count = %d, want 5", got.RetrievalCount)
	}
}

func TestApplyDecayFloors(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "fading", Confidence: 0.2})

	if err := db.ApplyDecay(m.ID, 0.1, 0.10); err != nil {
		t.Fatalf("ApplyDecay: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.Confidence != 0.10 {
		t.Errorf("confidence = %f, want floored at 0.10", got.Confidence)
	}
	if got.LastDecayedAt == nil {
		t.Error("expected last_decayed_at stamped")
	}
}

func TestPromoteTierNeverDemotes(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "safe fact", Tier: TierScoped})
	if err := db.PromoteTier(m.ID); err != nil {
		t.Fatalf("PromoteTier: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.Tier != TierUniversal {
		t.Errorf("tier = %q, want universal", got.Tier)
	}

	// A second promote is a no-op, never a demotion path.
	if err := db.PromoteTier(m.ID); err != nil {
		t.Fatalf("PromoteTier again: %v", err)
	}
	got, _ = db.GetMemory(m.ID)
	if got.Tier != TierUniversal {
		t.Errorf("tier = %q, want universal", got.Tier)
	}
}

func TestUpdateMemoryContent(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "alice", Summary: "old wording", Confidence: 0.7})

	if err := db.UpdateMemoryContent(m.ID, "new wording", "with detail", 0.6); err != nil {
		t.Fatalf("UpdateMemoryContent: %v", err)
	}

	got, _ := db.GetMemory(m.ID)
	if got.Summary != "new wording" {
		t.Errorf("summary = %q, want new wording", got.Summary)
	}
	if got.SourceCount != 2 {
		t.Errorf("source_count = %d, want 2", got.SourceCount)
	}
	// Confidence keeps the higher of old and incoming.
	if got.Confidence != 0.7 {
		t.Errorf("confidence = %f, want 0.7", got.Confidence)
	}
}

func TestListDecayable(t *testing.T) {
	db := testDB(t)

	seedMemory(t, db, Memory{OwnerID: "a", Summary: "episodic fades", Kind: KindEpisodic})
	seedMemory(t, db, Memory{OwnerID: "a", Summary: "semantic persists", Kind: KindSemantic})
	seedMemory(t, db, Memory{OwnerID: "a", Summary: "protected stays", Kind: KindEpisodic, Protected: true})
	pinned := seedMemory(t, db, Memory{OwnerID: "a", Summary: "policy none", Kind: KindObservation})
	db.SetDecayPolicy(pinned.ID, DecayNone)

	decayable, err := db.ListDecayable()
	if err != nil {
		t.Fatalf("ListDecayable: %v", err)
	}
	if len(decayable) != 1 {
		t.Fatalf("decayable = %d, want 1", len(decayable))
	}
	if decayable[0].Summary != "episodic fades" {
		t.Errorf("decayable[0] = %q", decayable[0].Summary)
	}
}

func TestAccessedAsOf(t *testing.T) {
	db := testDB(t)

	m := seedMemory(t, db, Memory{OwnerID: "a", Summary: "touched"})
	seedMemory(t, db, Memory{OwnerID: "a", Summary: "untouched"})

	if err := db.Reinforce([]string{m.ID}); err != nil {
		t.Fatalf("Reinforce: %v", err)
	}

	accessed, err := db.AccessedAsOf(time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("AccessedAsOf: %v", err)
	}
	if len(accessed) != 1 || accessed[0].ID != m.ID {
		t.Errorf("accessed = %+v, want only the touched memory", accessed)
	}

	before, err := db.AccessedAsOf(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AccessedAsOf: %v", err)
	}
	if len(before) != 0 {
		t.Errorf("accessed before = %d, want 0", len(before))
	}
}
