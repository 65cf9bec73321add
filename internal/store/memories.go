package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrTierCollision reports an insert whose normalized summary matches an
// existing memory of the same owner at a different tier. Such rows are never
// collapsed; absorbing one into the other would move content across a
// visibility boundary.
var ErrTierCollision = errors.New("summary collides with a memory at another tier")

// Tier is the access-control classification of a memory.
type Tier string

const (
	// TierPrivate is readable by the owner in direct conversation only.
	TierPrivate Tier = "private"
	// TierScoped is readable by the owner inside one restricted channel.
	TierScoped Tier = "scoped"
	// TierCommunity is readable by any member of the originating community.
	TierCommunity Tier = "community"
	// TierUniversal is readable anywhere, in any community.
	TierUniversal Tier = "universal"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierPrivate, TierScoped, TierCommunity, TierUniversal:
		return true
	}
	return false
}

// Kind classifies what a memory records.
type Kind string

const (
	KindEpisodic    Kind = "episodic"    // time-bound event
	KindSemantic    Kind = "semantic"    // persistent fact
	KindProcedural  Kind = "procedural"  // preference or skill
	KindObservation Kind = "observation" // derived passively, not from the owner's own words
	KindInferred    Kind = "inferred"    // derived from third-party reaction signals
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEpisodic, KindSemantic, KindProcedural, KindObservation, KindInferred:
		return true
	}
	return false
}

// DecayPolicy controls how the scheduler treats a memory.
type DecayPolicy string

const (
	DecayNone           DecayPolicy = "none"
	DecayStandard       DecayPolicy = "standard"
	DecayAggressive     DecayPolicy = "aggressive"
	DecayPendingRemoval DecayPolicy = "pending_removal"
)

// Memory is the unit of recall.
type Memory struct {
	ID                string
	OwnerID           string
	Summary           string
	Detail            string
	Kind              Kind
	Tier              Tier
	OriginScopeID     string
	OriginCommunityID string
	Confidence        float64
	SourceCount       int
	RetrievalCount    int
	DecayPolicy       DecayPolicy
	Protected         bool
	PromoteCandidate  bool
	CreatedAt         int64
	UpdatedAt         int64
	LastAccessedAt    *int64
	LastDecayedAt     *int64
}

const memoryCols = `id, owner_id, summary, detail, kind, tier,
	origin_scope_id, origin_community_id,
	confidence, source_count, retrieval_count, decay_policy, protected, promote_candidate,
	created_at, updated_at, last_accessed_at, last_decayed_at`

// NormalizeSummary lowercases a summary, collapses whitespace, and strips
// punctuation, producing the key used for the per-owner uniqueness constraint.
func NormalizeSummary(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Punctuation silently dropped
	}
	return strings.TrimSpace(b.String())
}

// clampConfidence bounds confidence to [0,1] before it reaches SQL.
// Writes also clamp with SQL min/max so relative updates stay in bounds.
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// CreateMemory inserts a new memory. If the owner already has a memory with
// the same normalized summary at the same tier, the rows are collapsed: the
// existing record absorbs the new detail and its source_count is incremented.
// This also absorbs the accepted race where two concurrent extractions both
// decide to insert the same fact. A collision with a row at a different tier
// returns ErrTierCollision and leaves the stored row untouched.
func (db *DB) CreateMemory(m *Memory) error {
	if m.OwnerID == "" {
		return fmt.Errorf("create memory: owner id required")
	}
	if strings.TrimSpace(m.Summary) == "" {
		return fmt.Errorf("create memory: summary required")
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("create memory: invalid kind %q", m.Kind)
	}
	if !m.Tier.Valid() {
		return fmt.Errorf("create memory: invalid tier %q", m.Tier)
	}

	if m.ID == "" {
		m.ID = db.NewID()
	}
	if m.DecayPolicy == "" {
		m.DecayPolicy = DecayStandard
	}
	if m.SourceCount <= 0 {
		m.SourceCount = 1
	}
	now := time.Now().UnixMilli()
	norm := NormalizeSummary(m.Summary)

	_, err := db.Exec(`
		INSERT INTO memories (id, owner_id, summary, summary_norm, detail, kind, tier,
			origin_scope_id, origin_community_id,
			confidence, source_count, retrieval_count, decay_policy, protected, promote_candidate,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), max(0.0, min(1.0, ?)), ?, 0, ?, ?, 0, ?, ?)
		ON CONFLICT(owner_id, summary_norm) DO UPDATE SET
			detail       = excluded.detail,
			source_count = source_count + 1,
			confidence   = max(confidence, excluded.confidence),
			updated_at   = excluded.updated_at
		WHERE memories.tier = excluded.tier
	`, m.ID, m.OwnerID, m.Summary, norm, m.Detail, m.Kind, m.Tier,
		m.OriginScopeID, m.OriginCommunityID,
		clampConfidence(m.Confidence), m.SourceCount, m.DecayPolicy, boolInt(m.Protected),
		now, now)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	// The conflict path keeps the existing row's id; resolve the stored one.
	stored, err := db.GetMemoryByNorm(m.OwnerID, norm)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("create memory: row not found after insert")
	}
	if stored.Tier != m.Tier {
		// The guarded upsert was a no-op: the colliding row lives at another
		// tier and absorbed nothing.
		return fmt.Errorf("create memory: %w (existing %s, new %s)", ErrTierCollision, stored.Tier, m.Tier)
	}
	*m = *stored
	return nil
}

// GetMemory returns a memory by id, or nil if not found.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	return scanMemoryRow(row)
}

// GetMemoryByNorm returns the owner's memory with the given normalized
// summary, or nil if none exists.
func (db *DB) GetMemoryByNorm(ownerID, norm string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryCols+` FROM memories WHERE owner_id = ? AND summary_norm = ?`, ownerID, norm)
	return scanMemoryRow(row)
}

// GetMemoriesByIDs returns memories for the given list of ids.
func (db *DB) GetMemoriesByIDs(ids []string) ([]Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := db.Query(
		`SELECT `+memoryCols+` FROM memories WHERE id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("get memories by ids: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListMemories returns an owner's memories, optionally filtered by tier,
// ordered by confidence descending. Read-only inspection surface.
func (db *DB) ListMemories(ownerID string, tier Tier) ([]Memory, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if tier != "" {
		if !tier.Valid() {
			return nil, fmt.Errorf("list memories: invalid tier %q", tier)
		}
		rows, err = db.Query(
			`SELECT `+memoryCols+` FROM memories WHERE owner_id = ? AND tier = ? ORDER BY confidence DESC, updated_at DESC`,
			ownerID, tier)
	} else {
		rows, err = db.Query(
			`SELECT `+memoryCols+` FROM memories WHERE owner_id = ? ORDER BY confidence DESC, updated_at DESC`,
			ownerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// UpdateMemoryContent rewrites a memory's summary and detail after a merge,
// incrementing source_count. The tier and owner never change here; merges are
// only ever found within one (owner, tier) partition.
func (db *DB) UpdateMemoryContent(id, summary, detail string, confidence float64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE memories SET summary = ?, summary_norm = ?, detail = ?,
			confidence = max(0.0, min(1.0, max(confidence, ?))),
			source_count = source_count + 1,
			updated_at = ?
		WHERE id = ?
	`, summary, NormalizeSummary(summary), detail, clampConfidence(confidence), now, id)
	if err != nil {
		return fmt.Errorf("update memory content: %w", err)
	}
	return nil
}

// PromoteTier raises a memory to the universal tier. Tiers are never demoted;
// the caller is expected to have run the safe-fact validation first.
func (db *DB) PromoteTier(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE memories SET tier = ?, updated_at = ? WHERE id = ? AND tier != ?
	`, TierUniversal, now, id, TierUniversal)
	if err != nil {
		return fmt.Errorf("promote tier: %w", err)
	}
	return nil
}

// reinforceDelta is the confidence nudge applied on retrieval.
const reinforceDelta = 0.02

// Reinforce records a retrieval: bumps retrieval_count, refreshes
// last_accessed_at, and nudges confidence toward 0.99. The confidence update
// is a relative adjustment so it interleaves safely with decay; a memory
// already at or above 0.99 is left alone rather than pulled down.
func (db *DB) Reinforce(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()

	placeholders := make([]string, len(ids))
	args := []any{now, reinforceDelta}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	_, err := db.Exec(`
		UPDATE memories SET
			retrieval_count  = retrieval_count + 1,
			last_accessed_at = ?,
			confidence = CASE WHEN confidence >= 0.99 THEN confidence
			                  ELSE min(0.99, max(0.0, confidence + ?)) END
		WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("reinforce: %w", err)
	}
	return nil
}

// ApplyDecay multiplies a memory's confidence by rate, flooring at floor,
// and stamps last_decayed_at. Expressed as a relative SQL adjustment so it
// tolerates interleaving with reinforcement from concurrent retrievals.
func (db *DB) ApplyDecay(id string, rate, floor float64) error {
	_, err := db.Exec(`
		UPDATE memories SET confidence = max(?, max(0.0, min(1.0, confidence * ?))),
			last_decayed_at = ?
		WHERE id = ?
	`, floor, rate, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("apply decay: %w", err)
	}
	return nil
}

// SetDecayPolicy updates a memory's decay policy (e.g. to pending_removal).
func (db *DB) SetDecayPolicy(id string, policy DecayPolicy) error {
	_, err := db.Exec(`UPDATE memories SET decay_policy = ? WHERE id = ?`, policy, id)
	if err != nil {
		return fmt.Errorf("set decay policy: %w", err)
	}
	return nil
}

// FlagPromotionCandidate marks an episodic memory as a candidate for
// consolidation into a persistent fact. Flag only; nothing acts on it
// automatically.
func (db *DB) FlagPromotionCandidate(id string) error {
	_, err := db.Exec(`UPDATE memories SET promote_candidate = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("flag promotion candidate: %w", err)
	}
	return nil
}

// ListDecayable returns memories eligible for the decay pass: not protected,
// not policy none, not the never-decaying semantic kind.
func (db *DB) ListDecayable() ([]Memory, error) {
	rows, err := db.Query(`
		SELECT `+memoryCols+` FROM memories
		WHERE protected = 0 AND decay_policy NOT IN (?, ?) AND kind != ?
	`, DecayNone, DecayPendingRemoval, KindSemantic)
	if err != nil {
		return nil, fmt.Errorf("list decayable: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// AccessedAsOf reconstructs which memories had been retrieved at least once
// as of the given time. Audit/debugging surface.
func (db *DB) AccessedAsOf(t time.Time) ([]Memory, error) {
	rows, err := db.Query(`
		SELECT `+memoryCols+` FROM memories
		WHERE last_accessed_at IS NOT NULL AND last_accessed_at <= ?
		ORDER BY last_accessed_at DESC
	`, t.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("accessed as of: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListSummaries returns every memory summary. Used to build the vocabulary
// for the local fallback embedder.
func (db *DB) ListSummaries() ([]string, error) {
	rows, err := db.Query("SELECT summary FROM memories")
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scanMemoryRow scans a single-row query, mapping sql.ErrNoRows to (nil, nil).
func scanMemoryRow(row *sql.Row) (*Memory, error) {
	m, err := scanMemoryFrom(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		m, err := scanMemoryFrom(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

func scanMemoryFrom(scan func(...any) error) (*Memory, error) {
	var m Memory
	var detail, scopeID, communityID sql.NullString
	var protected, promote int
	var lastAccessed, lastDecayed sql.NullInt64
	err := scan(&m.ID, &m.OwnerID, &m.Summary, &detail, &m.Kind, &m.Tier,
		&scopeID, &communityID,
		&m.Confidence, &m.SourceCount, &m.RetrievalCount, &m.DecayPolicy, &protected, &promote,
		&m.CreatedAt, &m.UpdatedAt, &lastAccessed, &lastDecayed)
	if err != nil {
		return nil, err
	}
	m.Detail = detail.String
	m.OriginScopeID = scopeID.String
	m.OriginCommunityID = communityID.String
	m.Protected = protected != 0
	m.PromoteCandidate = promote != 0
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Int64
	}
	if lastDecayed.Valid {
		m.LastDecayedAt = &lastDecayed.Int64
	}
	return &m, nil
}
