package engine

import (
	"log"
	"math"
	"time"

	"github.com/lorekeep/lorekeep/internal/store"
)

// Decay tuning. A memory becomes dormant after 30 days without retrieval and
// then loses confidence once per elapsed dormant interval. The retention rate
// scales with how often the memory has ever been retrieved: rarely-used
// memories fade near the base rate, heavily-used ones barely move. Confidence
// never drops below the floor, and semantic memories never decay at all.
const (
	dormantInterval = 30 * 24 * time.Hour
	baseRetention   = 0.80
	maxRetention    = 0.98
	retentionRamp   = 10 // retrievals to reach max retention
	confidenceFloor = 0.10

	// Long-dormant near-floor memories get flagged for removal review
	// instead of lingering forever.
	removalDormancy   = 120 * 24 * time.Hour
	removalConfidence = 0.15

	// Episodic memories retrieved this often are flagged as candidates for
	// consolidation into a persistent fact.
	promotionRetrievals = 10

	// The aggressive policy decays from a lower base.
	aggressivePenalty = 0.10
)

// retentionRate returns the per-interval confidence multiplier for a memory.
func retentionRate(m store.Memory) float64 {
	usage := float64(m.RetrievalCount) / retentionRamp
	if usage > 1 {
		usage = 1
	}
	rate := baseRetention + (maxRetention-baseRetention)*usage
	if m.DecayPolicy == store.DecayAggressive {
		rate -= aggressivePenalty
	}
	return rate
}

// RunDecay applies one decay pass over every decayable memory, as of now.
// Returns the number of memories whose confidence changed. Per-memory errors
// are logged and skipped so one bad row never stalls the pass.
func (e *Engine) RunDecay(now time.Time) (int, error) {
	memories, err := e.DB.ListDecayable()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, m := range memories {
		dormancy := dormancySince(m, now)
		if dormancy < dormantInterval {
			continue
		}

		// Apply only the intervals not already covered by a previous pass,
		// so daily passes don't compound a single dormant interval.
		intervals := int(dormancy/dormantInterval) - appliedIntervals(m)
		if intervals <= 0 {
			continue
		}
		rate := retentionRate(m)
		effective := math.Pow(rate, float64(intervals))

		if err := e.DB.ApplyDecay(m.ID, effective, confidenceFloor); err != nil {
			log.Printf("decay: %s: %v", m.ID, err)
			continue
		}
		updated++

		projected := m.Confidence * effective
		if projected < confidenceFloor {
			projected = confidenceFloor
		}
		if dormancy > removalDormancy && projected < removalConfidence {
			if err := e.DB.SetDecayPolicy(m.ID, store.DecayPendingRemoval); err != nil {
				log.Printf("decay: flag removal %s: %v", m.ID, err)
			}
		}
		if m.Kind == store.KindEpisodic && m.RetrievalCount >= promotionRetrievals && !m.PromoteCandidate {
			if err := e.DB.FlagPromotionCandidate(m.ID); err != nil {
				log.Printf("decay: flag promotion %s: %v", m.ID, err)
			}
		}
	}
	return updated, nil
}

// dormancySince measures how long a memory has gone without retrieval,
// falling back to its last update for never-retrieved memories.
func dormancySince(m store.Memory, now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(dormancyRef(m)))
}

func dormancyRef(m store.Memory) int64 {
	ref := m.UpdatedAt
	if m.LastAccessedAt != nil && *m.LastAccessedAt > ref {
		ref = *m.LastAccessedAt
	}
	return ref
}

// appliedIntervals counts the dormant intervals a previous decay pass has
// already accounted for.
func appliedIntervals(m store.Memory) int {
	if m.LastDecayedAt == nil || *m.LastDecayedAt <= dormancyRef(m) {
		return 0
	}
	elapsed := time.Duration(*m.LastDecayedAt-dormancyRef(m)) * time.Millisecond
	return int(elapsed / dormantInterval)
}
