// Package privacy maps conversational scopes to visibility tiers and guards
// promotion to the universal tier.
package privacy

import (
	"github.com/lorekeep/lorekeep/internal/store"
)

// ScopeKind describes where a conversation is happening, as reported by the
// chat transport.
type ScopeKind string

const (
	// ScopeDirect is a 1:1 private conversation.
	ScopeDirect ScopeKind = "direct"
	// ScopeGroup is a multi-party private conversation.
	ScopeGroup ScopeKind = "group"
	// ScopeRestricted is a channel with default-deny read access.
	ScopeRestricted ScopeKind = "restricted"
	// ScopeOpen is a channel readable by any community member.
	ScopeOpen ScopeKind = "open"
)

// TierForScope maps a scope kind to the visibility tier memories learned
// there inherit. Unrecognized kinds map to the scoped tier: the most
// restrictive non-private default, so a transport bug can widen nothing.
func TierForScope(kind ScopeKind) store.Tier {
	switch kind {
	case ScopeDirect, ScopeGroup:
		return store.TierPrivate
	case ScopeRestricted:
		return store.TierScoped
	case ScopeOpen:
		return store.TierCommunity
	default:
		return store.TierScoped
	}
}

// ContextKindForScope maps a scope kind to the retrieval context used when a
// query originates there. Unrecognized kinds fall through to an unknown
// context kind, which the filter layer treats as fail-closed.
func ContextKindForScope(kind ScopeKind) store.ContextKind {
	switch kind {
	case ScopeDirect, ScopeGroup:
		return store.ContextPrivate
	case ScopeRestricted:
		return store.ContextScoped
	case ScopeOpen:
		return store.ContextCommunity
	default:
		return store.ContextKind("")
	}
}

// minPromotionConfidence is the confidence floor for universal promotion.
const minPromotionConfidence = 0.9

// Candidate is the slice of an extracted memory the promotion check needs.
type Candidate struct {
	Summary    string
	Kind       store.Kind
	Confidence float64
	// SafeHint is the extraction model's own judgement that the fact is safe
	// everywhere. It is advisory evidence only and never sufficient alone.
	SafeHint bool
}

// AssignTier returns the tier a candidate should be stored at: the universal
// tier when the independent safe-fact check passes, otherwise the tier
// inherited from the originating scope. Tiers are never demoted and a private
// origin is never widened to the community tier.
func AssignTier(c Candidate, origin store.Tier) store.Tier {
	if PromotableToUniversal(c) {
		return store.TierUniversal
	}
	return origin
}

// PromotableToUniversal runs the deterministic safe-fact validation. All of
// the following must hold: the memory is a persistent fact, confidence is at
// or above the floor, the summary trips no sensitive-topic entry, and the
// summary matches the safe-topic lexicon. The extraction model's hint is
// checked first but can only veto, never approve: a fact the model itself
// did not consider globally safe is not examined further.
//
// The check is pure: same candidate, same answer.
func PromotableToUniversal(c Candidate) bool {
	if !c.SafeHint {
		return false
	}
	if c.Kind != store.KindSemantic {
		return false
	}
	if c.Confidence < minPromotionConfidence {
		return false
	}
	if matchesLexicon(c.Summary, sensitiveTopics) {
		return false
	}
	return matchesLexicon(c.Summary, safeTopics)
}
