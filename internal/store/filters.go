package store

import "fmt"

// ContextKind identifies the visibility of the conversation a query is made
// from. The closed set of kinds maps one-to-one onto fixed predicate
// builders, so the compiler (and the default arm) keep the filter exhaustive
// and fail-closed.
type ContextKind string

const (
	// ContextPrivate is a direct or multi-party private conversation.
	ContextPrivate ContextKind = "private"
	// ContextScoped is an access-restricted channel.
	ContextScoped ContextKind = "scoped"
	// ContextCommunity is an openly-readable channel inside a community.
	ContextCommunity ContextKind = "community"
)

// QueryContext describes who is asking and from where. The access filter is
// derived from it before any ranking happens.
type QueryContext struct {
	Kind        ContextKind
	OwnerID     string
	ScopeID     string
	CommunityID string
}

// Predicate returns the SQL access filter for this context as a WHERE
// fragment over the memories table (aliased m) plus its arguments.
//
// Cross-owner reads are possible only for community-tier memories in a
// community context. An unrecognized context kind falls back to the most
// restrictive filter (the caller's universal memories only) rather than
// erroring into a permissive path.
func (qc QueryContext) Predicate() (string, []any) {
	switch qc.Kind {
	case ContextPrivate:
		// The caller is the only possible viewer in a private conversation,
		// so all of their own memories are eligible regardless of tier.
		return `m.owner_id = ?`, []any{qc.OwnerID}

	case ContextScoped:
		return `(
			(m.owner_id = ? AND m.tier = ?)
			OR (m.owner_id = ? AND m.tier = ? AND m.origin_community_id = ?)
			OR (m.owner_id = ? AND m.tier = ? AND m.origin_scope_id = ?)
		)`, []any{
				qc.OwnerID, TierUniversal,
				qc.OwnerID, TierCommunity, qc.CommunityID,
				qc.OwnerID, TierScoped, qc.ScopeID,
			}

	case ContextCommunity:
		return `(
			(m.owner_id = ? AND m.tier = ?)
			OR (m.tier = ? AND m.origin_community_id = ?)
		)`, []any{
				qc.OwnerID, TierUniversal,
				TierCommunity, qc.CommunityID,
			}

	default:
		// Fail closed.
		return `(m.owner_id = ? AND m.tier = ?)`, []any{qc.OwnerID, TierUniversal}
	}
}

// Validate checks that the context carries the identifiers its kind needs.
func (qc QueryContext) Validate() error {
	if qc.OwnerID == "" {
		return fmt.Errorf("query context: owner id required")
	}
	switch qc.Kind {
	case ContextPrivate:
		return nil
	case ContextScoped:
		if qc.ScopeID == "" {
			return fmt.Errorf("query context: scope id required for scoped context")
		}
		return nil
	case ContextCommunity:
		if qc.CommunityID == "" {
			return fmt.Errorf("query context: community id required for community context")
		}
		return nil
	default:
		return fmt.Errorf("query context: unknown kind %q", qc.Kind)
	}
}
