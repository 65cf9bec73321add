package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorekeep/lorekeep/internal/engine"
	"github.com/lorekeep/lorekeep/internal/privacy"
	"github.com/lorekeep/lorekeep/internal/store"
)

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID     string `json:"owner_id"`
		ScopeID     string `json:"scope_id"`
		ScopeKind   string `json:"scope_kind"`
		CommunityID string `json:"community_id"`
		SpeakerID   string `json:"speaker_id"`
		Body        string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" || req.ScopeID == "" || req.Body == "" {
		http.Error(w, `{"error":"owner_id, scope_id, and body required"}`, http.StatusBadRequest)
		return
	}

	sess, extracting, err := s.engine.HandleTurn(engine.TurnInput{
		OwnerID:     req.OwnerID,
		ScopeID:     req.ScopeID,
		ScopeKind:   privacy.ScopeKind(req.ScopeKind),
		CommunityID: req.CommunityID,
		SpeakerID:   req.SpeakerID,
		Body:        req.Body,
	})
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if extracting {
		// Extraction runs in the background; the ingest path never waits.
		w.WriteHeader(http.StatusAccepted)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"session_id":    sess.ID,
		"message_count": sess.MessageCount,
		"tier":          sess.Tier,
		"extracting":    extracting,
	})
}

// queryContextFromRequest builds the access context for a retrieval request.
// Either an explicit context kind or a scope_kind may be given; an
// unrecognized value produces a context the filter layer treats as
// fail-closed rather than an error.
func queryContextFromRequest(r *http.Request) store.QueryContext {
	q := r.URL.Query()
	kind := store.ContextKind(q.Get("context"))
	if kind == "" {
		kind = privacy.ContextKindForScope(privacy.ScopeKind(q.Get("scope_kind")))
	}
	return store.QueryContext{
		Kind:        kind,
		OwnerID:     q.Get("owner_id"),
		ScopeID:     q.Get("scope_id"),
		CommunityID: q.Get("community_id"),
	}
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, `{"error":"q parameter required"}`, http.StatusBadRequest)
		return
	}

	qc := queryContextFromRequest(r)
	if err := qc.Validate(); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	results, err := s.engine.Retrieve(ctx, qc, query, limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	type resultJSON struct {
		ID         string  `json:"id"`
		Summary    string  `json:"summary"`
		Detail     string  `json:"detail,omitempty"`
		Kind       string  `json:"kind"`
		Tier       string  `json:"tier"`
		Confidence float64 `json:"confidence"`
		Score      float64 `json:"score"`
		Similarity float64 `json:"similarity,omitempty"`
	}

	out := make([]resultJSON, len(results))
	for i, res := range results {
		out[i] = resultJSON{
			ID:         res.Memory.ID,
			Summary:    res.Memory.Summary,
			Detail:     res.Memory.Detail,
			Kind:       string(res.Memory.Kind),
			Tier:       string(res.Memory.Tier),
			Confidence: res.Memory.Confidence,
			Score:      res.Score,
			Similarity: res.Similarity,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"query":   query,
		"count":   len(out),
		"results": out,
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id parameter required"}`, http.StatusBadRequest)
		return
	}

	memories, err := s.db.ListMemories(ownerID, store.Tier(r.URL.Query().Get("tier")))
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(memories),
		"memories": memoriesJSON(memories),
	})
}

func (s *Server) handleAccessed(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, `{"error":"as_of must be RFC3339"}`, http.StatusBadRequest)
			return
		}
		asOf = t
	}

	memories, err := s.db.AccessedAsOf(asOf)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"as_of":    asOf.Format(time.RFC3339),
		"count":    len(memories),
		"memories": memoriesJSON(memories),
	})
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	m, err := s.db.GetMemory(id)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
		return
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "user request"
	}
	if err := s.engine.Forget(id, reason); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}

func (s *Server) handleTombstones(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		http.Error(w, `{"error":"owner_id parameter required"}`, http.StatusBadRequest)
		return
	}

	tombstones, err := s.db.ListTombstones(ownerID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	type tombJSON struct {
		MemoryID  string `json:"memory_id"`
		Summary   string `json:"summary"`
		Tier      string `json:"tier"`
		Reason    string `json:"reason,omitempty"`
		DeletedAt int64  `json:"deleted_at"`
	}
	out := make([]tombJSON, len(tombstones))
	for i, t := range tombstones {
		out[i] = tombJSON{
			MemoryID:  t.MemoryID,
			Summary:   t.Summary,
			Tier:      string(t.Tier),
			Reason:    t.Reason,
			DeletedAt: t.DeletedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":      len(out),
		"tombstones": out,
	})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	n, err := s.engine.BackfillVectors(ctx, 100)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"embedded": n})
}

// memoryJSON is the inspection-surface shape for a memory row.
type memoryJSON struct {
	ID             string  `json:"id"`
	OwnerID        string  `json:"owner_id"`
	Summary        string  `json:"summary"`
	Detail         string  `json:"detail,omitempty"`
	Kind           string  `json:"kind"`
	Tier           string  `json:"tier"`
	Confidence     float64 `json:"confidence"`
	SourceCount    int     `json:"source_count"`
	RetrievalCount int     `json:"retrieval_count"`
	DecayPolicy    string  `json:"decay_policy"`
	Promote        bool    `json:"promote_candidate,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	LastAccessedAt *int64  `json:"last_accessed_at,omitempty"`
}

func memoriesJSON(memories []store.Memory) []memoryJSON {
	out := make([]memoryJSON, len(memories))
	for i, m := range memories {
		out[i] = memoryJSON{
			ID:             m.ID,
			OwnerID:        m.OwnerID,
			Summary:        m.Summary,
			Detail:         m.Detail,
			Kind:           string(m.Kind),
			Tier:           string(m.Tier),
			Confidence:     m.Confidence,
			SourceCount:    m.SourceCount,
			RetrievalCount: m.RetrievalCount,
			DecayPolicy:    string(m.DecayPolicy),
			Promote:        m.PromoteCandidate,
			CreatedAt:      m.CreatedAt,
			LastAccessedAt: m.LastAccessedAt,
		}
	}
	return out
}
