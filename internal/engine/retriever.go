package engine

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lorekeep/lorekeep/internal/store"
)

// Retrieval tuning.
const (
	rrfK          = 60  // reciprocal rank fusion constant
	candidatePool = 20  // per-channel candidate list size
	vectorFloor   = 0.3 // minimum cosine similarity for the vector channel
	defaultLimit  = 5
)

// RetrievalResult is one fused search result.
type RetrievalResult struct {
	Memory     store.Memory `json:"memory"`
	Score      float64      `json:"score"`
	Similarity float64      `json:"similarity,omitempty"` // vector channel only
}

// vectorHit pairs a memory id with its cosine similarity.
type vectorHit struct {
	memoryID   string
	similarity float64
}

// Retrieve runs the hybrid search: a lexical full-text pass and a vector
// similarity pass, both restricted to the query context's access partition
// before any ranking, fused by reciprocal rank. Retrieved memories are
// reinforced as a side effect.
//
// The two channels run concurrently. If embedding the query fails, results
// degrade to lexical-only rather than erroring out.
func (e *Engine) Retrieve(ctx context.Context, qc store.QueryContext, query string, limit int) ([]RetrievalResult, error) {
	if err := qc.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	var (
		lexical []store.LexicalHit
		vector  []vectorHit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.DB.LexicalSearch(qc, query, candidatePool)
		if err != nil {
			return fmt.Errorf("lexical pass: %w", err)
		}
		lexical = hits
		return nil
	})
	g.Go(func() error {
		hits, err := e.vectorSearch(gctx, qc, query, candidatePool)
		if err != nil {
			// Vector channel is best-effort; lexical recall must survive an
			// embedding outage.
			log.Printf("retrieve: vector pass degraded: %v", err)
			return nil
		}
		vector = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := e.fuse(lexical, vector, limit)
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	if err := e.DB.Reinforce(ids); err != nil {
		log.Printf("retrieve: reinforce: %v", err)
	}
	return results, nil
}

// vectorSearch embeds the query and ranks the context's vectors by cosine
// similarity, dropping anything under the floor.
func (e *Engine) vectorSearch(ctx context.Context, qc store.QueryContext, query string, limit int) ([]vectorHit, error) {
	if e.Embedder == nil {
		return nil, nil
	}

	queryVec, err := e.Embedder.Embed(ctx, query, EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors, err := e.DB.VectorsForContext(qc)
	if err != nil {
		return nil, err
	}

	var hits []vectorHit
	for _, v := range vectors {
		sim := CosineSimilarity(queryVec, v.Embedding)
		if sim >= vectorFloor {
			hits = append(hits, vectorHit{memoryID: v.MemoryID, similarity: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].similarity > hits[j].similarity
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// fuse combines the two candidate lists by reciprocal rank. A memory absent
// from one channel simply contributes no term for it; missing ranks are not
// back-filled.
func (e *Engine) fuse(lexical []store.LexicalHit, vector []vectorHit, limit int) []RetrievalResult {
	byID := make(map[string]*RetrievalResult)

	for _, h := range lexical {
		m := h.Memory
		byID[m.ID] = &RetrievalResult{
			Memory: m,
			Score:  1.0 / float64(rrfK+h.Rank),
		}
	}

	var missing []string
	for rank, h := range vector {
		contribution := 1.0 / float64(rrfK+rank+1)
		if r, ok := byID[h.memoryID]; ok {
			r.Score += contribution
			r.Similarity = h.similarity
			continue
		}
		byID[h.memoryID] = &RetrievalResult{
			Score:      contribution,
			Similarity: h.similarity,
		}
		missing = append(missing, h.memoryID)
	}

	// Vector-only hits carry just an id; hydrate them in one read.
	if len(missing) > 0 {
		memories, err := e.DB.GetMemoriesByIDs(missing)
		if err != nil {
			log.Printf("retrieve: hydrate vector hits: %v", err)
		}
		for _, m := range memories {
			if r, ok := byID[m.ID]; ok {
				r.Memory = m
			}
		}
	}

	results := make([]RetrievalResult, 0, len(byID))
	for _, r := range byID {
		if r.Memory.ID == "" {
			continue // hydration failed for this row
		}
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
