package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/privacy"
	"github.com/lorekeep/lorekeep/internal/store"
)

// mergeThreshold is the cosine similarity above which a new fact is folded
// into an existing memory instead of inserted.
const mergeThreshold = 0.85

// Consolidate stores one validated candidate: assign its tier, look for a
// semantically overlapping memory inside the same (owner, tier) partition,
// and either merge into it or insert a new row. Merge candidates are only
// ever searched within the partition, so consolidation can never move
// content across owners or tiers.
func (e *Engine) Consolidate(ctx context.Context, c privacy.Candidate, detail string, sess *store.Session) (*store.Memory, error) {
	tier := privacy.AssignTier(c, sess.Tier)

	m := &store.Memory{
		OwnerID:           sess.OwnerID,
		Summary:           c.Summary,
		Detail:            detail,
		Kind:              c.Kind,
		Tier:              tier,
		OriginScopeID:     sess.ScopeID,
		OriginCommunityID: sess.CommunityID,
		Confidence:        c.Confidence,
	}
	if c.Kind == store.KindInferred {
		m.DecayPolicy = store.DecayAggressive
	}

	if e.Embedder == nil {
		// No embedder means no merge candidate search; degrade to insert.
		// The summary_norm upsert still collapses exact duplicates.
		if err := e.DB.CreateMemory(m); err != nil {
			return nil, err
		}
		return m, nil
	}

	vec, err := e.Embedder.Embed(ctx, c.Summary, EmbedModeDocument)
	if err != nil {
		// Embedding down: insert without a vector rather than dropping the
		// fact. BackfillVectors picks it up later.
		log.Printf("consolidate: embed failed, inserting without vector: %v", err)
		if err := e.DB.CreateMemory(m); err != nil {
			return nil, err
		}
		return m, nil
	}

	match, sim, err := e.findMergeCandidate(sess.OwnerID, tier, vec)
	if err != nil {
		return nil, err
	}

	if match != nil {
		merged, err := e.mergeWith(ctx, match, c)
		if err != nil {
			log.Printf("consolidate: merge with %s failed, inserting instead: %v", match.ID, err)
		} else {
			log.Printf("consolidate: merged into %s (similarity %.3f)", match.ID, sim)
			return merged, nil
		}
	}

	if err := e.DB.CreateMemory(m); err != nil {
		return nil, err
	}
	if err := e.DB.SaveVector(m.ID, vec, e.Embedder.Model()); err != nil {
		log.Printf("consolidate: save vector for %s: %v", m.ID, err)
	}
	return m, nil
}

// findMergeCandidate scans the (owner, tier) partition for the stored memory
// most similar to the candidate vector, returning it only above the merge
// threshold.
func (e *Engine) findMergeCandidate(ownerID string, tier store.Tier, vec []float32) (*store.Memory, float64, error) {
	vectors, err := e.DB.VectorsForPartition(ownerID, tier)
	if err != nil {
		return nil, 0, fmt.Errorf("load partition vectors: %w", err)
	}
	if len(vectors) == 0 {
		return nil, 0, nil
	}

	bestID := ""
	bestSim := 0.0
	for _, v := range vectors {
		sim := CosineSimilarity(vec, v.Embedding)
		if sim > bestSim && sim >= mergeThreshold {
			bestSim = sim
			bestID = v.MemoryID
		}
	}
	if bestID == "" {
		return nil, 0, nil
	}

	match, err := e.DB.GetMemory(bestID)
	if err != nil {
		return nil, 0, err
	}
	return match, bestSim, nil
}

// mergeWith asks the LLM to consolidate the incoming fact into the existing
// memory, rewrites the row, and re-embeds the merged summary. Any failure is
// returned so the caller can fall back to inserting the fact on its own.
func (e *Engine) mergeWith(ctx context.Context, existing *store.Memory, c privacy.Candidate) (*store.Memory, error) {
	if e.LLM == nil {
		return nil, fmt.Errorf("no llm configured for merge")
	}

	existingText := existing.Summary
	if existing.Detail != "" {
		existingText += "\n" + existing.Detail
	}

	mctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := e.LLM.Complete(mctx, llm.MergePrompt(existingText, c.Summary))
	if err != nil {
		return nil, fmt.Errorf("merge llm: %w", err)
	}
	merged := strings.TrimSpace(resp.Content)
	if merged == "" {
		return nil, fmt.Errorf("merge llm: empty response")
	}

	// The merged statement keeps the higher of the two confidences.
	conf := existing.Confidence
	if c.Confidence > conf {
		conf = c.Confidence
	}
	if err := e.DB.UpdateMemoryContent(existing.ID, merged, existing.Detail, conf); err != nil {
		return nil, err
	}

	if vec, err := e.Embedder.Embed(ctx, merged, EmbedModeDocument); err != nil {
		log.Printf("consolidate: re-embed merged %s: %v", existing.ID, err)
	} else if err := e.DB.SaveVector(existing.ID, vec, e.Embedder.Model()); err != nil {
		log.Printf("consolidate: save merged vector %s: %v", existing.ID, err)
	}

	return e.DB.GetMemory(existing.ID)
}
