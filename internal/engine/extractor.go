package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/privacy"
	"github.com/lorekeep/lorekeep/internal/store"
)

// Extraction guards.
const (
	minOwnerTurns    = 3   // skip buffers where the owner barely spoke
	minBufferChars   = 100 // skip trivially short buffers
	maxCandidates    = 10  // hard cap per extraction pass
	extractionWindow = 120 * time.Second
)

// candidate is the JSON structure returned by the extraction LLM.
type candidate struct {
	Summary      string  `json:"summary"`
	Detail       string  `json:"detail"`
	Kind         string  `json:"kind"`
	Confidence   float64 `json:"confidence"`
	GloballySafe bool    `json:"globally_safe"`
}

// ExtractSession runs the full extraction pipeline over one session buffer:
// render the turns, call the LLM for explicit facts and implicit
// observations, consolidate each candidate, then clear the buffer. Designed
// to be called asynchronously; returns the number of memories stored.
func (e *Engine) ExtractSession(sess *store.Session) (int, error) {
	if e.LLM == nil {
		return 0, fmt.Errorf("LLM not configured")
	}

	turns, err := e.DB.GetTurns(sess.ID)
	if err != nil {
		return 0, fmt.Errorf("load buffer: %w", err)
	}

	transcript, ownerTurns := renderBuffer(turns, sess.OwnerID)
	if ownerTurns < minOwnerTurns {
		log.Printf("extraction: skipping %s: fewer than %d owner turns", sess.ID, minOwnerTurns)
		return 0, e.DB.ClearSession(sess.ID)
	}
	if len(transcript) < minBufferChars {
		log.Printf("extraction: skipping %s: buffer too short (%d chars)", sess.ID, len(transcript))
		return 0, e.DB.ClearSession(sess.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), extractionWindow)
	defer cancel()

	candidates := e.runExtractionPass(ctx, sess.ID, llm.ExtractionPrompt(transcript))
	candidates = append(candidates, e.runExtractionPass(ctx, sess.ID, llm.ObservationPrompt(transcript))...)

	if len(candidates) > maxCandidates {
		log.Printf("extraction: capping %d candidates to %d for %s", len(candidates), maxCandidates, sess.ID)
		candidates = candidates[:maxCandidates]
	}

	stored := 0
	for _, c := range candidates {
		vc, err := validateCandidate(c)
		if err != nil {
			log.Printf("extraction: rejecting candidate %q: %v", c.Summary, err)
			continue
		}

		m, err := e.Consolidate(ctx, vc, strings.TrimSpace(c.Detail), sess)
		if err != nil {
			log.Printf("extraction: store candidate %q: %v", vc.Summary, err)
			continue
		}
		log.Printf("extraction: stored %s [%s/%s]", m.ID, m.Kind, m.Tier)
		stored++
	}

	if err := e.DB.ClearSession(sess.ID); err != nil {
		return stored, fmt.Errorf("clear buffer: %w", err)
	}
	return stored, nil
}

// runExtractionPass sends one prompt and parses the candidate array. LLM or
// parse failures produce an empty candidate list, never an aborted buffer.
func (e *Engine) runExtractionPass(ctx context.Context, sessionID, prompt string) []candidate {
	resp, err := e.LLM.Complete(ctx, prompt)
	if err != nil {
		log.Printf("extraction: llm pass failed for %s: %v", sessionID, err)
		return nil
	}
	candidates, err := parseCandidates(resp.Content)
	if err != nil {
		log.Printf("extraction: unparseable response for %s: %v", sessionID, err)
		return nil
	}
	return candidates
}

// renderBuffer formats buffered turns into a transcript for the prompt,
// labeling the buffer owner distinctly from other speakers. Returns the
// transcript and the owner's turn count.
func renderBuffer(turns []store.Turn, ownerID string) (string, int) {
	var b strings.Builder
	ownerTurns := 0
	for _, t := range turns {
		label := "other"
		if t.SpeakerID == ownerID {
			label = "user"
			ownerTurns++
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.TrimSpace(t.Body))
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), ownerTurns
}

// validateCandidate checks a raw candidate for obvious garbage and converts
// it into the classifier's shape.
func validateCandidate(c candidate) (privacy.Candidate, error) {
	summary := strings.TrimSpace(c.Summary)
	if summary == "" {
		return privacy.Candidate{}, fmt.Errorf("empty summary")
	}
	kind := store.Kind(strings.ToLower(strings.TrimSpace(c.Kind)))
	if !kind.Valid() {
		return privacy.Candidate{}, fmt.Errorf("invalid kind %q", c.Kind)
	}
	if c.Confidence <= 0 {
		return privacy.Candidate{}, fmt.Errorf("non-positive confidence %.2f", c.Confidence)
	}
	conf := c.Confidence
	if conf > 1 {
		conf = 1
	}
	return privacy.Candidate{
		Summary:    summary,
		Kind:       kind,
		Confidence: conf,
		SafeHint:   c.GloballySafe,
	}, nil
}

// parseCandidates extracts a JSON array from the LLM response. The response
// might contain markdown code fences or other wrapper text.
func parseCandidates(content string) ([]candidate, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var candidates []candidate
	if err := json.Unmarshal([]byte(content[start:end+1]), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	return candidates, nil
}
