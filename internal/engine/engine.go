package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/privacy"
	"github.com/lorekeep/lorekeep/internal/store"
)

// Engine orchestrates turn buffering, memory extraction, hybrid retrieval,
// and decay.
type Engine struct {
	DB       *store.DB
	LLM      llm.Client
	Embedder Embedder

	extractAfter  int
	idleThreshold time.Duration
	decayInterval time.Duration

	stopCh chan struct{}
}

// New creates a new Engine.
func New(db *store.DB, client llm.Client, cfg config.EngineConfig) *Engine {
	def := config.Default().Engine
	if cfg.ExtractAfterTurns <= 0 {
		cfg.ExtractAfterTurns = def.ExtractAfterTurns
	}
	if cfg.IdleExtractMinutes <= 0 {
		cfg.IdleExtractMinutes = def.IdleExtractMinutes
	}
	if cfg.DecayIntervalHours <= 0 {
		cfg.DecayIntervalHours = def.DecayIntervalHours
	}
	return &Engine{
		DB:            db,
		LLM:           client,
		extractAfter:  cfg.ExtractAfterTurns,
		idleThreshold: time.Duration(cfg.IdleExtractMinutes) * time.Minute,
		decayInterval: time.Duration(cfg.DecayIntervalHours) * time.Hour,
		stopCh:        make(chan struct{}),
	}
}

// SetEmbedder configures the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) {
	e.Embedder = emb
}

// TurnInput is one observed conversation message.
type TurnInput struct {
	OwnerID     string
	ScopeID     string
	ScopeKind   privacy.ScopeKind
	CommunityID string
	SpeakerID   string
	Body        string
}

// HandleTurn appends a turn to the owner's buffer for the scope. When the
// buffer reaches the extraction threshold, extraction kicks off in the
// background; the ingest path never waits on the LLM. Returns the session
// and whether extraction was triggered.
func (e *Engine) HandleTurn(in TurnInput) (*store.Session, bool, error) {
	if in.Body == "" {
		return nil, false, fmt.Errorf("handle turn: empty body")
	}
	tier := privacy.TierForScope(in.ScopeKind)

	sess, err := e.DB.TrackTurn(in.OwnerID, in.ScopeID, in.CommunityID, tier, in.SpeakerID, in.Body)
	if err != nil {
		return nil, false, err
	}

	if sess.MessageCount < e.extractAfter {
		return sess, false, nil
	}

	s := *sess
	go func() {
		if n, err := e.ExtractSession(&s); err != nil {
			log.Printf("extraction: session %s: %v", s.ID, err)
		} else if n > 0 {
			log.Printf("extraction: session %s: stored %d memories", s.ID, n)
		}
	}()
	return sess, true, nil
}

// SweepIdleSessions extracts buffers that went quiet without reaching the
// turn threshold. Returns the number of sessions processed.
func (e *Engine) SweepIdleSessions() (int, error) {
	sessions, err := e.DB.ListIdleSessions(time.Now().Add(-e.idleThreshold))
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range sessions {
		if _, err := e.ExtractSession(&sessions[i]); err != nil {
			log.Printf("idle sweep: session %s: %v", sessions[i].ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

// BackfillVectors embeds stored memories that have no vector, typically
// after an embedding outage. Returns the number embedded.
func (e *Engine) BackfillVectors(ctx context.Context, limit int) (int, error) {
	if e.Embedder == nil {
		return 0, nil
	}

	memories, err := e.DB.ListMissingVectors(limit)
	if err != nil {
		return 0, err
	}

	embedded := 0
	for _, m := range memories {
		vec, err := e.Embedder.Embed(ctx, m.Summary, EmbedModeDocument)
		if err != nil {
			log.Printf("backfill: embed %s: %v", m.ID, err)
			continue
		}
		if err := e.DB.SaveVector(m.ID, vec, e.Embedder.Model()); err != nil {
			log.Printf("backfill: save vector %s: %v", m.ID, err)
			continue
		}
		embedded++
	}
	return embedded, nil
}

// Forget deletes a memory on explicit request, leaving a tombstone.
func (e *Engine) Forget(id, reason string) error {
	return e.DB.DeleteMemoryAudited(id, reason)
}

// StartBackground runs the decay pass on startup and then on its interval,
// plus the idle-session extraction sweep.
func (e *Engine) StartBackground() {
	if updated, err := e.RunDecay(time.Now()); err != nil {
		log.Printf("decay error: %v", err)
	} else if updated > 0 {
		log.Printf("decay: updated %d memories", updated)
	}

	go func() {
		decay := time.NewTicker(e.decayInterval)
		sweep := time.NewTicker(e.idleThreshold)
		defer decay.Stop()
		defer sweep.Stop()

		for {
			select {
			case <-decay.C:
				if updated, err := e.RunDecay(time.Now()); err != nil {
					log.Printf("decay error: %v", err)
				} else if updated > 0 {
					log.Printf("decay: updated %d memories", updated)
				}
			case <-sweep.C:
				if n, err := e.SweepIdleSessions(); err != nil {
					log.Printf("idle sweep error: %v", err)
				} else if n > 0 {
					log.Printf("idle sweep: extracted %d sessions", n)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
