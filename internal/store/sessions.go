package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is the accumulating conversation buffer for one (owner, scope)
// pair. It carries the scope's visibility tier captured at session start, a
// running message count, and the last extraction time. Sessions are created
// on the first turn in a scope, cleared after extraction, and never kept
// long-term.
type Session struct {
	ID              string
	OwnerID         string
	ScopeID         string
	CommunityID     string
	Tier            Tier
	MessageCount    int
	StartedAt       int64
	LastTurnAt      int64
	LastExtractedAt *int64
}

// Turn is one buffered message inside a session.
type Turn struct {
	ID        int64
	SessionID string
	SpeakerID string
	Body      string
	CreatedAt int64
}

// TrackTurn appends a turn to the (owner, scope) buffer, creating the session
// if needed. The tier is captured on creation and not revisited for the life
// of the buffer. Returns the updated session.
func (db *DB) TrackTurn(ownerID, scopeID, communityID string, tier Tier, speakerID, body string) (*Session, error) {
	if ownerID == "" || scopeID == "" {
		return nil, fmt.Errorf("track turn: owner and scope ids required")
	}
	now := time.Now().UnixMilli()

	sess, err := db.GetSession(ownerID, scopeID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &Session{
			ID:          db.NewID(),
			OwnerID:     ownerID,
			ScopeID:     scopeID,
			CommunityID: communityID,
			Tier:        tier,
			StartedAt:   now,
		}
		_, err = db.Exec(`
			INSERT INTO sessions (id, owner_id, scope_id, community_id, tier, message_count, started_at, last_turn_at)
			VALUES (?, ?, ?, NULLIF(?, ''), ?, 0, ?, ?)
			ON CONFLICT(owner_id, scope_id) DO NOTHING
		`, sess.ID, ownerID, scopeID, communityID, tier, now, now)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		// A concurrent first-turn may have won the insert; re-read.
		sess, err = db.GetSession(ownerID, scopeID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, fmt.Errorf("create session: row missing after insert")
		}
	}

	if speakerID == "" {
		speakerID = ownerID
	}
	_, err = db.Exec(`
		INSERT INTO session_turns (session_id, speaker_id, body, created_at)
		VALUES (?, ?, ?, ?)
	`, sess.ID, speakerID, body, now)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	_, err = db.Exec(`
		UPDATE sessions SET message_count = message_count + 1, last_turn_at = ? WHERE id = ?
	`, now, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("bump session: %w", err)
	}

	sess.MessageCount++
	sess.LastTurnAt = now
	return sess, nil
}

// GetSession returns the buffer for an (owner, scope) pair, or nil.
func (db *DB) GetSession(ownerID, scopeID string) (*Session, error) {
	var s Session
	var communityID sql.NullString
	var lastExtracted sql.NullInt64
	err := db.QueryRow(`
		SELECT id, owner_id, scope_id, community_id, tier, message_count, started_at, last_turn_at, last_extracted_at
		FROM sessions WHERE owner_id = ? AND scope_id = ?
	`, ownerID, scopeID).Scan(&s.ID, &s.OwnerID, &s.ScopeID, &communityID, &s.Tier,
		&s.MessageCount, &s.StartedAt, &s.LastTurnAt, &lastExtracted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.CommunityID = communityID.String
	if lastExtracted.Valid {
		s.LastExtractedAt = &lastExtracted.Int64
	}
	return &s, nil
}

// GetTurns returns a session's buffered turns in arrival order.
func (db *DB) GetTurns(sessionID string) ([]Turn, error) {
	rows, err := db.Query(`
		SELECT id, session_id, speaker_id, body, created_at
		FROM session_turns WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.SpeakerID, &t.Body, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearSession drops a session's buffered turns and resets the message count
// after extraction, stamping last_extracted_at.
func (db *DB) ClearSession(sessionID string) error {
	now := time.Now().UnixMilli()
	if _, err := db.Exec(`DELETE FROM session_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	_, err := db.Exec(`
		UPDATE sessions SET message_count = 0, last_extracted_at = ? WHERE id = ?
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// ListIdleSessions returns non-empty buffers whose last turn is older than
// the cutoff, for the inactivity extraction sweep.
func (db *DB) ListIdleSessions(cutoff time.Time) ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, owner_id, scope_id, community_id, tier, message_count, started_at, last_turn_at, last_extracted_at
		FROM sessions WHERE message_count > 0 AND last_turn_at < ?
	`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var communityID sql.NullString
		var lastExtracted sql.NullInt64
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.ScopeID, &communityID, &s.Tier,
			&s.MessageCount, &s.StartedAt, &s.LastTurnAt, &lastExtracted); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.CommunityID = communityID.String
		if lastExtracted.Valid {
			s.LastExtractedAt = &lastExtracted.Int64
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
