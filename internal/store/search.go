package store

import (
	"fmt"
	"strings"
)

// LexicalHit is one row of the lexical candidate list, best match first.
type LexicalHit struct {
	Memory Memory
	Rank   int // 1-based position in the lexical list
}

// matchExpr builds a safe FTS5 MATCH expression from free text: each token is
// double-quoted (so usernames, coordinates, and punctuation-adjacent terms
// never parse as FTS operators) and tokens are OR-ed.
func matchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// LexicalSearch runs a full-text match over summary + detail, restricted to
// the access partition BEFORE ranking, ordered by FTS5 relevance rank.
// Memories without embeddings are first-class citizens here; this is their
// only retrieval path.
func (db *DB) LexicalSearch(qc QueryContext, query string, limit int) ([]LexicalHit, error) {
	expr := matchExpr(query)
	if expr == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	where, args := qc.Predicate()
	args = append([]any{expr}, args...)
	args = append(args, limit)

	rows, err := db.Query(`
		SELECT `+prefixCols("m")+`
		FROM memory_fts f
		JOIN memories m ON m.rowid = f.rowid
		WHERE memory_fts MATCH ? AND `+where+`
		ORDER BY f.rank
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	memories, err := scanMemories(rows)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]LexicalHit, len(memories))
	for i, m := range memories {
		hits[i] = LexicalHit{Memory: m, Rank: i + 1}
	}
	return hits, nil
}

// prefixCols qualifies the shared memory column list with a table alias.
func prefixCols(alias string) string {
	cols := strings.Split(memoryCols, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
