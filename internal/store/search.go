package store

import (
	"context"

	"github.com/nook-dev/nook/internal/apperrors"
)

// LexicalResult is one row returned by SearchLexical, already ordered by
// rank (lower is better, matching FTS5's negated bm25() convention).
type LexicalResult struct {
	Path    string
	Content string
	Source  string
	Rank    float64
}

// SearchLexical runs matchExpression against the FTS5 search_index table
// and returns up to limit results ordered by bm25 rank ascending (best
// first). matchExpression is passed through to FTS5 verbatim; callers
// must quote any user input that could contain FTS metacharacters.
func (s *Store) SearchLexical(ctx context.Context, matchExpression string, limit int) ([]LexicalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
SELECT path, content, source, bm25(search_index) AS rank
FROM search_index
WHERE search_index MATCH ?
ORDER BY rank ASC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, matchExpression, limit)
	if err != nil {
		return nil, apperrors.New(apperrors.StoreError, "store", "search_lexical failed", err)
	}
	defer func() { _ = rows.Close() }()

	var out []LexicalResult
	for rows.Next() {
		var r LexicalResult
		if err := rows.Scan(&r.Path, &r.Content, &r.Source, &r.Rank); err != nil {
			return nil, apperrors.New(apperrors.StoreError, "store", "search_lexical scan failed", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
