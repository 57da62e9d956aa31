package queststore

import (
	"context"

	"github.com/sahilm/fuzzy"

	"questline/questtree"
)

// questSource implements fuzzy.Source over a flattened forest.
type questSource []*questtree.Quest

func (qs questSource) String(i int) string {
	return qs[i].Title
}

func (qs questSource) Len() int {
	return len(qs)
}

// SearchQuests fuzzy-matches quest titles across one storyline, at any
// depth, ordered by match relevance.
func (s *Store) SearchQuests(ctx context.Context, storylineID int64, query string) ([]*questtree.Quest, error) {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return nil, err
	}

	var flat questSource
	questtree.Walk(forest, func(q *questtree.Quest) bool {
		flat = append(flat, q)
		return true
	})

	matches := fuzzy.FindFrom(query, flat)
	out := make([]*questtree.Quest, 0, len(matches))
	for _, m := range matches {
		out = append(out, flat[m.Index])
	}
	return out, nil
}
