package ranking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"news_recommend/internal/model"
	"news_recommend/internal/vector"
)

// TieBreak decides the order of candidates with equal similarity.
type TieBreak int

const (
	// TieBreakID orders equal scores by ascending item id.
	TieBreakID TieBreak = iota
	// TieBreakInputOrder keeps the order in which the store returned the candidates.
	TieBreakInputOrder
)

func (t TieBreak) String() string {
	switch t {
	case TieBreakInputOrder:
		return "input_order"
	default:
		return "id"
	}
}

// ParseTieBreak accepts "id" (or "") and "input_order".
func ParseTieBreak(s string) (TieBreak, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return TieBreakID, nil
	case "input_order":
		return TieBreakInputOrder, nil
	}
	return TieBreakID, fmt.Errorf("unknown tie_break %q", s)
}

var errNilCandidate = errors.New("nil candidate")

// Options tunes Rank.
type Options struct {
	TieBreak TieBreak
}

// Result is the outcome of one ranking pass.
type Result struct {
	Recommendations []model.Recommendation
	// Eligible counts candidates that survived exclusion and validation.
	Eligible int
	Skipped  []Skipped
}

type scored struct {
	item *model.Item
	sim  float64
}

// Rank scores candidates against user, drops excluded ids and malformed
// embeddings, sorts by similarity descending and keeps the first limit
// entries. Returned items carry no embedding.
func Rank(user vector.Vector, candidates []*model.Item, exclude map[string]struct{}, limit int, opts Options) Result {
	var res Result
	pool := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		if c == nil {
			res.Skipped = append(res.Skipped, Skipped{Err: errNilCandidate})
			continue
		}
		if _, ok := exclude[c.ID]; ok {
			continue
		}
		if err := vector.Validate(c.Embedding, len(user)); err != nil {
			res.Skipped = append(res.Skipped, Skipped{ItemID: c.ID, Err: err})
			continue
		}
		sim, err := vector.Cosine(user, c.Embedding)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{ItemID: c.ID, Err: err})
			continue
		}
		pool = append(pool, scored{item: c, sim: sim})
	}
	res.Eligible = len(pool)

	slices.SortStableFunc(pool, func(a, b scored) int {
		switch {
		case a.sim > b.sim:
			return -1
		case a.sim < b.sim:
			return 1
		}
		if opts.TieBreak == TieBreakID {
			return strings.Compare(a.item.ID, b.item.ID)
		}
		return 0
	})

	if limit < 0 {
		limit = 0
	}
	if len(pool) > limit {
		pool = pool[:limit]
	}

	res.Recommendations = make([]model.Recommendation, len(pool))
	for i, s := range pool {
		res.Recommendations[i] = model.Recommendation{
			Item:       s.item.WithoutEmbedding(),
			Similarity: s.sim,
		}
	}
	return res
}
