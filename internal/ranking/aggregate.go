// Package ranking implements the pure parts of the recommendation engine:
// reducing interaction history to a vector, composing the user interest
// vector and scoring candidates by cosine similarity.
//
// Nothing here performs I/O; the workflow nodes in internal/nodes feed these
// functions with data fetched from the embedding provider and the store.
package ranking

import (
	"sort"

	"news_recommend/internal/model"
	"news_recommend/internal/vector"
)

// Skipped records an input that was dropped because its embedding was
// missing or malformed.
type Skipped struct {
	ItemID string
	Err    error
}

// Aggregate averages the embeddings of the interacted items found in
// resolved. Ids that are absent or whose embedding does not have exactly
// dim finite components are skipped. When nothing resolves the zero vector
// of dim is returned.
func Aggregate(ids []string, resolved map[string]*model.Item, dim int) (vector.Vector, []Skipped) {
	// summation order is fixed so repeated calls are bit-identical
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var (
		vs      []vector.Vector
		skipped []Skipped
		seen    = make(map[string]struct{}, len(sorted))
	)
	for _, id := range sorted {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		item, ok := resolved[id]
		if !ok || item == nil {
			// missing ids are expected (deleted articles) and not worth a warning
			continue
		}
		if err := vector.Validate(item.Embedding, dim); err != nil {
			skipped = append(skipped, Skipped{ItemID: id, Err: err})
			continue
		}
		vs = append(vs, item.Embedding)
	}

	mean, err := vector.Mean(vs, dim)
	if err != nil {
		// unreachable: every vector was validated against dim
		return vector.Zero(dim), skipped
	}
	return mean, skipped
}
