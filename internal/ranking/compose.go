package ranking

import (
	"fmt"

	"news_recommend/internal/vector"
)

// DefaultInteractionWeight splits the user vector evenly between behaviour
// and stated preferences.
const DefaultInteractionWeight = 0.5

// Composer merges the behavioural vector and the preference vector into the
// user interest vector.
type Composer interface {
	Compose(interaction, preference vector.Vector) (vector.Vector, error)
}

// WeightedComposer computes w*interaction + (1-w)*preference.
type WeightedComposer struct {
	InteractionWeight float64
}

// NewWeightedComposer validates that the weight lies in [0, 1].
func NewWeightedComposer(interactionWeight float64) (*WeightedComposer, error) {
	if interactionWeight < 0 || interactionWeight > 1 {
		return nil, fmt.Errorf("interaction_weight must be within [0,1], got %v", interactionWeight)
	}
	return &WeightedComposer{InteractionWeight: interactionWeight}, nil
}

// PreferenceWeight is always 1 - InteractionWeight.
func (c *WeightedComposer) PreferenceWeight() float64 {
	return 1 - c.InteractionWeight
}

func (c *WeightedComposer) Compose(interaction, preference vector.Vector) (vector.Vector, error) {
	return vector.WeightedSum(interaction, c.InteractionWeight, preference, c.PreferenceWeight())
}
