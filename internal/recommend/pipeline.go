package recommend

import (
	"news_recommend/internal/ranking"
	"news_recommend/internal/store"
	"news_recommend/internal/workflow"
)

// DefaultPipeline is the standard ranking graph: the three independent
// reads run in parallel, then the user vector is composed and the
// candidates are ranked.
func DefaultPipeline() workflow.PipelineConfig {
	return workflow.PipelineConfig{
		Description: "cosine ranking of scorable articles against preferences and reading history",
		TimeoutMs:   15000,
		Nodes: []workflow.NodeConfig{
			{
				Name: "fetch",
				Type: "parallel",
				Nodes: []workflow.NodeConfig{
					{Name: "interactions", Type: "aggregate_interactions"},
					{Name: "preferences", Type: "embed_preferences"},
					{Name: "candidates", Type: "recall_scorable", Config: map[string]interface{}{
						"max_candidates": float64(store.DefaultMaxCandidates),
					}},
				},
			},
			{Name: "user_vector", Type: "compose_user_vector", Config: map[string]interface{}{
				"interaction_weight": ranking.DefaultInteractionWeight,
			}},
			{Name: "rank", Type: "rank_cosine", Config: map[string]interface{}{
				"tie_break": ranking.TieBreakID.String(),
			}},
		},
	}
}

// DefaultPipelines registers DefaultPipeline under DefaultScene.
func DefaultPipelines() workflow.GlobalConfig {
	return workflow.GlobalConfig{
		Pipelines: map[string]workflow.PipelineConfig{
			DefaultScene: DefaultPipeline(),
		},
	}
}
