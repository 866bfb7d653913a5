package nodes

import (
	"fmt"

	"news_recommend/internal/logger"
	"news_recommend/internal/metrics"
	"news_recommend/internal/ranking"
	"news_recommend/internal/workflow"
)

// CosineRankNode 按与用户向量的余弦相似度对候选排序并截断
type CosineRankNode struct {
	name    string
	opts    ranking.Options
	metrics *metrics.Metrics
}

// NewCosineRankNode 工厂函数
// 配置项 tie_break: "id" (默认) 或 "input_order"
func NewCosineRankNode(cfg workflow.NodeConfig, m *metrics.Metrics) (workflow.Node, error) {
	tb, err := stringOption(cfg, "tie_break", "")
	if err != nil {
		return nil, err
	}
	tieBreak, err := ranking.ParseTieBreak(tb)
	if err != nil {
		return nil, fmt.Errorf("node '%s': %w", cfg.Name, err)
	}

	return &CosineRankNode{
		name:    cfg.Name,
		opts:    ranking.Options{TieBreak: tieBreak},
		metrics: m,
	}, nil
}

func (n *CosineRankNode) Name() string { return n.name }
func (n *CosineRankNode) Type() string { return "rank" }

func (n *CosineRankNode) Execute(ctx *workflow.Context) error {
	user := ctx.UserVector()
	if user == nil {
		return fmt.Errorf("rank (%s): user vector must be produced by an earlier node", n.name)
	}

	candidates := ctx.GetCandidates()
	res := ranking.Rank(user, candidates, ctx.User.InteractionSet(), ctx.Limit, n.opts)

	for _, s := range res.Skipped {
		logger.Warn("user %s: skipping candidate %q with malformed embedding: %v", ctx.UserID, s.ItemID, s.Err)
	}
	n.metrics.AddSkipped("rank", len(res.Skipped))
	ctx.AddSkipped(len(res.Skipped))

	ctx.SetResults(res.Recommendations)
	ctx.AddLog(fmt.Sprintf("Rank (%s) completed. Tie-break: %s, Candidates: %d, Eligible: %d, Result count: %d",
		n.name, n.opts.TieBreak, len(candidates), res.Eligible, len(res.Recommendations)))
	return nil
}
