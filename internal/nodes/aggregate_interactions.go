package nodes

import (
	"context"
	"fmt"

	"news_recommend/internal/logger"
	"news_recommend/internal/model"
	"news_recommend/internal/ranking"
	"news_recommend/internal/store"
	"news_recommend/internal/vector"
	"news_recommend/internal/workflow"
)

// AggregateInteractionsNode 把用户交互过的条目向量平均为交互向量
type AggregateInteractionsNode struct {
	name string
	deps Deps
	dim  int
}

// NewAggregateInteractionsNode 工厂函数
func NewAggregateInteractionsNode(cfg workflow.NodeConfig, deps Deps) (workflow.Node, error) {
	if err := requireDeps(cfg, true, true, deps); err != nil {
		return nil, err
	}
	return &AggregateInteractionsNode{
		name: cfg.Name,
		deps: deps,
		dim:  deps.Provider.Dimensions(),
	}, nil
}

func (n *AggregateInteractionsNode) Name() string { return n.name }
func (n *AggregateInteractionsNode) Type() string { return "aggregate" }

func (n *AggregateInteractionsNode) Execute(ctx *workflow.Context) error {
	ids := ctx.User.Interactions
	if len(ctx.User.InteractionSet()) == 0 {
		ctx.SetInteractionVector(vector.Zero(n.dim))
		ctx.AddLog(fmt.Sprintf("Aggregate (%s): no interactions, using zero vector", n.name))
		return nil
	}

	var resolved map[string]*model.Item
	err := retryDo(ctx, n.deps, "store", store.IsRetryable, func(c context.Context) error {
		found, err := n.deps.Store.FetchByID(c, ids)
		if err != nil {
			return err
		}
		resolved = found
		return nil
	})
	if err != nil {
		return wrapExternal(ctx, err, func(err error) error {
			return &model.StoreError{Op: "fetch_by_id", Err: err}
		})
	}

	v, skipped := ranking.Aggregate(ids, resolved, n.dim)
	for _, s := range skipped {
		logger.Warn("user %s: skipping interacted item %s: %v", ctx.UserID, s.ItemID, s.Err)
	}
	n.deps.Metrics.AddSkipped("aggregate", len(skipped))
	ctx.AddSkipped(len(skipped))
	ctx.SetInteractionVector(v)

	ctx.AddLog(fmt.Sprintf("Aggregate (%s): %d interactions, %d resolved, %d skipped",
		n.name, len(ids), len(resolved), len(skipped)))
	return nil
}
