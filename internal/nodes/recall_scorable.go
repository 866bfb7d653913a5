package nodes

import (
	"context"
	"fmt"

	"news_recommend/internal/model"
	"news_recommend/internal/store"
	"news_recommend/internal/workflow"
)

// RecallScorableNode 从候选存储中召回可打分的条目
type RecallScorableNode struct {
	name          string
	deps          Deps
	maxCandidates int
}

// NewRecallScorableNode 工厂函数
// 配置项 max_candidates 限制单次召回的数量，默认 500
func NewRecallScorableNode(cfg workflow.NodeConfig, deps Deps) (workflow.Node, error) {
	if err := requireDeps(cfg, true, false, deps); err != nil {
		return nil, err
	}
	maxCandidates, err := intOption(cfg, "max_candidates", store.DefaultMaxCandidates)
	if err != nil {
		return nil, err
	}
	if maxCandidates <= 0 {
		return nil, fmt.Errorf("node '%s': max_candidates must be positive", cfg.Name)
	}

	return &RecallScorableNode{
		name:          cfg.Name,
		deps:          deps,
		maxCandidates: maxCandidates,
	}, nil
}

func (n *RecallScorableNode) Name() string { return n.name }
func (n *RecallScorableNode) Type() string { return "recall" }

func (n *RecallScorableNode) Execute(ctx *workflow.Context) error {
	var items []*model.Item
	err := retryDo(ctx, n.deps, "store", store.IsRetryable, func(c context.Context) error {
		found, err := n.deps.Store.FetchScorable(c, n.maxCandidates)
		if err != nil {
			return err
		}
		items = found
		return nil
	})
	if err != nil {
		return wrapExternal(ctx, err, func(err error) error {
			return &model.StoreError{Op: "fetch_scorable", Err: err}
		})
	}

	ctx.UpdateCandidates(items)
	n.deps.Metrics.ObserveCandidates(len(items))
	ctx.AddLog(fmt.Sprintf("Recall (%s) returned %d items", n.name, len(items)))
	return nil
}
