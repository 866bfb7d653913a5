// Package nodes 实现推荐流程中的各个工作流节点
package nodes

import (
	"context"
	"fmt"
	"time"

	"news_recommend/internal/metrics"
	"news_recommend/internal/retry"
	"news_recommend/internal/store"
	"news_recommend/internal/workflow"
	"news_recommend/pkg/embedding"
)

// Deps 节点依赖的外部协作者，由 Register 通过闭包注入
type Deps struct {
	Store    store.Store
	Provider embedding.Provider
	Retry    retry.Config
	Metrics  *metrics.Metrics
}

// Register 注册所有可用的节点类型
func Register(registry *workflow.Registry, deps Deps) {
	add := func(nodeType string, factory workflow.NodeFactory) {
		registry.Register(nodeType, func(cfg workflow.NodeConfig) (workflow.Node, error) {
			node, err := factory(cfg)
			if err != nil {
				return nil, err
			}
			return &instrumented{Node: node, metrics: deps.Metrics}, nil
		})
	}

	add("aggregate_interactions", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		return NewAggregateInteractionsNode(cfg, deps)
	})
	add("embed_preferences", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		return NewEmbedPreferencesNode(cfg, deps)
	})
	add("recall_scorable", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		return NewRecallScorableNode(cfg, deps)
	})
	add("filter_metadata", NewMetadataFilterNode)
	add("compose_user_vector", NewComposeUserVectorNode)
	add("rank_cosine", func(cfg workflow.NodeConfig) (workflow.Node, error) {
		return NewCosineRankNode(cfg, deps.Metrics)
	})
}

// instrumented 记录节点耗时
type instrumented struct {
	workflow.Node
	metrics *metrics.Metrics
}

func (n *instrumented) Execute(ctx *workflow.Context) error {
	start := time.Now()
	err := n.Node.Execute(ctx)
	n.metrics.ObserveNode(n.Name(), n.Type(), time.Since(start))
	return err
}

// retryDo 带重试地调用外部协作者，重试时记录日志和指标
func retryDo(ctx *workflow.Context, deps Deps, target string, retryable func(error) bool, fn func(context.Context) error) error {
	cfg := deps.Retry
	cfg.OnRetry = func(err error, wait time.Duration) {
		deps.Metrics.IncRetry(target)
		ctx.AddLog(fmt.Sprintf("Retrying %s in %v after: %v", target, wait, err))
	}
	return retry.Do(ctx.Ctx, cfg, retryable, fn)
}

func requireDeps(cfg workflow.NodeConfig, needStore, needProvider bool, deps Deps) error {
	if needStore && deps.Store == nil {
		return fmt.Errorf("node '%s' (%s) requires a store", cfg.Name, cfg.Type)
	}
	if needProvider && deps.Provider == nil {
		return fmt.Errorf("node '%s' (%s) requires an embedding provider", cfg.Name, cfg.Type)
	}
	return nil
}
