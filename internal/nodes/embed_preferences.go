package nodes

import (
	"context"
	"fmt"

	"news_recommend/internal/model"
	"news_recommend/internal/vector"
	"news_recommend/internal/workflow"
	"news_recommend/pkg/embedding"
)

// EmbedPreferencesNode 把用户的偏好文本转换为偏好向量
// 注意：provider 由外部注入，不再负责从 config 创建
type EmbedPreferencesNode struct {
	name string
	deps Deps
	dim  int
}

// NewEmbedPreferencesNode 工厂函数
func NewEmbedPreferencesNode(cfg workflow.NodeConfig, deps Deps) (workflow.Node, error) {
	if err := requireDeps(cfg, false, true, deps); err != nil {
		return nil, err
	}
	return &EmbedPreferencesNode{
		name: cfg.Name,
		deps: deps,
		dim:  deps.Provider.Dimensions(),
	}, nil
}

func (n *EmbedPreferencesNode) Name() string { return n.name }
func (n *EmbedPreferencesNode) Type() string { return "embed" }

func (n *EmbedPreferencesNode) Execute(ctx *workflow.Context) error {
	text := ctx.User.PreferenceText()
	if text == "" {
		ctx.SetPreferenceVector(vector.Zero(n.dim))
		ctx.AddLog(fmt.Sprintf("Embed (%s): no preferences, using zero vector", n.name))
		return nil
	}

	var v vector.Vector
	err := retryDo(ctx, n.deps, "provider", embedding.IsRetryable, func(c context.Context) error {
		out, err := n.deps.Provider.Embed(c, text)
		if err != nil {
			return err
		}
		v = out
		return nil
	})
	if err != nil {
		return wrapExternal(ctx, err, func(err error) error {
			return &model.ProviderError{Op: "embed_preferences", Err: err}
		})
	}

	// provider 的输出维度必须和语料一致，否则整个请求无法打分
	if err := vector.Validate(v, n.dim); err != nil {
		return &model.ProviderError{Op: "embed_preferences", Err: fmt.Errorf("%w: %v", embedding.ErrMalformedResponse, err)}
	}

	ctx.SetPreferenceVector(v)
	ctx.AddLog(fmt.Sprintf("Embed (%s): embedded %d chars with %s", n.name, len(text), n.deps.Provider.Model()))
	return nil
}
