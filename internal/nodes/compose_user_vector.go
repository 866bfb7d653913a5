package nodes

import (
	"fmt"

	"news_recommend/internal/ranking"
	"news_recommend/internal/workflow"
)

// ComposeUserVectorNode 按权重混合交互向量与偏好向量
type ComposeUserVectorNode struct {
	name     string
	composer ranking.Composer
}

// NewComposeUserVectorNode 工厂函数
// 配置项 interaction_weight 取值 [0,1]，默认 0.5
func NewComposeUserVectorNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	w, err := floatOption(cfg, "interaction_weight", ranking.DefaultInteractionWeight)
	if err != nil {
		return nil, err
	}
	composer, err := ranking.NewWeightedComposer(w)
	if err != nil {
		return nil, fmt.Errorf("node '%s': %w", cfg.Name, err)
	}
	return NewComposeNodeWith(cfg.Name, composer), nil
}

// NewComposeNodeWith 使用自定义的合成策略
func NewComposeNodeWith(name string, composer ranking.Composer) *ComposeUserVectorNode {
	return &ComposeUserVectorNode{name: name, composer: composer}
}

func (n *ComposeUserVectorNode) Name() string { return n.name }
func (n *ComposeUserVectorNode) Type() string { return "compose" }

func (n *ComposeUserVectorNode) Execute(ctx *workflow.Context) error {
	interaction := ctx.InteractionVector()
	preference := ctx.PreferenceVector()
	if interaction == nil || preference == nil {
		return fmt.Errorf("compose (%s): interaction and preference vectors must be produced by earlier nodes", n.name)
	}

	user, err := n.composer.Compose(interaction, preference)
	if err != nil {
		return fmt.Errorf("compose (%s): %w", n.name, err)
	}

	ctx.SetUserVector(user)
	ctx.AddLog(fmt.Sprintf("Compose (%s) built user vector of dimension %d", n.name, len(user)))
	return nil
}
