package nodes

import (
	"fmt"

	"news_recommend/internal/model"
	"news_recommend/internal/workflow"
)

// MetadataFilterNode 只保留某个元数据字段取指定值的候选，例如按 category 划分场景
type MetadataFilterNode struct {
	name   string
	field  string
	values map[string]struct{}
}

// NewMetadataFilterNode 工厂函数
// 配置项：field (如 "category")，values (允许的取值列表)
func NewMetadataFilterNode(cfg workflow.NodeConfig) (workflow.Node, error) {
	field, err := stringOption(cfg, "field", "")
	if err != nil {
		return nil, err
	}
	if field == "" {
		return nil, fmt.Errorf("filter_metadata node '%s' missing 'field'", cfg.Name)
	}
	values, err := stringsOption(cfg, "values")
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("filter_metadata node '%s' missing 'values'", cfg.Name)
	}

	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &MetadataFilterNode{
		name:   cfg.Name,
		field:  field,
		values: set,
	}, nil
}

func (n *MetadataFilterNode) Name() string { return n.name }
func (n *MetadataFilterNode) Type() string { return "filter" }

func (n *MetadataFilterNode) Execute(ctx *workflow.Context) error {
	candidates := ctx.GetCandidates()
	if len(candidates) == 0 {
		return nil
	}

	kept := make([]*model.Item, 0, len(candidates))
	filteredCount := 0
	for _, item := range candidates {
		v, _ := item.MetaData[n.field].(string)
		if _, ok := n.values[v]; ok {
			kept = append(kept, item)
		} else {
			filteredCount++
		}
	}

	ctx.UpdateCandidates(kept)
	ctx.AddLog(fmt.Sprintf("Metadata filter (%s) on '%s' removed %d items, kept %d", n.name, n.field, filteredCount, len(kept)))
	return nil
}
