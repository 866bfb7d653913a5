package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// PipelineConfig 单个 Pipeline 的配置
type PipelineConfig struct {
	Description string       `json:"description"`
	TimeoutMs   int          `json:"timeout_ms"`
	Nodes       []NodeConfig `json:"nodes"`
}

// NodeConfig 节点的配置片段
type NodeConfig struct {
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
	Nodes  []NodeConfig           `json:"nodes,omitempty"` // 用于组合节点 (如 parallel)
}

// GlobalConfig 整个配置文件的结构
type GlobalConfig struct {
	Pipelines map[string]PipelineConfig `json:"pipelines"`
}

// NodeFactory 创建 Node 的函数签名
type NodeFactory func(config NodeConfig) (Node, error)

// Registry 节点注册表
type Registry struct {
	factories map[string]NodeFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]NodeFactory),
	}
}

// Register 注册一个新的节点类型
func (r *Registry) Register(nodeType string, factory NodeFactory) {
	r.factories[nodeType] = factory
}

// CreateNode 根据配置创建节点实例
func (r *Registry) CreateNode(cfg NodeConfig) (Node, error) {
	// 特殊处理 parallel 节点，因为它属于框架层面的能力
	if cfg.Type == "parallel" {
		var children []Node
		for _, childCfg := range cfg.Nodes {
			childNode, err := r.CreateNode(childCfg)
			if err != nil {
				return nil, err
			}
			children = append(children, childNode)
		}
		return NewParallelNode(cfg.Name, children), nil
	}

	factory, ok := r.factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", cfg.Type)
	}
	return factory(cfg)
}

// pipeline 一个已实例化的场景流程
type pipeline struct {
	timeout time.Duration
	nodes   []Node
}

// Engine 流程引擎
type Engine struct {
	pipelines map[string]pipeline // scene -> pipeline
	registry  *Registry
}

// LoadConfig 读取并解析 pipeline 配置文件
func LoadConfig(configPath string) (GlobalConfig, error) {
	var globalCfg GlobalConfig
	data, err := os.ReadFile(configPath)
	if err != nil {
		return globalCfg, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	if err := json.Unmarshal(data, &globalCfg); err != nil {
		return globalCfg, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	return globalCfg, nil
}

// NewEngine 创建引擎并加载配置
func NewEngine(configPath string, registry *Registry) (*Engine, error) {
	globalCfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewEngineFromConfig(globalCfg, registry)
}

// NewEngineFromConfig 使用已解析的配置创建引擎
func NewEngineFromConfig(globalCfg GlobalConfig, registry *Registry) (*Engine, error) {
	if len(globalCfg.Pipelines) == 0 {
		return nil, fmt.Errorf("no pipelines configured")
	}

	engine := &Engine{
		pipelines: make(map[string]pipeline),
		registry:  registry,
	}

	for scene, pipeCfg := range globalCfg.Pipelines {
		if pipeCfg.TimeoutMs < 0 {
			return nil, fmt.Errorf("pipeline '%s': timeout_ms must not be negative", scene)
		}
		var nodes []Node
		for _, nodeCfg := range pipeCfg.Nodes {
			node, err := registry.CreateNode(nodeCfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create node '%s' in pipeline '%s': %w", nodeCfg.Name, scene, err)
			}
			nodes = append(nodes, node)
		}
		engine.pipelines[scene] = pipeline{
			timeout: time.Duration(pipeCfg.TimeoutMs) * time.Millisecond,
			nodes:   nodes,
		}
	}

	return engine, nil
}

// HasScene 判断场景是否存在
func (e *Engine) HasScene(scene string) bool {
	_, ok := e.pipelines[scene]
	return ok
}

// Scenes 返回所有已配置的场景
func (e *Engine) Scenes() []string {
	scenes := make([]string, 0, len(e.pipelines))
	for scene := range e.pipelines {
		scenes = append(scenes, scene)
	}
	return scenes
}

// ErrSceneNotFound 场景未配置
var ErrSceneNotFound = errors.New("pipeline not found")

// Run 执行指定场景的推荐流程
// 若 pipeline 配置了 timeout_ms，则整个流程受该超时约束；节点之间会检查取消信号。
func (e *Engine) Run(ctx *Context, scene string) error {
	p, ok := e.pipelines[scene]
	if !ok {
		return fmt.Errorf("%w for scene: %s", ErrSceneNotFound, scene)
	}

	if p.timeout > 0 {
		runCtx, cancel := context.WithTimeout(ctx.Ctx, p.timeout)
		defer cancel()
		ctx = ctx.WithContext(runCtx)
	}

	ctx.AddLog(fmt.Sprintf("Starting pipeline execution for scene: %s", scene))

	for _, node := range p.nodes {
		if err := ctx.Ctx.Err(); err != nil {
			ctx.AddLog(fmt.Sprintf("Pipeline aborted before node %s: %v", node.Name(), err))
			return err
		}
		ctx.AddLog(fmt.Sprintf("Executing node: %s (%s)", node.Name(), node.Type()))
		if err := node.Execute(ctx); err != nil {
			ctx.AddLog(fmt.Sprintf("Node execution failed: %v", err))
			return err
		}
	}

	ctx.AddLog("Pipeline execution completed")
	return nil
}
