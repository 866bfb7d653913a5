package workflow

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ParallelNode 是一个组合节点，用于并发执行多个相互独立的子节点
type ParallelNode struct {
	nodeName string
	children []Node
}

// NewParallelNode 创建一个新的并行节点
func NewParallelNode(name string, children []Node) *ParallelNode {
	return &ParallelNode{
		nodeName: name,
		children: children,
	}
}

func (n *ParallelNode) Name() string {
	return n.nodeName
}

func (n *ParallelNode) Type() string {
	return "parallel"
}

// Execute 并发执行所有子节点
// 采用 "All or Nothing" 策略：任意一个子节点失败，立即取消其余子节点并返回该错误，
// 所有子节点都成功后才继续后续节点。
func (n *ParallelNode) Execute(ctx *Context) error {
	ctx.AddLog(fmt.Sprintf("Start ParallelNode: %s", n.nodeName))

	g, gctx := errgroup.WithContext(ctx.Ctx)
	child := ctx.WithContext(gctx)

	for _, node := range n.children {
		g.Go(func() (err error) {
			// 防止单个节点 panic 导致进程崩溃
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("node %s panic: %v", node.Name(), r)
				}
			}()

			child.AddLog(fmt.Sprintf("  -> Start child node: %s", node.Name()))
			if err := node.Execute(child); err != nil {
				child.AddLog(fmt.Sprintf("  -> Node %s failed: %v", node.Name(), err))
				return err
			}
			child.AddLog(fmt.Sprintf("  -> Node %s completed", node.Name()))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	ctx.AddLog(fmt.Sprintf("End ParallelNode: %s (All success)", n.nodeName))
	return nil
}
