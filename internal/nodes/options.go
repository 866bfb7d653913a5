package nodes

import (
	"fmt"

	"news_recommend/internal/workflow"
)

// pipelines.json 中的数字统一被解析为 float64

func intOption(cfg workflow.NodeConfig, key string, def int) (int, error) {
	raw, ok := cfg.Config[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("node '%s': '%s' must be an integer", cfg.Name, key)
	}
	return int(f), nil
}

func floatOption(cfg workflow.NodeConfig, key string, def float64) (float64, error) {
	raw, ok := cfg.Config[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("node '%s': '%s' must be a number", cfg.Name, key)
	}
	return f, nil
}

func stringOption(cfg workflow.NodeConfig, key string, def string) (string, error) {
	raw, ok := cfg.Config[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("node '%s': '%s' must be a string", cfg.Name, key)
	}
	return s, nil
}

func stringsOption(cfg workflow.NodeConfig, key string) ([]string, error) {
	raw, ok := cfg.Config[key]
	if !ok || raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("node '%s': '%s' must be a list of strings", cfg.Name, key)
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("node '%s': '%s' must be a list of strings", cfg.Name, key)
		}
		out = append(out, s)
	}
	return out, nil
}

// wrapExternal 请求本身被取消或超时时原样返回上下文错误，否则包装为领域错误
func wrapExternal(ctx *workflow.Context, err error, wrap func(error) error) error {
	if ctxErr := ctx.Ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return wrap(err)
}
