package embedding

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"news_recommend/internal/vector"

	"github.com/goccy/go-json"
)

// OpenAIClient 调用 OpenAI 兼容的 /embeddings 接口
type OpenAIClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	model      string
	dimensions int
}

func NewOpenAIClient(endpoint, apiKey string, model string, opts ...Option) *OpenAIClient {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/embeddings"
	}
	cfg := newConfig(opts)
	return &OpenAIClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: cfg.httpClient,
		dimensions: cfg.dimensions,
	}
}

type openAIRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *OpenAIClient) Model() string   { return c.model }
func (c *OpenAIClient) Dimensions() int { return c.dimensions }

func (c *OpenAIClient) Embed(ctx context.Context, text string) (vector.Vector, error) {
	reqBody := openAIRequest{
		Model:      c.model,
		Input:      text,
		Dimensions: c.dimensions,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// 直接使用配置的 endpoint，不再硬编码路径
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var embResp openAIResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no data returned", ErrMalformedResponse)
	}

	v := vector.Vector(embResp.Data[0].Embedding)
	if err := checkVector(v, c.dimensions); err != nil {
		return nil, err
	}
	return v, nil
}
