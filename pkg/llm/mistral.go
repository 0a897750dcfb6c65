package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fin-advisor-go/internal/config"
)

const defaultMistralBaseURL = "https://api.mistral.ai/v1"

// mistralProvider 通过 OpenAI 兼容的 REST 接口调用 Mistral AI。
type mistralProvider struct {
	cfg    config.ProviderConfig
	gen    config.LLMGenerationConfig
	client *http.Client
}

// NewMistral 创建 Mistral provider。未配置 API Key 时返回 nil。
func NewMistral(cfg config.ProviderConfig, gen config.LLMGenerationConfig) Provider {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMistralBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "mistral-tiny"
	}
	return &mistralProvider{cfg: cfg, gen: gen, client: &http.Client{}}
}

func (p *mistralProvider) Name() string { return "mistral" }

type mistralRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate 调用 Mistral 的 chat/completions 接口。
func (p *mistralProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	reqBody := mistralRequest{
		Model:    p.cfg.Model,
		Messages: messages,
	}
	if p.gen.Temperature != 0 {
		t := p.gen.Temperature
		reqBody.Temperature = &t
	}
	if p.gen.MaxTokens != 0 {
		m := p.gen.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal mistral request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create mistral request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call mistral api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mistral api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var out mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode mistral response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("mistral returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
