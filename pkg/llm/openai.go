package llm

import (
	"context"
	"fmt"
	"strings"

	"fin-advisor-go/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// openaiProvider 通过官方 SDK 调用 OpenAI 的 chat completion 接口。
type openaiProvider struct {
	client *openai.Client
	model  string
	gen    config.LLMGenerationConfig
}

// NewOpenAI 创建 OpenAI provider。未配置 API Key 时返回 nil。
func NewOpenAI(cfg config.ProviderConfig, gen config.LLMGenerationConfig) Provider {
	if cfg.APIKey == "" {
		return nil
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &openaiProvider{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		gen:    gen,
	}
}

func (p *openaiProvider) Name() string { return "openai" }

// Generate 调用 OpenAI 生成一条非流式回复。
func (p *openaiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: oaMsgs,
	}
	if p.gen.Temperature != 0 {
		req.Temperature = float32(p.gen.Temperature)
	}
	if p.gen.MaxTokens != 0 {
		req.MaxTokens = p.gen.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
