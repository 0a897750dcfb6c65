package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fin-advisor-go/internal/config"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider 通过 REST 接口调用 Google Gemini。
type geminiProvider struct {
	cfg    config.ProviderConfig
	gen    config.LLMGenerationConfig
	client *http.Client
}

// NewGemini 创建 Gemini provider。未配置 API Key 时返回 nil。
func NewGemini(cfg config.ProviderConfig, gen config.LLMGenerationConfig) Provider {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &geminiProvider{cfg: cfg, gen: gen, client: &http.Client{}}
}

func (p *geminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *geminiGenPayload `json:"generationConfig,omitempty"`
}

type geminiGenPayload struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate 调用 Gemini 的 generateContent 接口。
// Gemini 没有 system 角色，system 消息以 "SYSTEM INSTRUCTION:" 前缀并入 user 内容。
func (p *geminiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: "SYSTEM INSTRUCTION: " + m.Content}},
			})
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	reqBody := geminiRequest{Contents: contents}
	genPayload := &geminiGenPayload{}
	if p.gen.Temperature != 0 {
		t := p.gen.Temperature
		genPayload.Temperature = &t
	}
	if p.gen.MaxTokens != 0 {
		m := p.gen.MaxTokens
		genPayload.MaxOutputTokens = &m
	}
	if genPayload.Temperature != nil || genPayload.MaxOutputTokens != nil {
		reqBody.GenerationConfig = genPayload
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.cfg.BaseURL, p.cfg.Model, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
