// Package llm 提供了对多个外部文本生成服务的统一编排（Provider Gateway）。
package llm

import "context"

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result 是网关一次生成调用的结果。
// Degraded 为 true 表示没有任何真实 provider 成功，文本来自确定性兜底。
type Result struct {
	Text     string
	Provider string
	Degraded bool
}

// Provider 定义了单个文本生成服务的接口。
type Provider interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}
