// Package model 包含了应用的数据模型定义。
package model

import "time"

// 会话中发言者的角色标签。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn 代表会话转写中的一条发言。
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Degraded  bool      `json:"degraded,omitempty"` // 该轮回复是否由兜底 mock 生成
	Timestamp time.Time `json:"timestamp"`
}

// Session 代表存储在 Redis 中的一次引导对话会话。
// Complete 置为 true 之后转写即为只读，Finalized 标记 Persona 已经提取完成。
type Session struct {
	ID            string    `json:"id"`
	UserID        uint      `json:"userId"`
	Turns         []Turn    `json:"turns"`
	UserTurnCount int       `json:"userTurnCount"`
	Complete      bool      `json:"complete"`
	Finalized     bool      `json:"finalized"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ChatMessage 代表存储在 Redis 中的单条咨询对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
