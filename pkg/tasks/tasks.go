// Package tasks 定义了在 Kafka 上传递的任务与事件负载。
package tasks

import "time"

// 审计事件类型。
const (
	EventRecommendation = "recommendation"
	EventFeedback       = "feedback"
)

// AuditEvent 是推荐计算与反馈提交产生的审计事件。
// 由服务层发出，经 Kafka 送入 Elasticsearch 审计索引。
type AuditEvent struct {
	Type      string    `json:"type"`
	UserID    uint      `json:"user_id"`
	ProductID uint      `json:"product_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Score     float64   `json:"score,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
