package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fin-advisor-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// AdvisoryRepository 定义了顾问对话历史记录的操作接口。
type AdvisoryRepository interface {
	GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	UpdateHistory(ctx context.Context, userID uint, messages []model.ChatMessage) error
}

type redisAdvisoryRepository struct {
	redisClient *redis.Client
}

// NewAdvisoryRepository 创建一个新的 AdvisoryRepository 实例。
func NewAdvisoryRepository(redisClient *redis.Client) AdvisoryRepository {
	return &redisAdvisoryRepository{redisClient: redisClient}
}

func advisoryKey(userID uint) string {
	return fmt.Sprintf("advisory:history:%d", userID)
}

// GetHistory 从 Redis 获取顾问对话历史记录。
func (r *redisAdvisoryRepository) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, advisoryKey(userID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // No history yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get advisory history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal advisory history: %w", err)
	}
	return messages, nil
}

// UpdateHistory 在 Redis 中更新顾问对话历史记录。
func (r *redisAdvisoryRepository) UpdateHistory(ctx context.Context, userID uint, messages []model.ChatMessage) error {
	// 保留最近 20 条
	if len(messages) > 20 {
		messages = messages[len(messages)-20:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal advisory history: %w", err)
	}
	if err := r.redisClient.Set(ctx, advisoryKey(userID), jsonData, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set advisory history: %w", err)
	}
	return nil
}
