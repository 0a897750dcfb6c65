// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fin-advisor-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound 表示指定的引导会话不存在或已过期。
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository 定义了引导会话状态的操作接口。
// 会话存储在 Redis 中，带有保留期 TTL，过期即视为不存在。
type SessionRepository interface {
	Save(ctx context.Context, session *model.Session) error
	Find(ctx context.Context, sessionID string) (*model.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("onboarding:session:%s", sessionID)
}

// Save 将会话状态以 JSON 形式写入 Redis，并刷新保留期。
func (r *redisSessionRepository) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now()
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(session.ID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

// Find 从 Redis 获取会话状态。
func (r *redisSessionRepository) Find(ctx context.Context, sessionID string) (*model.Session, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete 删除一个会话。会话不存在时不视为错误。
func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
