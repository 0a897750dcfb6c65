package model

import "time"

// FeedbackRecord 记录用户对某条推荐的显式相关性反馈。
// 只追加，从不更新；推荐引擎只采信每个 (用户, 产品) 组合的最新一条。
type FeedbackRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index:idx_feedback_user_product;not null" json:"userId"`
	ProductID  uint      `gorm:"index:idx_feedback_user_product;not null" json:"productId"`
	IsRelevant bool      `gorm:"not null" json:"isRelevant"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (FeedbackRecord) TableName() string {
	return "feedback_records"
}
