package repository

import (
	"time"

	"fin-advisor-go/internal/model"

	"gorm.io/gorm"
)

// RecommendationRepository 接口定义了推荐快照的持久化操作。
type RecommendationRepository interface {
	SaveSnapshot(snapshot *model.RecommendationSnapshot) error
	History(userID uint, limit int) ([]model.RecommendationSnapshot, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// recommendationRepository 是 RecommendationRepository 接口的 GORM 实现。
type recommendationRepository struct {
	db *gorm.DB
}

// NewRecommendationRepository 创建一个新的 RecommendationRepository 实例。
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

// SaveSnapshot 保存一次推荐结果的快照。
func (r *recommendationRepository) SaveSnapshot(snapshot *model.RecommendationSnapshot) error {
	return r.db.Create(snapshot).Error
}

// History 按时间倒序返回指定用户最近的推荐快照。
func (r *recommendationRepository) History(userID uint, limit int) ([]model.RecommendationSnapshot, error) {
	var snapshots []model.RecommendationSnapshot
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}

// DeleteOlderThan 删除早于指定时间的快照，返回删除的行数。
func (r *recommendationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&model.RecommendationSnapshot{})
	return result.RowsAffected, result.Error
}
