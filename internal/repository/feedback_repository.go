package repository

import (
	"fin-advisor-go/internal/model"

	"gorm.io/gorm"
)

// FeedbackRepository 接口定义了推荐反馈的持久化操作。
// 反馈表只追加，最新一条覆盖之前的表态。
type FeedbackRepository interface {
	Create(record *model.FeedbackRecord) error
	LatestPerProduct(userID uint) (map[uint]model.FeedbackRecord, error)
}

// feedbackRepository 是 FeedbackRepository 接口的 GORM 实现。
type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository 创建一个新的 FeedbackRepository 实例。
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create 追加一条反馈记录。
func (r *feedbackRepository) Create(record *model.FeedbackRecord) error {
	return r.db.Create(record).Error
}

// LatestPerProduct 返回指定用户对每个产品的最新一条反馈。
func (r *feedbackRepository) LatestPerProduct(userID uint) (map[uint]model.FeedbackRecord, error) {
	var records []model.FeedbackRecord
	err := r.db.Where("user_id = ?", userID).Order("id asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	result := make(map[uint]model.FeedbackRecord, len(records))
	// 按 id 升序遍历，后写入的覆盖先写入的
	for _, rec := range records {
		result[rec.ProductID] = rec
	}
	return result, nil
}
