package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/kafka"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/tasks"
)

// ErrUnknownProduct 表示反馈指向的产品不在目录中。
var ErrUnknownProduct = errors.New("unknown product")

// FeedbackService 定义了推荐反馈回路的业务逻辑接口。
type FeedbackService interface {
	Record(ctx context.Context, userID, productID uint, isRelevant bool) error
}

type feedbackService struct {
	feedbackRepo repository.FeedbackRepository
	productRepo  repository.ProductRepository
	publish      func(tasks.AuditEvent) error
}

// NewFeedbackService 创建一个新的 FeedbackService 实例。
func NewFeedbackService(feedbackRepo repository.FeedbackRepository, productRepo repository.ProductRepository) FeedbackService {
	return &feedbackService{
		feedbackRepo: feedbackRepo,
		productRepo:  productRepo,
		publish:      kafka.ProduceAuditEvent,
	}
}

// Record 追加一条反馈并发布审计事件。产品不存在时拒绝。
func (s *feedbackService) Record(ctx context.Context, userID, productID uint, isRelevant bool) error {
	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		return fmt.Errorf("failed to look up product: %w", err)
	}
	if product == nil {
		return ErrUnknownProduct
	}

	record := &model.FeedbackRecord{
		UserID:     userID,
		ProductID:  productID,
		IsRelevant: isRelevant,
	}
	if err := s.feedbackRepo.Create(record); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	// 审计链路尽力而为，发送失败不影响已落库的反馈
	err = s.publish(tasks.AuditEvent{
		Type:      tasks.EventFeedback,
		UserID:    userID,
		ProductID: productID,
		Payload:   fmt.Sprintf("{\"is_relevant\": %t}", isRelevant),
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Warnf("发布用户 %d 的反馈审计事件失败: %v", userID, err)
	}
	return nil
}
