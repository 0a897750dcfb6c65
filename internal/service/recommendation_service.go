package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/kafka"
	"fin-advisor-go/pkg/llm"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/tasks"
)

// 打分权重。三项权重之和为 1，最终分数落在 [0,1] 区间。
const (
	weightGoalAlignment = 0.40
	weightRiskProximity = 0.35
	weightTagOverlap    = 0.25
)

// goalCategories 把画像目标映射到产品类别。目标与类别命中即计入目标契合分。
// 映射刻意保守：宽泛的类别（如 investment）只挂在明确追求增长的目标下，
// 避免类别命中单独压过风险错配。
var goalCategories = map[string][]string{
	"retirement":      {"retirement"},
	"home_purchase":   {"savings"},
	"education":       {"savings", "investment"},
	"emergency_fund":  {"savings"},
	"travel":          {"savings"},
	"wealth_growth":   {"investment"},
	"general_savings": {"savings"},
}

// RecommendationService 定义了推荐引擎的业务逻辑接口。
type RecommendationService interface {
	Recommend(ctx context.Context, userID uint) ([]model.Recommendation, bool, error)
	History(ctx context.Context, userID uint, limit int) ([]model.RecommendationSnapshot, error)
}

type recommendationService struct {
	personaRepo  repository.PersonaRepository
	productRepo  repository.ProductRepository
	feedbackRepo repository.FeedbackRepository
	snapshotRepo repository.RecommendationRepository
	gateway      Generator
	publish      func(tasks.AuditEvent) error
	topK         int
	highPriority float64
	penalty      float64
}

// NewRecommendationService 创建一个新的 RecommendationService 实例。
func NewRecommendationService(
	personaRepo repository.PersonaRepository,
	productRepo repository.ProductRepository,
	feedbackRepo repository.FeedbackRepository,
	snapshotRepo repository.RecommendationRepository,
	gateway Generator,
	cfg config.RecommendationConfig,
) RecommendationService {
	return &recommendationService{
		personaRepo:  personaRepo,
		productRepo:  productRepo,
		feedbackRepo: feedbackRepo,
		snapshotRepo: snapshotRepo,
		gateway:      gateway,
		publish:      kafka.ProduceAuditEvent,
		topK:         cfg.TopK,
		highPriority: cfg.HighPriorityThreshold,
		penalty:      cfg.FeedbackPenalty,
	}
}

// Recommend 为指定用户计算推荐列表。
// 打分是确定性的，模型只用来生成推荐理由的措辞；返回值第二项表示
// 理由是否由模板兜底生成。
func (s *recommendationService) Recommend(ctx context.Context, userID uint) ([]model.Recommendation, bool, error) {
	persona, err := s.personaRepo.FindByUserID(userID)
	if err != nil {
		return nil, false, err
	}

	products, err := s.productRepo.FindAll()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load product catalog: %w", err)
	}

	feedback, err := s.feedbackRepo.LatestPerProduct(userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load feedback: %w", err)
	}

	recs := make([]model.Recommendation, 0, len(products))
	for _, product := range products {
		rec := s.scoreProduct(persona, &product, feedback)
		recs = append(recs, rec)
	}

	// 稳定排序保证分数并列时保持目录顺序
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})
	if len(recs) > s.topK {
		recs = recs[:s.topK]
	}

	degraded := false
	for i := range recs {
		rationale, fromTemplate := s.rationale(ctx, persona, &recs[i])
		recs[i].Rationale = rationale
		recs[i].Degraded = fromTemplate
		if fromTemplate {
			degraded = true
		}
	}

	s.audit(ctx, userID, recs, degraded)
	return recs, degraded, nil
}

// scoreProduct 计算单个产品的加权分数和各因子的拆解。
func (s *recommendationService) scoreProduct(persona *model.Persona, product *model.Product, feedback map[uint]model.FeedbackRecord) model.Recommendation {
	goals := persona.GoalList()
	goalScore := 0.0
	if len(goals) > 0 {
		matched := 0
		for _, goal := range goals {
			for _, category := range goalCategories[goal] {
				if category == product.Category {
					matched++
					break
				}
			}
		}
		goalScore = float64(matched) / float64(len(goals))
	}

	riskScore := 1.0 - float64(abs(product.RiskTier-persona.RiskLevel()))/4.0

	interests := strings.Split(persona.Interests, ",")
	tagScore := 0.0
	if persona.Interests != "" && len(interests) > 0 {
		tags := product.TagList()
		overlap := 0
		for _, interest := range interests {
			interest = strings.TrimSpace(interest)
			for _, tag := range tags {
				if tag == interest {
					overlap++
					break
				}
			}
		}
		tagScore = float64(overlap) / float64(len(interests))
	}

	score := weightGoalAlignment*goalScore + weightRiskProximity*riskScore + weightTagOverlap*tagScore

	penalized := false
	if rec, ok := feedback[product.ID]; ok && !rec.IsRelevant {
		score *= s.penalty
		penalized = true
	}
	score = clamp01(score)

	priority := model.PriorityStandard
	if score >= s.highPriority {
		priority = model.PriorityHigh
	}

	return model.Recommendation{
		ProductID: product.ID,
		Code:      product.Code,
		Name:      product.Name,
		Score:     score,
		Priority:  priority,
		Breakdown: model.ScoreBreakdown{
			GoalAlignment:   goalScore,
			RiskProximity:   riskScore,
			TagOverlap:      tagScore,
			FeedbackPenalty: penalized,
		},
	}
}

// rationale 生成一条推荐理由。模型不可用时退回基于拆解分数的模板文本。
func (s *recommendationService) rationale(ctx context.Context, persona *model.Persona, rec *model.Recommendation) (string, bool) {
	prompt := fmt.Sprintf(
		"In one short sentence, explain to the user why the product %q fits someone with goals %s, "+
			"%s risk tolerance and a %s investment horizon. Do not mention scores.",
		rec.Name, strings.Join(persona.GoalList(), ", "), persona.RiskTolerance, persona.TimeHorizon,
	)
	result := s.gateway.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if !result.Degraded && strings.TrimSpace(result.Text) != "" {
		return strings.TrimSpace(result.Text), false
	}
	return templateRationale(persona, rec), true
}

// templateRationale 由分数拆解拼出确定性的理由文本。
func templateRationale(persona *model.Persona, rec *model.Recommendation) string {
	var reasons []string
	if rec.Breakdown.GoalAlignment > 0 {
		reasons = append(reasons, "it aligns with your stated goals")
	}
	if rec.Breakdown.RiskProximity >= 0.75 {
		reasons = append(reasons, fmt.Sprintf("its risk level suits your %s risk tolerance", persona.RiskTolerance))
	}
	if rec.Breakdown.TagOverlap > 0 {
		reasons = append(reasons, "it covers areas you expressed interest in")
	}
	if len(reasons) == 0 {
		return fmt.Sprintf("%s is a balanced option based on your profile.", rec.Name)
	}
	return fmt.Sprintf("%s is recommended because %s.", rec.Name, strings.Join(reasons, " and "))
}

// audit 持久化推荐快照并发布审计事件。两者都是尽力而为，不影响响应。
func (s *recommendationService) audit(ctx context.Context, userID uint, recs []model.Recommendation, degraded bool) {
	items, err := json.Marshal(recs)
	if err != nil {
		log.Errorf("序列化推荐快照失败: %v", err)
		return
	}
	snapshot := &model.RecommendationSnapshot{
		UserID:   userID,
		Items:    string(items),
		Degraded: degraded,
	}
	if err := s.snapshotRepo.SaveSnapshot(snapshot); err != nil {
		log.Errorf("保存用户 %d 的推荐快照失败: %v", userID, err)
	}

	topScore := 0.0
	if len(recs) > 0 {
		topScore = recs[0].Score
	}
	err = s.publish(tasks.AuditEvent{
		Type:      tasks.EventRecommendation,
		UserID:    userID,
		Score:     topScore,
		Payload:   string(items),
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Warnf("发布用户 %d 的推荐审计事件失败: %v", userID, err)
	}
}

// History 返回指定用户最近的推荐快照。
func (s *recommendationService) History(ctx context.Context, userID uint, limit int) ([]model.RecommendationSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.snapshotRepo.History(userID, limit)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
