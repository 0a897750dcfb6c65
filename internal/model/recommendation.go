package model

import "time"

// 推荐优先级档位，由分数经固定阈值推导。
const (
	PriorityHigh     = "high"
	PriorityStandard = "standard"
)

// Recommendation 是推荐引擎对单个产品的一次打分结果。
// ScoreBreakdown 保留各因子的独立得分，保证打分过程可解释。
type Recommendation struct {
	ProductID uint           `json:"productId"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Score     float64        `json:"score"` // 调整后的最终分数，[0,1]
	Priority  string         `json:"priority"`
	Rationale string         `json:"rationale"`
	Degraded  bool           `json:"degraded"` // 理由文本是否由模板兜底生成
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// ScoreBreakdown 是打分函数中各可独立检查的部分分数。
type ScoreBreakdown struct {
	GoalAlignment   float64 `json:"goalAlignment"`
	RiskProximity   float64 `json:"riskProximity"`
	TagOverlap      float64 `json:"tagOverlap"`
	FeedbackPenalty bool    `json:"feedbackPenalty"` // 是否应用了负反馈惩罚
}

// RecommendationSnapshot 是一次完整推荐计算的审计留存。
// 新的计算取代旧结果供展示，历史记录按保留期归档后清理。
type RecommendationSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	Items     string    `gorm:"type:text;not null" json:"-"` // JSON 编码的 []Recommendation
	Degraded  bool      `json:"degraded"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (RecommendationSnapshot) TableName() string {
	return "recommendation_snapshots"
}
