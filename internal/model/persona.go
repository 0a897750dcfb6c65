package model

import (
	"encoding/json"
	"time"
)

// 风险承受能力的类别取值。
const (
	RiskLow      = "low"
	RiskModerate = "moderate"
	RiskHigh     = "high"
)

// 投资时间跨度的类别取值。
const (
	HorizonShort  = "short"
	HorizonMedium = "medium"
	HorizonLong   = "long"
)

// Persona 是一次已完成引导会话的结构化提炼结果。
// 每个用户至多一条记录，重新引导时整体覆盖。
type Persona struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"userId"`
	SessionID     string    `gorm:"type:varchar(64);not null" json:"sessionId"`
	Goals         string    `gorm:"type:text" json:"-"` // JSON 编码的目标列表
	RiskTolerance string    `gorm:"type:varchar(16)" json:"riskTolerance"`
	TimeHorizon   string    `gorm:"type:varchar(16)" json:"timeHorizon"`
	Interests     string    `gorm:"type:text" json:"interests"` // 逗号分隔的关注领域
	CompletedAt   time.Time `json:"completedAt"`
}

func (Persona) TableName() string {
	return "personas"
}

// GoalList 解码 Goals 字段存储的目标列表。
func (p *Persona) GoalList() []string {
	if p.Goals == "" {
		return nil
	}
	var goals []string
	if err := json.Unmarshal([]byte(p.Goals), &goals); err != nil {
		return nil
	}
	return goals
}

// SetGoals 将目标列表编码进 Goals 字段。
func (p *Persona) SetGoals(goals []string) {
	b, err := json.Marshal(goals)
	if err != nil {
		p.Goals = "[]"
		return
	}
	p.Goals = string(b)
}

// RiskLevel 将风险承受类别映射到产品风险档位（1-5）所在的量表上。
func (p *Persona) RiskLevel() int {
	switch p.RiskTolerance {
	case RiskLow:
		return 1
	case RiskHigh:
		return 5
	default:
		return 3
	}
}
