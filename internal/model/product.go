package model

import (
	"strings"
	"time"
)

// Product 是产品目录中的一条记录，由外部目录管理方维护，对引擎只读。
// 自增主键即目录的插入顺序，用于并列分数时的稳定排序。
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"type:varchar(128);not null" json:"name"`
	Category    string    `gorm:"type:varchar(64);index" json:"category"`
	Tags        string    `gorm:"type:varchar(512)" json:"tags"` // 逗号分隔的标签集合
	RiskTier    int       `gorm:"not null" json:"riskTier"`      // 1（最稳健）到 5（最激进）
	Rate        float64   `json:"rate"`
	MinBalance  float64   `json:"minBalance"`
	AnnualFee   float64   `json:"annualFee"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Product) TableName() string {
	return "products"
}

// TagList 拆分逗号分隔的标签字段，返回去除空白后的标签集合。
func (p *Product) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	parts := strings.Split(p.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
