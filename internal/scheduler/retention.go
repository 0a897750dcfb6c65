// Package scheduler 负责周期性的后台维护任务。
package scheduler

import (
	"time"

	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/log"

	"github.com/robfig/cron/v3"
)

// RetentionSweeper 按保留期定时清理过期的推荐快照。
type RetentionSweeper struct {
	cron          *cron.Cron
	snapshotRepo  repository.RecommendationRepository
	retentionDays int
}

// NewRetentionSweeper 创建一个新的 RetentionSweeper 实例。
func NewRetentionSweeper(snapshotRepo repository.RecommendationRepository, retentionDays int) *RetentionSweeper {
	return &RetentionSweeper{
		cron:          cron.New(),
		snapshotRepo:  snapshotRepo,
		retentionDays: retentionDays,
	}
}

// Start 注册清理任务并启动调度器。每天凌晨执行一次。
func (s *RetentionSweeper) Start() error {
	_, err := s.cron.AddFunc("0 3 * * *", s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Infof("推荐快照保留期清理任务已启动，保留 %d 天", s.retentionDays)
	return nil
}

// Stop 停止调度器，等待正在运行的任务结束。
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	removed, err := s.snapshotRepo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Errorf("清理过期推荐快照失败: %v", err)
		return
	}
	if removed > 0 {
		log.Infof("清理了 %d 条过期推荐快照", removed)
	}
}
