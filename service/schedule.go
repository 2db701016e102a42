package service

import (
	"context"
	"time"

	"github.com/BerniceZTT/leadops/metrics"
	"github.com/BerniceZTT/leadops/utils"
)

// nextDailyRun 计算下一次在 hour:min:sec 执行的时间
func nextDailyRun(now time.Time, hour, min, sec int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, min, sec, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// 每天指定时间执行任务，ctx 取消后退出
func ScheduleDailyTaskAt(ctx context.Context, hour, min, sec int, task func()) {
	go func() {
		for {
			timer := time.NewTimer(time.Until(nextDailyRun(time.Now(), hour, min, sec)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				task()
			}
		}
	}()
}

// BacklogSummary 待处理预警积压情况
type BacklogSummary struct {
	Pending     int           `json:"pending"`
	OldestID    string        `json:"oldestId,omitempty"`
	OldestAge   time.Duration `json:"oldestAge"`
	OldestLeadA string        `json:"oldestLeadA,omitempty"`
	OldestLeadB string        `json:"oldestLeadB,omitempty"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// ReportPendingBacklog 统计待处理预警积压，更新指标并记录日志，不修改任何数据
func (s *DuplicateService) ReportPendingBacklog(ctx context.Context) (*BacklogSummary, error) {
	now := s.now()
	utils.Logger.Info().Time("time", now).Msg("开始执行每日待处理预警检查任务...")

	alerts, err := s.ListPendingAlerts(ctx)
	if err != nil {
		utils.LogError(err, nil, "查询待处理预警失败")
		return nil, err
	}

	summary := &BacklogSummary{Pending: len(alerts), GeneratedAt: now}
	if len(alerts) > 0 {
		// 列表按检测时间升序
		oldest := alerts[0]
		summary.OldestID = oldest.ID
		summary.OldestLeadA = oldest.LeadAID
		summary.OldestLeadB = oldest.LeadBID
		if age := now.Sub(oldest.DetectedAt); age > 0 {
			summary.OldestAge = age
		}
	}

	metrics.PendingAlerts.Set(float64(summary.Pending))
	metrics.OldestPendingAlertAge.Set(summary.OldestAge.Seconds())

	utils.Logger.Info().
		Int("pending", summary.Pending).
		Str("oldestId", summary.OldestID).
		Dur("oldestAge", summary.OldestAge).
		Msg("每日待处理预警检查任务完成")
	return summary, nil
}
