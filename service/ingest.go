package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerniceZTT/leadops/metrics"
	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"
)

// IngestAlert 接收重复检测事件并创建待处理预警。
// 同一对线索已有待处理预警时直接返回该预警，created 为 false。
func (s *DuplicateService) IngestAlert(ctx context.Context, event models.DetectorEvent, source string) (alert *models.DuplicateAlert, created bool, err error) {
	defer func() {
		outcome := resolutionOutcome(err)
		if err == nil && !created {
			outcome = metrics.OutcomeDuplicate
		}
		metrics.RecordIngest(source, outcome)
	}()

	event.LeadAID = strings.TrimSpace(event.LeadAID)
	event.LeadBID = strings.TrimSpace(event.LeadBID)
	if err = validateStruct(event); err != nil {
		return nil, false, err
	}

	if event.ScoreScale == models.ScoreScaleFraction && event.SimilarityScore > 1 {
		return nil, false, invalidInput("similarity_score", "must be at most 1 for fraction scale")
	}

	existing, err := s.store.FindPendingAlertByPair(ctx, event.LeadAID, event.LeadBID)
	if err != nil {
		return nil, false, fmt.Errorf("查询重复预警失败: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	first, err := s.store.GetLead(ctx, event.LeadAID)
	if err != nil {
		return nil, false, mapStoreError(err, "lead", event.LeadAID)
	}
	second, err := s.store.GetLead(ctx, event.LeadBID)
	if err != nil {
		return nil, false, mapStoreError(err, "lead", event.LeadBID)
	}
	if submittedLater(first, second) {
		first, second = second, first
	}

	detectedAt := event.DetectedAt.UTC()
	if event.DetectedAt.IsZero() {
		detectedAt = s.now()
	}
	factors := event.SimilarityFactors
	if factors == nil {
		factors = []string{}
	}

	alert = &models.DuplicateAlert{
		LeadAID:           first.ID,
		LeadBID:           second.ID,
		LeadAData:         first.Snapshot(),
		LeadBData:         second.Snapshot(),
		SimilarityScore:   NormalizeScore(event.SimilarityScore, event.ScoreScale),
		SimilarityFactors: factors,
		DetectedAt:        detectedAt,
		Status:            models.AlertStatusPending,
	}
	if err = s.store.CreateAlert(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("创建重复预警失败: %w", err)
	}

	utils.Logger.Info().
		Str("alertId", alert.ID).
		Str("leadA", alert.LeadAID).
		Str("leadB", alert.LeadBID).
		Float64("score", alert.SimilarityScore).
		Str("source", source).
		Msg("创建重复预警")
	return alert, true, nil
}

// NormalizeScore 将相似度换算为 0-1。
// 未声明量纲时按数值推断：大于 1 视为百分制，否则视为小数。
// 推断无法区分百分制的 1 和小数的 1.0，检测端应通过 score_scale 声明量纲。
func NormalizeScore(score float64, scale string) float64 {
	switch scale {
	case models.ScoreScalePercent:
		return score / 100
	case models.ScoreScaleFraction:
		return score
	}
	if score > 1 {
		return score / 100
	}
	return score
}

// submittedLater a 是否晚于 b 提交，时间相同时按 id 排序
func submittedLater(a, b *models.Lead) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}
