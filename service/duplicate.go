package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BerniceZTT/leadops/metrics"
	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/repository"
	"github.com/BerniceZTT/leadops/utils"
)

// MaxNotesLength 处理备注的最大字符数
const MaxNotesLength = 2000

// ResolutionPublisher 处理记录的下游接收方（通知、审计）
type ResolutionPublisher interface {
	PublishResolution(ctx context.Context, res *models.Resolution) error
}

// NoopPublisher 未配置消息队列时使用
type NoopPublisher struct{}

// PublishResolution 丢弃处理记录
func (NoopPublisher) PublishResolution(context.Context, *models.Resolution) error {
	return nil
}

// DuplicateService 重复预警查询与处理
type DuplicateService struct {
	store     repository.Store
	publisher ResolutionPublisher
	now       func() time.Time
}

// NewDuplicateService 创建重复预警服务，publisher 为 nil 时不发布处理记录
func NewDuplicateService(store repository.Store, publisher ResolutionPublisher) *DuplicateService {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &DuplicateService{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListPendingAlerts 获取全部待处理预警，最早检测的排在前面
func (s *DuplicateService) ListPendingAlerts(ctx context.Context) ([]models.DuplicateAlert, error) {
	alerts, err := s.store.ListAlerts(ctx, models.AlertStatusPending, 0)
	if err != nil {
		return nil, fmt.Errorf("查询待处理预警失败: %w", err)
	}
	return alerts, nil
}

// ListResolvedAlerts 获取已处理预警，最近处理的排在前面
func (s *DuplicateService) ListResolvedAlerts(ctx context.Context, limit int) ([]models.DuplicateAlert, error) {
	alerts, err := s.store.ListAlerts(ctx, models.AlertStatusResolved, limit)
	if err != nil {
		return nil, fmt.Errorf("查询已处理预警失败: %w", err)
	}
	return alerts, nil
}

// GetAlertDetail 获取预警及两条线索的最新记录
func (s *DuplicateService) GetAlertDetail(ctx context.Context, alertID string) (*models.AlertDetail, error) {
	alert, err := s.getAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	leadA, leadB, err := s.loadLeads(ctx, alert)
	if err != nil {
		return nil, err
	}

	snapA := leadA.Snapshot()
	snapB := leadB.Snapshot()
	return &models.AlertDetail{
		Alert:      *alert,
		LeadA:      leadA,
		LeadB:      leadB,
		Comparison: BuildComparison(&snapA, &snapB),
	}, nil
}

// GetResolution 获取已处理预警的处理记录
func (s *DuplicateService) GetResolution(ctx context.Context, alertID string) (*models.Resolution, error) {
	res, err := s.store.GetResolution(ctx, alertID)
	if err != nil {
		return nil, mapStoreError(err, "resolution", alertID)
	}
	return res, nil
}

// ResolveAlert 对待处理预警应用一个处理方式。
// 预警状态的条件更新、线索修改和处理记录写入在同一事务内完成，并发处理时只有一方成功。
func (s *DuplicateService) ResolveAlert(ctx context.Context, alertID, action, notes string, actor models.Actor) (res *models.Resolution, err error) {
	start := time.Now()
	actionLabel := strings.ToLower(strings.TrimSpace(action))
	defer func() {
		metrics.RecordResolution(actionLabel, resolutionOutcome(err), time.Since(start).Seconds())
		utils.LogResolution(alertID, actionLabel, actor.ID, time.Since(start), err)
	}()

	alert, err := s.getAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if !alert.IsPending() {
		return nil, fmt.Errorf("%w: alert %s", ErrAlreadyResolved, alert.ID)
	}

	act, err := models.ParseResolutionAction(action)
	if err != nil {
		actionLabel = "unknown"
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	actionLabel = string(act)

	if strings.TrimSpace(actor.ID) == "" {
		return nil, invalidInput("actor", "required")
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return nil, invalidInput("notes", fmt.Sprintf("must be at most %d characters", MaxNotesLength))
	}

	leadA, leadB, err := s.loadLeads(ctx, alert)
	if err != nil {
		return nil, err
	}

	now := s.now()
	plan, err := PlanResolution(alert, leadA, leadB, act, now)
	if err != nil {
		return nil, err
	}

	resolved := *alert
	resolvedBy := actor
	resolved.Status = models.AlertStatusResolved
	resolved.Action = act
	resolved.ResolvedBy = &resolvedBy
	resolved.ResolvedAt = &now
	resolved.Notes = notes
	resolved.CreditAssignedTo = plan.CreditAssignedTo
	resolved.DuplicateOf = plan.CanonicalLeadID
	resolved.DuplicateLeadID = plan.DuplicateLeadID

	res = &models.Resolution{
		AlertID:          alert.ID,
		Action:           act,
		Actor:            actor,
		Notes:            notes,
		LeadAID:          alert.LeadAID,
		LeadBID:          alert.LeadBID,
		CreditAssignedTo: plan.CreditAssignedTo,
		CanonicalLeadID:  plan.CanonicalLeadID,
		DuplicateLeadID:  plan.DuplicateLeadID,
		Credit:           plan.Credit,
		CreatedAt:        now,
	}

	if err = s.store.ApplyResolution(ctx, &resolved, plan.LeadUpdates(), res); err != nil {
		return nil, mapStoreError(err, "alert", alert.ID)
	}

	s.publish(ctx, res)
	return res, nil
}

func (s *DuplicateService) publish(ctx context.Context, res *models.Resolution) {
	if err := s.publisher.PublishResolution(ctx, res); err != nil {
		metrics.ResolutionsPublishedTotal.WithLabelValues("error").Inc()
		utils.LogError(err, map[string]interface{}{
			"alertId":      res.AlertID,
			"resolutionId": res.ID,
		}, "发布处理记录失败")
		return
	}
	metrics.ResolutionsPublishedTotal.WithLabelValues("success").Inc()
}

func (s *DuplicateService) getAlert(ctx context.Context, alertID string) (*models.DuplicateAlert, error) {
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return nil, fmt.Errorf("%w: alert id is empty", ErrNotFound)
	}
	alert, err := s.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, mapStoreError(err, "alert", alertID)
	}
	return alert, nil
}

func (s *DuplicateService) loadLeads(ctx context.Context, alert *models.DuplicateAlert) (*models.Lead, *models.Lead, error) {
	leadA, err := s.store.GetLead(ctx, alert.LeadAID)
	if err != nil {
		return nil, nil, mapStoreError(err, "lead", alert.LeadAID)
	}
	leadB, err := s.store.GetLead(ctx, alert.LeadBID)
	if err != nil {
		return nil, nil, mapStoreError(err, "lead", alert.LeadBID)
	}
	return leadA, leadB, nil
}

// mapStoreError 将存储层错误转换为服务层错误
func mapStoreError(err error, resource, id string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
	case errors.Is(err, repository.ErrAlertNotPending):
		return fmt.Errorf("%w: %s %s", ErrAlreadyResolved, resource, id)
	case errors.Is(err, repository.ErrLeadVersionMismatch):
		return fmt.Errorf("%w: %s %s", ErrConflict, resource, id)
	default:
		return fmt.Errorf("%s %s: %w", resource, id, err)
	}
}

func resolutionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrAlreadyResolved):
		return metrics.OutcomeAlreadyResolved
	case errors.Is(err, ErrInvalidAction):
		return metrics.OutcomeInvalidAction
	case errors.Is(err, ErrInvalidTransition):
		return metrics.OutcomeInvalidTransition
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrInvalidInput):
		return metrics.OutcomeInvalidInput
	default:
		return metrics.OutcomeError
	}
}
