package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/repository"
	"github.com/BerniceZTT/leadops/utils"
)

// LeadService 线索提交与查询
type LeadService struct {
	store repository.Store
	now   func() time.Time
}

// NewLeadService 创建线索服务
func NewLeadService(store repository.Store) *LeadService {
	return &LeadService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateLead 销售提交新线索，初始状态为 New，独享业绩
func (s *LeadService) CreateLead(ctx context.Context, req models.LeadCreateRequest, actor models.Actor) (*models.Lead, error) {
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.ContactPerson = strings.TrimSpace(req.ContactPerson)
	req.ContactMobile = strings.TrimSpace(req.ContactMobile)
	req.ContactEmail = strings.TrimSpace(req.ContactEmail)
	req.Course = strings.TrimSpace(req.Course)

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(actor.ID) == "" {
		return nil, invalidInput("actor", "required")
	}

	now := s.now()
	lead := &models.Lead{
		CompanyName:     req.CompanyName,
		ContactPerson:   req.ContactPerson,
		ContactMobile:   req.ContactMobile,
		ContactEmail:    req.ContactEmail,
		Course:          req.Course,
		Value:           req.Value,
		SubmittedByID:   actor.ID,
		SubmittedByName: actor.Name,
		SubmittedByRole: string(actor.Role),
		Status:          models.LeadStatusNew,
		CreditShare:     models.FullCreditShare,
		CreditOwner:     true,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("创建线索失败: %w", err)
	}

	utils.LogInfo(map[string]interface{}{
		"leadId":      lead.ID,
		"company":     lead.CompanyName,
		"submittedBy": actor.ID,
	}, "线索创建成功")
	return lead, nil
}

// GetLead 按ID获取线索最新记录
func (s *LeadService) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: lead id is empty", ErrNotFound)
	}
	lead, err := s.store.GetLead(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "lead", id)
	}
	return lead, nil
}
