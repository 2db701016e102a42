package service

import (
	"fmt"
	"time"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/repository"
)

// SplitCreditShare 平分业绩时每条线索的比例
const SplitCreditShare = 50

// LeadChange 一条线索处理前后的状态
type LeadChange struct {
	Before *models.Lead
	After  *models.Lead
}

// Plan 某个处理方式对两条线索产生的全部修改，只在事务中落库
type Plan struct {
	Action           models.ResolutionAction
	Changes          []LeadChange
	CreditAssignedTo string
	CanonicalLeadID  string
	DuplicateLeadID  string
	Credit           map[string]int
}

// LeadUpdates 转换为存储层的条件更新
func (p *Plan) LeadUpdates() []repository.LeadUpdate {
	updates := make([]repository.LeadUpdate, 0, len(p.Changes))
	for _, c := range p.Changes {
		updates = append(updates, repository.LeadUpdate{
			Lead:            c.After,
			ExpectedVersion: c.Before.Version,
		})
	}
	return updates
}

// PlanResolution 计算处理方式的效果，不做任何写入。
// 预警非待处理返回 ErrAlreadyResolved，未知方式返回 ErrInvalidAction，
// 拒绝或归档已成交线索、改动已归档线索的状态、给已归档或已拒绝线索分配业绩返回 *TransitionError。
func PlanResolution(alert *models.DuplicateAlert, leadA, leadB *models.Lead, action models.ResolutionAction, now time.Time) (*Plan, error) {
	if alert == nil {
		return nil, fmt.Errorf("%w: alert", ErrNotFound)
	}
	if !alert.IsPending() {
		return nil, fmt.Errorf("%w: alert %s", ErrAlreadyResolved, alert.ID)
	}
	if _, err := models.ParseResolutionAction(string(action)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if leadA == nil {
		return nil, fmt.Errorf("%w: lead %s", ErrNotFound, alert.LeadAID)
	}
	if leadB == nil {
		return nil, fmt.Errorf("%w: lead %s", ErrNotFound, alert.LeadBID)
	}

	a := *leadA
	b := *leadB
	plan := &Plan{Action: action}

	switch action {
	case models.ActionAssignToA:
		giveFullCredit(&a)
		reject(&b)
		plan.CreditAssignedTo = a.ID
		plan.Credit = map[string]int{a.ID: models.FullCreditShare, b.ID: 0}
	case models.ActionAssignToB:
		reject(&a)
		giveFullCredit(&b)
		plan.CreditAssignedTo = b.ID
		plan.Credit = map[string]int{a.ID: 0, b.ID: models.FullCreditShare}
	case models.ActionSplitCredit:
		a.CreditShare, a.CreditOwner = SplitCreditShare, true
		b.CreditShare, b.CreditOwner = SplitCreditShare, true
		plan.Credit = map[string]int{a.ID: SplitCreditShare, b.ID: SplitCreditShare}
	case models.ActionDifferent:
		// 两条线索均独立有效
	case models.ActionMerge:
		b.Status = models.LeadStatusArchived
		b.DuplicateOf = a.ID
		b.CreditShare, b.CreditOwner = 0, false
		plan.CanonicalLeadID = a.ID
		plan.DuplicateLeadID = b.ID
	case models.ActionDuplicate:
		reject(&b)
		b.DuplicateOf = a.ID
		plan.CanonicalLeadID = a.ID
		plan.DuplicateLeadID = b.ID
	case models.ActionRejectBoth:
		reject(&a)
		reject(&b)
	}

	for _, pair := range [][2]*models.Lead{{leadA, &a}, {leadB, &b}} {
		before, after := pair[0], pair[1]
		if err := checkTransition(before, after.Status); err != nil {
			return nil, err
		}
		if err := checkCreditGain(before, after); err != nil {
			return nil, err
		}
		if !leadChanged(before, after) {
			continue
		}
		after.Version = before.Version + 1
		after.UpdatedAt = now
		after.ResolvedByAlert = alert.ID
		plan.Changes = append(plan.Changes, LeadChange{Before: before, After: after})
	}

	return plan, nil
}

func giveFullCredit(l *models.Lead) {
	l.CreditShare = models.FullCreditShare
	l.CreditOwner = true
}

func reject(l *models.Lead) {
	l.Status = models.LeadStatusRejected
	l.CreditShare = 0
	l.CreditOwner = false
}

// checkTransition 状态保护规则
func checkTransition(lead *models.Lead, target models.LeadStatus) error {
	if lead.Status == target {
		return nil
	}
	switch lead.Status {
	case models.LeadStatusClosed:
		if target == models.LeadStatusRejected || target == models.LeadStatusArchived {
			return &TransitionError{Guard: GuardClosedWonLead, LeadID: lead.ID, Status: lead.Status, Target: target}
		}
	case models.LeadStatusArchived:
		return &TransitionError{Guard: GuardArchivedLead, LeadID: lead.ID, Status: lead.Status, Target: target}
	}
	return nil
}

// checkCreditGain 已归档或已拒绝的线索不能重新获得业绩
func checkCreditGain(before, after *models.Lead) error {
	gained := after.CreditShare > before.CreditShare || (after.CreditOwner && !before.CreditOwner)
	if !gained {
		return nil
	}
	switch before.Status {
	case models.LeadStatusArchived:
		return &TransitionError{Guard: GuardArchivedLead, LeadID: before.ID, Status: before.Status, Target: after.Status}
	case models.LeadStatusRejected:
		return &TransitionError{Guard: GuardRejectedLead, LeadID: before.ID, Status: before.Status, Target: after.Status}
	}
	return nil
}

func leadChanged(before, after *models.Lead) bool {
	return before.Status != after.Status ||
		before.CreditShare != after.CreditShare ||
		before.CreditOwner != after.CreditOwner ||
		before.DuplicateOf != after.DuplicateOf
}
