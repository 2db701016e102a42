package service

import (
	"errors"
	"fmt"

	"github.com/BerniceZTT/leadops/models"
)

var (
	// ErrNotFound 预警或线索不存在
	ErrNotFound = errors.New("not found")
	// ErrAlreadyResolved 预警已被处理（并发处理中失败的一方也会得到该错误）
	ErrAlreadyResolved = errors.New("alert already resolved")
	// ErrInvalidAction 处理方式不在枚举范围内
	ErrInvalidAction = errors.New("invalid resolution action")
	// ErrInvalidTransition 违反线索状态保护规则
	ErrInvalidTransition = errors.New("invalid lead transition")
	// ErrConflict 线索在读取后被其他请求修改，预警仍为待处理
	ErrConflict = errors.New("lead changed during resolution")
	// ErrInvalidInput 请求参数不合法
	ErrInvalidInput = errors.New("invalid input")
)

// 状态保护规则名称
const (
	GuardClosedWonLead = "closed_won_lead"
	GuardArchivedLead  = "archived_lead"
	GuardRejectedLead  = "rejected_lead"
)

// TransitionError 描述具体被违反的保护规则
type TransitionError struct {
	Guard  string
	LeadID string
	Status models.LeadStatus
	Target models.LeadStatus
}

func (e *TransitionError) Error() string {
	if e.Status == e.Target {
		return fmt.Sprintf("%s: lead %s is %s and cannot receive credit", e.Guard, e.LeadID, e.Status)
	}
	return fmt.Sprintf("%s: lead %s cannot move from %s to %s", e.Guard, e.LeadID, e.Status, e.Target)
}

// Unwrap 使 errors.Is(err, ErrInvalidTransition) 成立
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InputError 带字段信息的参数错误
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}
