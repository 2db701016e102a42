package models

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus 线索生命周期状态
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "New"
	LeadStatusInProgress   LeadStatus = "In Progress"
	LeadStatusProposalSent LeadStatus = "Proposal Sent"
	LeadStatusClosed       LeadStatus = "Closed" // 已成交
	LeadStatusDropped      LeadStatus = "Dropped"
	LeadStatusArchived     LeadStatus = "Archived" // 仅由合并产生
	LeadStatusRejected     LeadStatus = "Rejected"
)

var leadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusInProgress,
	LeadStatusProposalSent,
	LeadStatusClosed,
	LeadStatusDropped,
	LeadStatusArchived,
	LeadStatusRejected,
}

// ParseLeadStatus 解析线索状态（忽略大小写）
func ParseLeadStatus(s string) (LeadStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range leadStatuses {
		if strings.EqualFold(string(st), s) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown lead status %q", s)
}

// FullCreditShare 单条线索获得的全部业绩比例
const FullCreditShare = 100

// Lead 线索（实时记录，可变）
type Lead struct {
	ID              string     `json:"id" bson:"_id" db:"id"`
	CompanyName     string     `json:"companyName" bson:"companyname" db:"company_name"`
	ContactPerson   string     `json:"contactPerson" bson:"contactperson" db:"contact_person"`
	ContactMobile   string     `json:"contactMobile" bson:"contactmobile" db:"contact_mobile"`
	ContactEmail    string     `json:"contactEmail" bson:"contactemail" db:"contact_email"`
	Course          string     `json:"course" bson:"course" db:"course"`
	Value           float64    `json:"value" bson:"value" db:"value"`
	SubmittedByID   string     `json:"submittedById" bson:"submittedbyid" db:"submitted_by_id"`
	SubmittedByName string     `json:"submittedByName" bson:"submittedbyname" db:"submitted_by_name"`
	SubmittedByRole string     `json:"submittedByRole" bson:"submittedbyrole" db:"submitted_by_role"`
	Status          LeadStatus `json:"status" bson:"status" db:"status"`

	// 业绩归属
	CreditShare     int    `json:"creditShare" bson:"creditshare" db:"credit_share"`
	CreditOwner     bool   `json:"creditOwner" bson:"creditowner" db:"credit_owner"`
	DuplicateOf     string `json:"duplicateOf,omitempty" bson:"duplicateof,omitempty" db:"duplicate_of"`
	ResolvedByAlert string `json:"resolvedByAlert,omitempty" bson:"resolvedbyalert,omitempty" db:"resolved_by_alert"`

	Version   int64     `json:"version" bson:"version" db:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"createdat" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedat" db:"updated_at"`
}

// Snapshot 生成检测时刻的只读快照
func (l *Lead) Snapshot() LeadSnapshot {
	return LeadSnapshot{
		ID:              l.ID,
		CompanyName:     l.CompanyName,
		ContactPerson:   l.ContactPerson,
		ContactMobile:   l.ContactMobile,
		ContactEmail:    l.ContactEmail,
		Course:          l.Course,
		Value:           l.Value,
		SubmittedByID:   l.SubmittedByID,
		SubmittedByName: l.SubmittedByName,
		SubmittedByRole: l.SubmittedByRole,
		Status:          l.Status,
		CreatedAt:       l.CreatedAt,
	}
}

// LeadSnapshot 检测时冻结的线索副本，不随线索更新
type LeadSnapshot struct {
	ID              string     `json:"id" bson:"id"`
	CompanyName     string     `json:"companyName" bson:"companyname"`
	ContactPerson   string     `json:"contactPerson" bson:"contactperson"`
	ContactMobile   string     `json:"contactMobile" bson:"contactmobile"`
	ContactEmail    string     `json:"contactEmail" bson:"contactemail"`
	Course          string     `json:"course" bson:"course"`
	Value           float64    `json:"value" bson:"value"`
	SubmittedByID   string     `json:"submittedById" bson:"submittedbyid"`
	SubmittedByName string     `json:"submittedByName" bson:"submittedbyname"`
	SubmittedByRole string     `json:"submittedByRole" bson:"submittedbyrole"`
	Status          LeadStatus `json:"status" bson:"status"`
	CreatedAt       time.Time  `json:"createdAt" bson:"createdat"`
}

// LeadCreateRequest 销售提交线索请求
type LeadCreateRequest struct {
	CompanyName   string  `json:"companyName" validate:"required,max=200"`
	ContactPerson string  `json:"contactPerson" validate:"required,max=100"`
	ContactMobile string  `json:"contactMobile" validate:"omitempty,max=20"`
	ContactEmail  string  `json:"contactEmail" validate:"omitempty,email"`
	Course        string  `json:"course" validate:"max=500"`
	Value         float64 `json:"value" validate:"gte=0"`
}
