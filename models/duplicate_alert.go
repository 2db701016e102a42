package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertStatus 重复预警状态，pending -> resolved 单向
type AlertStatus string

const (
	AlertStatusPending  AlertStatus = "pending"
	AlertStatusResolved AlertStatus = "resolved"
)

// ResolutionAction 销售主管对重复预警的处理方式
type ResolutionAction string

const (
	ActionAssignToA   ResolutionAction = "assign_to_a"
	ActionAssignToB   ResolutionAction = "assign_to_b"
	ActionSplitCredit ResolutionAction = "split_credit"
	ActionDifferent   ResolutionAction = "different"
	ActionMerge       ResolutionAction = "merge"
	ActionDuplicate   ResolutionAction = "duplicate"
	ActionRejectBoth  ResolutionAction = "reject_both"
)

// ResolutionActions 全部合法的处理方式
var ResolutionActions = []ResolutionAction{
	ActionAssignToA,
	ActionAssignToB,
	ActionSplitCredit,
	ActionDifferent,
	ActionMerge,
	ActionDuplicate,
	ActionRejectBoth,
}

// ParseResolutionAction 解析处理方式，未知值返回错误
func ParseResolutionAction(s string) (ResolutionAction, error) {
	s = strings.TrimSpace(s)
	for _, a := range ResolutionActions {
		if strings.EqualFold(string(a), s) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown resolution action %q", s)
}

// DuplicateAlert 重复线索预警。LeadA 总是较早提交的线索，检测时确定后不再交换
type DuplicateAlert struct {
	ID                string       `json:"id" bson:"_id"`
	LeadAID           string       `json:"leadAId" bson:"leadaid"`
	LeadBID           string       `json:"leadBId" bson:"leadbid"`
	LeadAData         LeadSnapshot `json:"leadAData" bson:"leadadata"`
	LeadBData         LeadSnapshot `json:"leadBData" bson:"leadbdata"`
	SimilarityScore   float64      `json:"similarityScore" bson:"similarityscore"`
	SimilarityFactors []string     `json:"similarityFactors" bson:"similarityfactors"`
	DetectedAt        time.Time    `json:"detectedAt" bson:"detectedat"`
	Status            AlertStatus  `json:"status" bson:"status"`

	// 处理结果
	Action           ResolutionAction `json:"action,omitempty" bson:"action,omitempty"`
	ResolvedBy       *Actor           `json:"resolvedBy,omitempty" bson:"resolvedby,omitempty"`
	ResolvedAt       *time.Time       `json:"resolvedAt,omitempty" bson:"resolvedat,omitempty"`
	Notes            string           `json:"notes,omitempty" bson:"notes,omitempty"`
	CreditAssignedTo string           `json:"creditAssignedTo,omitempty" bson:"creditassignedto,omitempty"`
	DuplicateOf      string           `json:"duplicateOf,omitempty" bson:"duplicateof,omitempty"`
	DuplicateLeadID  string           `json:"duplicateLeadId,omitempty" bson:"duplicateleadid,omitempty"`
}

// IsPending 是否仍待处理
func (a *DuplicateAlert) IsPending() bool {
	return a.Status == AlertStatusPending
}

// 相似度量纲
const (
	ScoreScaleFraction = "fraction"
	ScoreScalePercent  = "percent"
)

// DetectorEvent 重复检测服务推送的事件
type DetectorEvent struct {
	LeadAID           string    `json:"lead_a_id" validate:"required,nefield=LeadBID"`
	LeadBID           string    `json:"lead_b_id" validate:"required"`
	SimilarityScore   float64   `json:"similarity_score" validate:"gte=0,lte=100"`
	SimilarityFactors []string  `json:"similarity_factors" validate:"dive,max=500"`
	DetectedAt        time.Time `json:"detected_at"`
	// ScoreScale 相似度的量纲：fraction 为 0-1，percent 为 0-100；为空时按数值推断
	ScoreScale        string    `json:"score_scale,omitempty" validate:"omitempty,oneof=fraction percent"`
}

// ComparisonRow 对比视图中的一行
type ComparisonRow struct {
	Field   string `json:"field"`
	Label   string `json:"label"`
	LeadA   string `json:"leadA"`
	LeadB   string `json:"leadB"`
	Differs bool   `json:"differs"`
}

// AlertDetail 预警详情，附带两条线索的最新记录
type AlertDetail struct {
	Alert      DuplicateAlert  `json:"alert"`
	LeadA      *Lead           `json:"leadA"`
	LeadB      *Lead           `json:"leadB"`
	Comparison []ComparisonRow `json:"comparison"`
}

// ResolveRequest 处理预警请求
type ResolveRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}
