package models

import "time"

// Actor 操作人身份，由认证中间件显式传入
type Actor struct {
	ID   string   `json:"id" bson:"id"`
	Name string   `json:"name" bson:"name"`
	Role UserRole `json:"role" bson:"role"`
}

// Resolution 预警处理记录，创建后不可修改，与已处理预警一一对应
type Resolution struct {
	ID               string           `json:"id" bson:"_id"`
	AlertID          string           `json:"alertId" bson:"alertid"`
	Action           ResolutionAction `json:"action" bson:"action"`
	Actor            Actor            `json:"actor" bson:"actor"`
	Notes            string           `json:"notes,omitempty" bson:"notes,omitempty"`
	LeadAID          string           `json:"leadAId" bson:"leadaid"`
	LeadBID          string           `json:"leadBId" bson:"leadbid"`
	CreditAssignedTo string           `json:"creditAssignedTo,omitempty" bson:"creditassignedto,omitempty"`
	CanonicalLeadID  string           `json:"canonicalLeadId,omitempty" bson:"canonicalleadid,omitempty"`
	DuplicateLeadID  string           `json:"duplicateLeadId,omitempty" bson:"duplicateleadid,omitempty"`
	Credit           map[string]int   `json:"credit,omitempty" bson:"credit,omitempty"`
	CreatedAt        time.Time        `json:"createdAt" bson:"createdat"`
}
