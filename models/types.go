package models

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleSUPER_ADMIN     UserRole = "SUPER_ADMIN"     // 超级管理员
	UserRoleSALES_HEAD      UserRole = "SALES_HEAD"      // 销售主管，负责处理重复线索
	UserRoleSALES_EXECUTIVE UserRole = "SALES_EXECUTIVE" // 销售人员，提交线索
	UserRoleDETECTOR        UserRole = "DETECTOR"        // 重复检测服务账号
)

// IsValid 角色是否合法
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleSUPER_ADMIN, UserRoleSALES_HEAD, UserRoleSALES_EXECUTIVE, UserRoleDETECTOR:
		return true
	}
	return false
}

// 通用响应结构
type (
	// ListResponse 列表响应
	ListResponse struct {
		Items interface{} `json:"items"`
		Total int         `json:"total"`
	}

	// DatabaseStatus 数据库状态
	DatabaseStatus struct {
		Driver      string           `json:"driver"`
		Collections map[string]int64 `json:"collections"`
	}
)
