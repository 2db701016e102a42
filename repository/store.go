package repository

import (
	"context"
	"errors"

	"github.com/BerniceZTT/leadops/models"
)

const (
	// 集合名
	LeadsCollection       = "leads"
	AlertsCollection      = "duplicateAlerts"
	ResolutionsCollection = "duplicateResolutions"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrAlertNotPending 条件更新失败：预警已不是 pending
	ErrAlertNotPending = errors.New("alert is no longer pending")
	// ErrLeadVersionMismatch 条件更新失败：线索在读取后被修改
	ErrLeadVersionMismatch = errors.New("lead was modified concurrently")
)

// LeadUpdate 处理预警时对线索的条件更新，仅在版本号仍为 ExpectedVersion 时生效
type LeadUpdate struct {
	Lead            *models.Lead
	ExpectedVersion int64
}

// Store 线索、重复预警与处理记录的持久化接口
type Store interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)

	CreateAlert(ctx context.Context, alert *models.DuplicateAlert) error
	GetAlert(ctx context.Context, id string) (*models.DuplicateAlert, error)
	// FindPendingAlertByPair 查找覆盖同一对线索（不区分顺序）的待处理预警，不存在返回 nil, nil
	FindPendingAlertByPair(ctx context.Context, leadA, leadB string) (*models.DuplicateAlert, error)
	// ListAlerts pending 按检测时间升序，resolved 按处理时间降序；limit<=0 表示不限
	ListAlerts(ctx context.Context, status models.AlertStatus, limit int) ([]models.DuplicateAlert, error)

	// ApplyResolution 在单个事务中完成：预警 pending->resolved 的条件更新、线索条件更新、写入处理记录。
	// 任一步失败则全部回滚。
	ApplyResolution(ctx context.Context, alert *models.DuplicateAlert, leads []LeadUpdate, res *models.Resolution) error
	GetResolution(ctx context.Context, alertID string) (*models.Resolution, error)

	Status(ctx context.Context) (*models.DatabaseStatus, error)
	Close(ctx context.Context) error
}
