package controllers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"
)

// StatusReporter 提供存储状态
type StatusReporter interface {
	Status(ctx context.Context) (*models.DatabaseStatus, error)
}

// DatabaseStatus 数据库状态检查
func DatabaseStatus(store StatusReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := store.Status(c.Request.Context())
		if err != nil {
			utils.ErrorResponse(c, "获取数据库状态失败: "+err.Error(), 500)
			return
		}
		utils.SuccessResponse(c, status, "")
	}
}
