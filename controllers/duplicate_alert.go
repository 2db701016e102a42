package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/leadops/metrics"
	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

const (
	defaultResolvedLimit = 50
	maxResolvedLimit     = 500
)

// DuplicateAlertController 重复预警接口
type DuplicateAlertController struct {
	svc *service.DuplicateService
}

// NewDuplicateAlertController 创建重复预警控制器
func NewDuplicateAlertController(svc *service.DuplicateService) *DuplicateAlertController {
	return &DuplicateAlertController{svc: svc}
}

// ListPending 获取待处理预警列表
func (ctl *DuplicateAlertController) ListPending(c *gin.Context) {
	alerts, err := ctl.svc.ListPendingAlerts(c.Request.Context())
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, models.ListResponse{Items: alerts, Total: len(alerts)}, "")
}

// ListResolved 获取已处理预警列表
func (ctl *DuplicateAlertController) ListResolved(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultResolvedLimit)))
	if err != nil || limit < 1 {
		limit = defaultResolvedLimit
	}
	if limit > maxResolvedLimit {
		limit = maxResolvedLimit
	}

	alerts, err := ctl.svc.ListResolvedAlerts(c.Request.Context(), limit)
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, models.ListResponse{Items: alerts, Total: len(alerts)}, "")
}

// GetDetail 获取预警详情及两条线索的最新记录
func (ctl *DuplicateAlertController) GetDetail(c *gin.Context) {
	detail, err := ctl.svc.GetAlertDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, detail, "")
}

// GetResolution 获取预警的处理记录
func (ctl *DuplicateAlertController) GetResolution(c *gin.Context) {
	res, err := ctl.svc.GetResolution(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, res, "")
}

// Resolve 处理预警
func (ctl *DuplicateAlertController) Resolve(c *gin.Context) {
	actor, err := utils.GetActor(c)
	if err != nil {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return
	}

	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求数据: "+err.Error()))
		return
	}

	alertID := c.Param("id")
	utils.LogInfo(map[string]interface{}{
		"alertId": alertID,
		"action":  req.Action,
		"user":    actor.ID,
	}, "处理重复预警")

	res, err := ctl.svc.ResolveAlert(c.Request.Context(), alertID, req.Action, req.Notes, actor)
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, res, "预警已处理")
}

// Ingest 接收重复检测服务推送的预警
func (ctl *DuplicateAlertController) Ingest(c *gin.Context) {
	var event models.DetectorEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		metrics.RecordIngest(metrics.SourceHTTP, metrics.OutcomeInvalidInput)
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求数据: "+err.Error()))
		return
	}

	alert, created, err := ctl.svc.IngestAlert(c.Request.Context(), event, metrics.SourceHTTP)
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	if !created {
		utils.SuccessResponse(c, alert, "该线索对已存在待处理预警")
		return
	}
	utils.SuccessResponse(c, alert, "预警已创建", http.StatusCreated)
}
