package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"
)

// LeadController 线索接口
type LeadController struct {
	svc *service.LeadService
}

// NewLeadController 创建线索控制器
func NewLeadController(svc *service.LeadService) *LeadController {
	return &LeadController{svc: svc}
}

// CreateLead 提交线索
func (ctl *LeadController) CreateLead(c *gin.Context) {
	actor, err := utils.GetActor(c)
	if err != nil {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return
	}

	var req models.LeadCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateBadRequestError("无效的请求数据: "+err.Error()))
		return
	}

	lead, err := ctl.svc.CreateLead(c.Request.Context(), req, actor)
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, lead, "线索创建成功", http.StatusCreated)
}

// GetLead 获取线索详情
func (ctl *LeadController) GetLead(c *gin.Context) {
	lead, err := ctl.svc.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, MapError(err))
		return
	}

	utils.SuccessResponse(c, lead, "")
}
