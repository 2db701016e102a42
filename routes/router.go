package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BerniceZTT/leadops/controllers"
	"github.com/BerniceZTT/leadops/middleware"
	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/repository"
	"github.com/BerniceZTT/leadops/service"
)

// Dependencies 路由所需的服务
type Dependencies struct {
	Store      repository.Store
	Duplicates *service.DuplicateService
	Leads      *service.LeadService
}

// NewRouter 创建带全局中间件的路由
func NewRouter(deps Dependencies, corsOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger("/api/health", "/metrics"))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.ErrorHandler(controllers.MapError))

	RegisterRoutes(router, deps)
	return router
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	RegisterLeadRoutes(router, controllers.NewLeadController(deps.Leads))
	RegisterDuplicateAlertRoutes(router, controllers.NewDuplicateAlertController(deps.Duplicates))

	// 健康检查路由
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 数据库状态检查路由
	router.GET("/api/db-status",
		middleware.AuthMiddleware(),
		middleware.RequireRoles(models.UserRoleSUPER_ADMIN),
		controllers.DatabaseStatus(deps.Store),
	)
}

// RegisterLeadRoutes 注册线索相关路由
func RegisterLeadRoutes(router *gin.Engine, ctl *controllers.LeadController) {
	leadRoutes := router.Group("/api/leads")
	leadRoutes.Use(middleware.AuthMiddleware())

	leadRoutes.POST("", ctl.CreateLead)
	leadRoutes.GET("/:id", ctl.GetLead)
}

// RegisterDuplicateAlertRoutes 注册重复预警相关路由
func RegisterDuplicateAlertRoutes(router *gin.Engine, ctl *controllers.DuplicateAlertController) {
	alertRoutes := router.Group("/api/duplicate-alerts")
	alertRoutes.Use(middleware.AuthMiddleware())

	// 检测服务推送
	alertRoutes.POST("", middleware.RequireRoles(models.UserRoleDETECTOR), ctl.Ingest)

	review := alertRoutes.Group("")
	review.Use(middleware.RequireRoles(models.UserRoleSALES_HEAD))
	review.GET("/pending", ctl.ListPending)
	review.GET("/resolved", ctl.ListResolved)
	review.GET("/:id", ctl.GetDetail)
	review.GET("/:id/resolution", ctl.GetResolution)
	review.POST("/:id/resolve", ctl.Resolve)
}
