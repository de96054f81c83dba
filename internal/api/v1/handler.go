package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetcomply/internal/compliance"
	"fleetcomply/internal/config"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/storage"
	"fleetcomply/internal/store"
)

// Deps API 的依赖
type Deps struct {
	Store      *store.Store
	Compliance *compliance.Service
	Storage    *storage.Local
	Limiter    *middleware.TenantLimiter
	Import     config.ImportConfig
	MaxUpload  int64 // 字节
	Logger     *zap.Logger
}

// Handler 处理 /api/v1
type Handler struct {
	store       *store.Store
	compliance  *compliance.Service
	coordinator *importer.Coordinator
	detector    *importer.Detector
	storage     *storage.Local
	limiter     *middleware.TenantLimiter
	importCfg   config.ImportConfig
	maxUpload   int64
	downloads   *downloadStore
	basePath    string
	logger      *zap.Logger
}

// NewHandler 创建 v1 API 处理器
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewTenantLimiter(0, 1)
	}
	return &Handler{
		store:       d.Store,
		compliance:  d.Compliance,
		coordinator: importer.NewCoordinator(d.Store, logger),
		detector:    importer.NewDetector(),
		storage:     d.Storage,
		limiter:     limiter,
		importCfg:   d.Import,
		maxUpload:   d.MaxUpload,
		downloads:   newDownloadStore(),
		logger:      logger,
	}
}

// RegisterRoutes 在 router 上注册 v1 路由（挂载于 /api/v1）
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	h.basePath = router.BasePath()

	// 无需认证：浏览器直接打开的链接
	router.GET("/files/*path", h.ServeFile)
	router.GET("/downloads/:token", h.Download)

	api := router.Group("", middleware.Auth(h.store))
	uploads := middleware.RateLimit(h.limiter)

	api.DELETE("/session", h.Logout)

	// 车辆类型及字段 schema
	api.GET("/vehicle-types", h.ListVehicleTypes)
	api.POST("/vehicle-types", h.CreateVehicleType)
	api.GET("/vehicle-types/:id", h.GetVehicleType)
	api.PATCH("/vehicle-types/:id", h.UpdateVehicleType)
	api.DELETE("/vehicle-types/:id", h.DeleteVehicleType)
	api.POST("/vehicle-types/:id/fields", h.AddField)
	api.DELETE("/vehicle-types/:id/fields/:fieldId", h.DeleteField)
	api.GET("/vehicle-types/:id/import-template", h.ImportTemplate)
	api.POST("/vehicle-types/:id/import-template/link", h.ImportTemplateLink)

	// 批量导入
	api.POST("/vehicles/import/preview", uploads, h.ImportPreview)
	api.POST("/vehicles/import", uploads, h.Import)
	api.POST("/vehicles/import/stream", uploads, h.ImportStream)
	api.POST("/vehicles/import/detect-type", h.DetectType)
	api.GET("/imports", h.ListImports)

	// 车辆
	api.GET("/vehicles", h.ListVehicles)
	api.POST("/vehicles", h.CreateVehicle)
	api.GET("/vehicles/:id", h.GetVehicle)
	api.PATCH("/vehicles/:id", h.UpdateVehicle)
	api.DELETE("/vehicles/:id", h.DeleteVehicle)

	// 合规
	api.GET("/compliance-types", h.ListComplianceTypes)
	api.POST("/compliance-types", h.CreateComplianceType)
	api.GET("/vehicles/:id/compliance/status", h.ComplianceStatus)
	api.GET("/vehicles/:id/compliance/records", h.ListComplianceRecords)
	api.POST("/vehicles/:id/compliance/records", uploads, h.CreateComplianceRecord)
	api.DELETE("/compliance/records/:id", h.DeleteComplianceRecord)

	// 文档
	api.GET("/vehicles/:id/documents", h.ListDocuments)
	api.POST("/vehicles/:id/documents", uploads, h.CreateDocument)
	api.DELETE("/documents/:id", h.DeleteDocument)

	// 通知
	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/read-all", h.MarkAllNotificationsRead)
	api.POST("/notifications/:id/read", h.MarkNotificationRead)
}
