package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/metrics"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
)

type importForm struct {
	VehicleTypeID int64  `form:"vehicle_type_id" binding:"required,gt=0"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PerPage       int    `form:"per_page" binding:"omitempty,min=1"`
	EditedRows    string `form:"edited_rows"`
}

type detectTypeRequest struct {
	Filename string `json:"filename" form:"filename" binding:"required,max=255"`
}

type listImportsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// upload 解析后的导入请求
type upload struct {
	form        importForm
	vehicleType *model.VehicleType
	parsed      *importer.Parsed
	edited      model.EditedRows
}

// readUpload 绑定 multipart 导入表单并按车辆类型 schema 解析文件
// 失败时响应已写出
func (h *Handler) readUpload(c *gin.Context) (*upload, bool) {
	h.limitBody(c)
	var u upload
	if !bind(c, &u.form) {
		return nil, false
	}
	if u.form.EditedRows != "" {
		if err := json.Unmarshal([]byte(u.form.EditedRows), &u.edited); err != nil {
			badRequest(c, "edited_rows must be a JSON object keyed by row number")
			return nil, false
		}
	}
	fh, ok := h.formFile(c, "file", false)
	if !ok {
		return nil, false
	}

	vt, err := h.store.GetVehicleType(c.Request.Context(), middleware.TenantID(c), u.form.VehicleTypeID)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	defer f.Close()
	parsed, err := importer.Parse(fh.Filename, f, schema)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	u.vehicleType = vt
	u.parsed = parsed
	return &u, true
}

// ImportPreview 校验上传文件并返回一页数据。计数覆盖应用 edited_rows 后的整个文件
// POST /api/v1/vehicles/import/preview (multipart)
func (h *Handler) ImportPreview(c *gin.Context) {
	u, ok := h.readUpload(c)
	if !ok {
		return
	}
	result := u.parsed.Preview(importer.PreviewOptions{
		Page:    u.form.Page,
		PerPage: u.perPage(h.importCfg.DefaultPerPage),
		MaxPer:  h.importCfg.MaxPerPage,
		Edited:  u.edited,
	})
	metrics.ImportRows.WithLabelValues(metrics.StagePreviewed).Add(float64(result.TotalRows))
	c.JSON(http.StatusOK, result)
}

func (u *upload) perPage(def int) int {
	if u.form.PerPage > 0 {
		return u.form.PerPage
	}
	return def
}

func (u *upload) options(tenantID int64) importer.ImportOptions {
	return importer.ImportOptions{
		TenantID:    tenantID,
		VehicleType: u.vehicleType,
		Parsed:      u.parsed,
		Edited:      u.edited,
	}
}

// Import 在一个事务中提交上传文件的所有有效行
// POST /api/v1/vehicles/import (multipart)
func (h *Handler) Import(c *gin.Context) {
	u, ok := h.readUpload(c)
	if !ok {
		return
	}
	result, err := h.coordinator.Run(c.Request.Context(), u.options(middleware.TenantID(c)), nil)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportStream 提交上传文件并以 SSE 推送进度
// 最后一个事件为 done（携带导入结果）或 error
// POST /api/v1/vehicles/import/stream (multipart)
func (h *Handler) ImportStream(c *gin.Context) {
	u, ok := h.readUpload(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	events := h.coordinator.Import(c.Request.Context(), u.options(middleware.TenantID(c)))
	for event := range events {
		eventData, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}
}

// DetectType 根据文件名猜测上传文件的车辆类型
// POST /api/v1/vehicles/import/detect-type
func (h *Handler) DetectType(c *gin.Context) {
	var req detectTypeRequest
	if !bind(c, &req) {
		return
	}
	types, err := h.store.ListVehicleTypes(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.detector.Detect(req.Filename, types))
}

// ListImports 返回租户最近的导入记录
// GET /api/v1/imports
func (h *Handler) ListImports(c *gin.Context) {
	var q listImportsQuery
	if !bind(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	logs, err := h.store.ListImportLogs(c.Request.Context(), middleware.TenantID(c), q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
