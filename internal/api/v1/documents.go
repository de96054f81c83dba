package v1

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

type createDocumentForm struct {
	Name               string `form:"name" binding:"required,max=200"`
	DocumentType       string `form:"document_type" binding:"required,oneof=registration insurance inspection permit other"`
	ExpiryDate         string `form:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	ComplianceRecordID int64  `form:"compliance_record_id" binding:"omitempty,gt=0"`
}

// ListDocuments 返回车辆的文档，按时间倒序
// GET /api/v1/vehicles/:id/documents
func (h *Handler) ListDocuments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	if _, err := h.store.GetVehicle(ctx, tenantID, id); err != nil {
		h.respondError(c, err)
		return
	}
	docs, err := h.store.ListDocuments(ctx, store.DocumentQuery{TenantID: tenantID, VehicleID: &id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.withURLs(docs))
}

// CreateDocument 为车辆上传文件
// POST /api/v1/vehicles/:id/documents (multipart)
func (h *Handler) CreateDocument(c *gin.Context) {
	vehicleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.limitBody(c)
	var form createDocumentForm
	if !bind(c, &form) {
		return
	}
	fh, ok := h.formFile(c, "file", false)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	doc := model.Document{
		VehicleID:    vehicleID,
		Name:         strings.TrimSpace(form.Name),
		DocumentType: form.DocumentType,
		ExpiryDate:   parseFormDate(form.ExpiryDate),
	}
	if form.ComplianceRecordID > 0 {
		rec, err := h.store.GetComplianceRecord(ctx, tenantID, form.ComplianceRecordID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if rec.VehicleID != vehicleID {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "compliance record belongs to another vehicle"})
			return
		}
		doc.ComplianceRecordID = &rec.ID
	}

	created, err := h.storeDocument(c, fh, doc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// storeDocument 保存上传文件及其元数据，元数据写入失败时删除文件
func (h *Handler) storeDocument(c *gin.Context, fh *multipart.FileHeader, doc model.Document) (*model.Document, error) {
	saved, err := h.saveUpload(c, fh)
	if err != nil {
		return nil, err
	}
	doc.TenantID = middleware.TenantID(c)
	doc.FilePath = saved.RelPath
	doc.FileName = saved.FileName
	doc.MimeType = saved.MimeType
	doc.FileSize = saved.Size
	if doc.Name == "" {
		doc.Name = saved.FileName
	}
	if err := h.store.CreateDocument(c.Request.Context(), &doc); err != nil {
		h.removeFile(saved.RelPath)
		return nil, err
	}
	doc.URL = h.storage.URL(doc.FilePath)
	h.logger.Info("document uploaded",
		zap.Int64("tenant_id", doc.TenantID),
		zap.Int64("vehicle_id", doc.VehicleID),
		zap.Int64("document_id", doc.ID),
		zap.Int64("size", doc.FileSize),
	)
	return &doc, nil
}

// DeleteDocument 删除文档及其文件
// DELETE /api/v1/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.store.DeleteDocument(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.removeFile(doc.FilePath)
	c.Status(http.StatusNoContent)
}
