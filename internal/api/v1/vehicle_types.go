package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/importer"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
)

type fieldRequest struct {
	Key       string   `json:"key" binding:"required,max=64"`
	Label     string   `json:"label" binding:"required,max=200"`
	FieldType string   `json:"field_type" binding:"required,oneof=text number date email year select boolean"`
	Required  bool     `json:"required"`
	Options   []string `json:"options"`
	SortOrder int      `json:"sort_order"`
}

func (r fieldRequest) model(vehicleTypeID int64) model.VehicleTypeField {
	return model.VehicleTypeField{
		VehicleTypeID: vehicleTypeID,
		Key:           strings.TrimSpace(r.Key),
		Label:         strings.TrimSpace(r.Label),
		FieldType:     r.FieldType,
		Required:      r.Required,
		Options:       r.Options,
		SortOrder:     r.SortOrder,
	}
}

type createVehicleTypeRequest struct {
	Name        string         `json:"name" binding:"required,max=100"`
	Slug        string         `json:"slug" binding:"omitempty,max=100"`
	Description string         `json:"description" binding:"max=1000"`
	Fields      []fieldRequest `json:"fields" binding:"dive"`
}

type updateVehicleTypeRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Slug        *string `json:"slug" binding:"omitempty,min=1,max=100"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
}

// ListVehicleTypes 返回租户的车辆类型及字段
// GET /api/v1/vehicle-types
func (h *Handler) ListVehicleTypes(c *gin.Context) {
	types, err := h.store.ListVehicleTypes(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if types == nil {
		types = []model.VehicleType{}
	}
	c.JSON(http.StatusOK, types)
}

// CreateVehicleType 创建车辆类型及其初始字段
// POST /api/v1/vehicle-types
func (h *Handler) CreateVehicleType(c *gin.Context) {
	var req createVehicleTypeRequest
	if !bind(c, &req) {
		return
	}

	vt := &model.VehicleType{
		TenantID:    middleware.TenantID(c),
		Name:        strings.TrimSpace(req.Name),
		Slug:        req.Slug,
		Description: req.Description,
	}
	if vt.Slug == "" {
		vt.Slug = importer.Slugify(vt.Name)
	}
	for i, f := range req.Fields {
		field := f.model(0)
		if field.SortOrder == 0 {
			field.SortOrder = i + 1
		}
		vt.Fields = append(vt.Fields, field)
	}
	if _, err := fields.NewSchema(vt.Fields); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.CreateVehicleType(c.Request.Context(), vt); err != nil {
		h.respondError(c, err)
		return
	}
	if vt.Fields == nil {
		vt.Fields = []model.VehicleTypeField{}
	}
	h.logger.Info("vehicle type created", zap.Int64("tenant_id", vt.TenantID), zap.Int64("vehicle_type_id", vt.ID), zap.String("slug", vt.Slug))
	c.JSON(http.StatusCreated, vt)
}

// GetVehicleType 返回单个车辆类型
// GET /api/v1/vehicle-types/:id
func (h *Handler) GetVehicleType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	vt, err := h.store.GetVehicleType(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vt)
}

// UpdateVehicleType 修改名称、slug 或描述
// PATCH /api/v1/vehicle-types/:id
func (h *Handler) UpdateVehicleType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateVehicleTypeRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	vt, err := h.store.GetVehicleType(ctx, middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if req.Name != nil {
		vt.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		vt.Slug = *req.Slug
	}
	if req.Description != nil {
		vt.Description = *req.Description
	}
	if err := h.store.UpdateVehicleType(ctx, vt); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vt)
}

// DeleteVehicleType 删除未被车辆使用的类型
// DELETE /api/v1/vehicle-types/:id
func (h *Handler) DeleteVehicleType(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteVehicleType(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddField 为车辆类型追加自定义字段
// POST /api/v1/vehicle-types/:id/fields
func (h *Handler) AddField(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req fieldRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	vt, err := h.store.GetVehicleType(ctx, tenantID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	field := req.model(id)
	if _, err := fields.NewSchema(append(vt.Fields, field)); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.AddField(ctx, tenantID, &field); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, field)
}

// DeleteField 删除字段及其存储的值
// DELETE /api/v1/vehicle-types/:id/fields/:fieldId
func (h *Handler) DeleteField(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fieldID, ok := pathID(c, "fieldId")
	if !ok {
		return
	}
	if err := h.store.DeleteField(c.Request.Context(), middleware.TenantID(c), id, fieldID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportTemplate 输出车辆类型的 xlsx 导入模板
// GET /api/v1/vehicle-types/:id/import-template
func (h *Handler) ImportTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, content, err := h.buildTemplate(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.Data(http.StatusOK, xlsxContentType, content)
}

// ImportTemplateLink 生成模板并返回一次性下载链接
// POST /api/v1/vehicle-types/:id/import-template/link
func (h *Handler) ImportTemplateLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	name, content, err := h.buildTemplate(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresAt := h.downloads.put(name, xlsxContentType, content, downloadTTL)
	c.JSON(http.StatusOK, gin.H{
		"download_url": strings.TrimRight(h.basePath, "/") + "/downloads/" + token,
		"file_name":    name,
		"expires_at":   expiresAt,
	})
}

func (h *Handler) buildTemplate(ctx context.Context, tenantID, vehicleTypeID int64) (string, []byte, error) {
	vt, err := h.store.GetVehicleType(ctx, tenantID, vehicleTypeID)
	if err != nil {
		return "", nil, err
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		return "", nil, err
	}
	f, err := importer.BuildTemplate(vt, schema)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, err
	}
	return importer.TemplateFilename(vt), buf.Bytes(), nil
}
