package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

const (
	defaultVehiclePage = 50
	maxVehiclePage     = 500
)

type createVehicleRequest struct {
	VehicleTypeID      int64             `json:"vehicle_type_id" binding:"required,gt=0"`
	Name               string            `json:"name" binding:"required,max=200"`
	RegistrationNumber string            `json:"registration_number" binding:"max=64"`
	Status             string            `json:"status" binding:"omitempty,oneof=active inactive"`
	FieldValues        map[string]string `json:"field_values"`
}

type updateVehicleRequest struct {
	Name               *string           `json:"name" binding:"omitempty,min=1,max=200"`
	RegistrationNumber *string           `json:"registration_number" binding:"omitempty,max=64"`
	Status             *string           `json:"status" binding:"omitempty,oneof=active inactive"`
	FieldValues        map[string]string `json:"field_values"` // 合并；"" 清空该值
}

type listVehiclesQuery struct {
	VehicleTypeID int64  `form:"vehicle_type_id" binding:"omitempty,gt=0"`
	Status        string `form:"status" binding:"omitempty,oneof=active inactive"`
	Keyword       string `form:"q"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PerPage       int    `form:"per_page" binding:"omitempty,min=1"`
}

// ListVehicles 返回过滤后的一页车辆
// GET /api/v1/vehicles
func (h *Handler) ListVehicles(c *gin.Context) {
	var q listVehiclesQuery
	if !bind(c, &q) {
		return
	}
	page := max(q.Page, 1)
	perPage := q.PerPage
	if perPage == 0 {
		perPage = defaultVehiclePage
	}
	perPage = min(perPage, maxVehiclePage)

	opts := store.VehicleQueryOptions{
		TenantID: middleware.TenantID(c),
		Keyword:  q.Keyword,
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}
	if q.VehicleTypeID > 0 {
		opts.VehicleTypeID = &q.VehicleTypeID
	}
	if q.Status != "" {
		opts.Status = &q.Status
	}

	ctx := c.Request.Context()
	total, err := h.store.CountVehicles(ctx, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	vehicles, err := h.store.ListVehicles(ctx, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for i := range vehicles {
		if err := h.annotate(ctx, &vehicles[i]); err != nil {
			h.respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"vehicles": vehicles,
		"pagination": model.Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: (total + perPage - 1) / perPage,
		},
	})
}

// CreateVehicle 创建车辆及其自定义字段值
// POST /api/v1/vehicles
func (h *Handler) CreateVehicle(c *gin.Context) {
	var req createVehicleRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	vt, err := h.store.GetVehicleType(ctx, tenantID, req.VehicleTypeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		h.respondError(c, err)
		return
	}
	values, errs := fields.FromKeyed(schema, req.FieldValues)
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return
	}

	in := &store.VehicleInput{
		Vehicle: model.Vehicle{
			TenantID:           tenantID,
			VehicleTypeID:      vt.ID,
			Name:               strings.TrimSpace(req.Name),
			RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
			Status:             req.Status,
		},
		Values: values.Stored(0),
	}
	if err := h.store.CreateVehicle(ctx, in); err != nil {
		h.respondError(c, err)
		return
	}
	v, err := h.store.GetVehicle(ctx, tenantID, in.Vehicle.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.annotate(ctx, v); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// GetVehicle 返回单辆车
// GET /api/v1/vehicles/:id
func (h *Handler) GetVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	v, err := h.store.GetVehicle(ctx, middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.annotate(ctx, v); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// UpdateVehicle 部分更新车辆。字段值与已存储的值合并后整体校验
// PATCH /api/v1/vehicles/:id
func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateVehicleRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	v, err := h.store.GetVehicle(ctx, tenantID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	vt, err := h.store.GetVehicleType(ctx, tenantID, v.VehicleTypeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		h.respondError(c, err)
		return
	}

	merged := make(map[string]string, len(v.FieldValues)+len(req.FieldValues))
	for k, val := range v.FieldValues {
		if _, known := schema.ByKey(k); known {
			merged[k] = val
		}
	}
	for k, val := range req.FieldValues {
		merged[k] = val
	}
	values, errs := fields.FromKeyed(schema, merged)
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return
	}

	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.RegistrationNumber != nil {
		v.RegistrationNumber = strings.TrimSpace(*req.RegistrationNumber)
	}
	if req.Status != nil {
		v.Status = *req.Status
	}
	if err := h.store.UpdateVehicle(ctx, &store.VehicleInput{Vehicle: *v, Values: values.Stored(v.ID)}); err != nil {
		h.respondError(c, err)
		return
	}
	updated, err := h.store.GetVehicle(ctx, tenantID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.annotate(ctx, updated); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteVehicle 删除车辆及其所有关联数据，存储的文档文件也一并删除
// DELETE /api/v1/vehicles/:id
func (h *Handler) DeleteVehicle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	docs, err := h.store.ListDocuments(ctx, store.DocumentQuery{TenantID: tenantID, VehicleID: &id})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.DeleteVehicle(ctx, tenantID, id); err != nil {
		h.respondError(c, err)
		return
	}
	for _, d := range docs {
		h.removeFile(d.FilePath)
	}
	c.Status(http.StatusNoContent)
}

// annotate 根据字段值填充车辆的类型化属性
func (h *Handler) annotate(ctx context.Context, v *model.Vehicle) error {
	vt, err := h.store.GetVehicleType(ctx, v.TenantID, v.VehicleTypeID)
	if err != nil {
		return err
	}
	schema, err := fields.NewSchema(vt.Fields)
	if err != nil {
		return err
	}
	attrs, err := fields.FromCanonical(schema, v.FieldValues).Typed()
	if err != nil {
		return err
	}
	v.Attributes = attrs
	return nil
}
