package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetcomply/internal/compliance"
	"fleetcomply/internal/middleware"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

type createComplianceTypeRequest struct {
	Name            string `json:"name" binding:"required,max=100"`
	Category        string `json:"category" binding:"max=50"`
	Description     string `json:"description" binding:"max=1000"`
	VehicleTypeID   *int64 `json:"vehicle_type_id" binding:"omitempty,gt=0"`
	ValidityDays    int    `json:"validity_days" binding:"min=0"`
	RenewalLeadDays int    `json:"renewal_lead_days" binding:"min=0"`
	IsRequired      *bool  `json:"is_required"` // 默认为 true
}

type listComplianceTypesQuery struct {
	VehicleTypeID int64 `form:"vehicle_type_id" binding:"omitempty,gt=0"`
}

type createRecordForm struct {
	ComplianceTypeID int64  `form:"compliance_type_id" binding:"required,gt=0"`
	IssueDate        string `form:"issue_date" binding:"omitempty,datetime=2006-01-02"`
	ExpiryDate       string `form:"expiry_date" binding:"omitempty,datetime=2006-01-02"`
	Notes            string `form:"notes" binding:"max=2000"`
	DocumentName     string `form:"document_name" binding:"max=200"`
}

// ListComplianceTypes 返回租户的合规类型，可只返回适用于某车辆类型的
// GET /api/v1/compliance-types
func (h *Handler) ListComplianceTypes(c *gin.Context) {
	var q listComplianceTypesQuery
	if !bind(c, &q) {
		return
	}
	var vehicleTypeID *int64
	if q.VehicleTypeID > 0 {
		vehicleTypeID = &q.VehicleTypeID
	}
	types, err := h.store.ListComplianceTypes(c.Request.Context(), middleware.TenantID(c), vehicleTypeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if types == nil {
		types = []model.ComplianceType{}
	}
	c.JSON(http.StatusOK, types)
}

// CreateComplianceType 创建合规义务
// POST /api/v1/compliance-types
func (h *Handler) CreateComplianceType(c *gin.Context) {
	var req createComplianceTypeRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	if req.VehicleTypeID != nil {
		if _, err := h.store.GetVehicleType(ctx, tenantID, *req.VehicleTypeID); err != nil {
			h.respondError(c, err)
			return
		}
	}

	ct := &model.ComplianceType{
		TenantID:        tenantID,
		VehicleTypeID:   req.VehicleTypeID,
		Name:            strings.TrimSpace(req.Name),
		Category:        req.Category,
		Description:     req.Description,
		ValidityDays:    req.ValidityDays,
		RenewalLeadDays: req.RenewalLeadDays,
		IsRequired:      req.IsRequired == nil || *req.IsRequired,
	}
	if err := h.store.CreateComplianceType(ctx, ct); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

// ComplianceStatus 评估车辆的所有适用要求
// GET /api/v1/vehicles/:id/compliance/status
func (h *Handler) ComplianceStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := h.compliance.Status(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for _, group := range [][]model.ComplianceRequirement{status.Requirements.Required, status.Requirements.Optional} {
		for i := range group {
			if rec := group[i].CurrentRecord; rec != nil {
				h.withURLs(rec.Documents)
			}
		}
	}
	c.JSON(http.StatusOK, status)
}

// ListComplianceRecords 返回车辆的记录及计算出的状态
// GET /api/v1/vehicles/:id/compliance/records
func (h *Handler) ListComplianceRecords(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	records, err := h.compliance.Records(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for i := range records {
		h.withURLs(records[i].Documents)
	}
	c.JSON(http.StatusOK, records)
}

// CreateComplianceRecord 记录合规凭证。附带的文件会成为关联该记录的文档
// 未提供到期日时，按合规类型的有效期从签发日起计算
// POST /api/v1/vehicles/:id/compliance/records (multipart)
func (h *Handler) CreateComplianceRecord(c *gin.Context) {
	vehicleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.limitBody(c)
	var form createRecordForm
	if !bind(c, &form) {
		return
	}
	fh, ok := h.formFile(c, "file", true)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tenantID := middleware.TenantID(c)
	vehicle, err := h.store.GetVehicle(ctx, tenantID, vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ct, err := h.store.GetComplianceType(ctx, tenantID, form.ComplianceTypeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !compliance.Applies(*ct, vehicle.VehicleTypeID) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "compliance type does not apply to this vehicle type"})
		return
	}

	rec := &model.ComplianceRecord{
		TenantID:         tenantID,
		VehicleID:        vehicleID,
		ComplianceTypeID: ct.ID,
		IssueDate:        parseFormDate(form.IssueDate),
		ExpiryDate:       parseFormDate(form.ExpiryDate),
		Notes:            form.Notes,
	}
	if rec.ExpiryDate == nil && rec.IssueDate != nil && ct.ValidityDays > 0 {
		expiry := rec.IssueDate.AddDate(0, 0, ct.ValidityDays)
		rec.ExpiryDate = &expiry
	}
	if err := h.store.CreateComplianceRecord(ctx, rec); err != nil {
		h.respondError(c, err)
		return
	}
	rec.Documents = []model.Document{}

	if fh != nil {
		doc, err := h.storeDocument(c, fh, model.Document{
			VehicleID:          vehicleID,
			ComplianceRecordID: &rec.ID,
			Name:               form.DocumentName,
			DocumentType:       documentTypeFor(*ct),
			ExpiryDate:         rec.ExpiryDate,
		})
		if err != nil {
			// 记录与文档保持一致
			if derr := h.store.DeleteComplianceRecord(ctx, tenantID, rec.ID); derr != nil {
				h.logger.Warn("roll back compliance record", zap.Int64("record_id", rec.ID), zap.Error(derr))
			}
			h.respondError(c, err)
			return
		}
		rec.Documents = append(rec.Documents, *doc)
	}

	policy, err := h.compliance.Policy(ctx, tenantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	rec.Status, rec.DaysUntilExpiry = policy.RecordStatus(*ct, *rec)
	h.logger.Info("compliance record created",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("vehicle_id", vehicleID),
		zap.Int64("record_id", rec.ID),
		zap.String("compliance_type", ct.Name),
	)
	c.JSON(http.StatusCreated, rec)
}

// DeleteComplianceRecord 删除记录，其文档仍保留在车辆上
// DELETE /api/v1/compliance/records/:id
func (h *Handler) DeleteComplianceRecord(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteComplianceRecord(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseFormDate 读取已由绑定标签校验过的日期
func parseFormDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(store.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// documentTypeFor 根据合规类型的名称和类别确定记录附件的文档类型
func documentTypeFor(ct model.ComplianceType) string {
	text := strings.ToLower(ct.Name + " " + ct.Category)
	for _, t := range []string{model.DocTypeRegistration, model.DocTypeInsurance, model.DocTypeInspection, model.DocTypePermit} {
		if strings.Contains(text, t) {
			return t
		}
	}
	return model.DocTypeOther
}
