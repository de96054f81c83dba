package model

import "time"

// RequirementStatus 合规要求的评估状态
type RequirementStatus string

const (
	StatusCompliant RequirementStatus = "compliant"
	StatusAtRisk    RequirementStatus = "at_risk"
	StatusExpired   RequirementStatus = "expired"
	StatusPending   RequirementStatus = "pending"
)

// 车辆汇总的整体状态
const (
	OverallCompliant    = "compliant"
	OverallAtRisk       = "at_risk"
	OverallIncomplete   = "incomplete"
	OverallNonCompliant = "non_compliant"
)

// ComplianceType 周期性合规义务，例如年检或注册
// VehicleTypeID 为 nil 时适用于租户的所有车辆类型
type ComplianceType struct {
	ID              int64     `json:"id"`
	TenantID        int64     `json:"tenant_id"`
	VehicleTypeID   *int64    `json:"vehicle_type_id,omitempty"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	ValidityDays    int       `json:"validity_days"`
	RenewalLeadDays int       `json:"renewal_lead_days"`
	IsRequired      bool      `json:"is_required"`
	CreatedAt       time.Time `json:"created_at"`
}

// ComplianceRecord 满足某合规类型的一条凭证，通常带有到期日
// Status 和 DaysUntilExpiry 由合规引擎填充，客户端不可设置
type ComplianceRecord struct {
	ID               int64             `json:"id"`
	TenantID         int64             `json:"tenant_id"`
	VehicleID        int64             `json:"vehicle_id"`
	ComplianceTypeID int64             `json:"compliance_type_id"`
	IssueDate        *time.Time        `json:"issue_date,omitempty"`
	ExpiryDate       *time.Time        `json:"expiry_date,omitempty"`
	Notes            string            `json:"notes"`
	Documents        []Document        `json:"documents"`
	Status           RequirementStatus `json:"status"`
	DaysUntilExpiry  *int              `json:"days_until_expiry"`
	CreatedAt        time.Time         `json:"created_at"`
}

// ComplianceRequirement 车辆某一合规类型的评估状态
type ComplianceRequirement struct {
	RequirementID   int64             `json:"requirement_id"`
	ComplianceType  ComplianceType    `json:"compliance_type"`
	Category        string            `json:"category"`
	Status          RequirementStatus `json:"status"`
	CurrentRecord   *ComplianceRecord `json:"current_record"`
	DaysUntilExpiry *int              `json:"days_until_expiry"`
	IsOverdue       bool              `json:"is_overdue"`
}

// RequirementGroups 按必需/可选拆分合规要求
type RequirementGroups struct {
	Required []ComplianceRequirement `json:"required"`
	Optional []ComplianceRequirement `json:"optional"`
}

// ComplianceSummary 单辆车合规要求状态的汇总
type ComplianceSummary struct {
	ComplianceScore float64 `json:"compliance_score"`
	OverallStatus   string  `json:"overall_status"`
	CanOperate      bool    `json:"can_operate"`
	Total           int     `json:"total"`
	Compliant       int     `json:"compliant"`
	AtRisk          int     `json:"at_risk"`
	Expired         int     `json:"expired"`
	Pending         int     `json:"pending"`
}

// ComplianceStatus GET /vehicles/{id}/compliance/status 的响应体
type ComplianceStatus struct {
	Vehicle      Vehicle           `json:"vehicle"`
	Requirements RequirementGroups `json:"requirements"`
	Summary      ComplianceSummary `json:"summary"`
}

// 文档类型
const (
	DocTypeRegistration = "registration"
	DocTypeInsurance    = "insurance"
	DocTypeInspection   = "inspection"
	DocTypePermit       = "permit"
	DocTypeOther        = "other"
)

// Document 附属于车辆（可选关联合规记录）的上传文件
type Document struct {
	ID                 int64      `json:"id"`
	TenantID           int64      `json:"tenant_id"`
	VehicleID          int64      `json:"vehicle_id"`
	ComplianceRecordID *int64     `json:"compliance_record_id,omitempty"`
	Name               string     `json:"name"`
	DocumentType       string     `json:"document_type"`
	FilePath           string     `json:"file_path"`
	FileName           string     `json:"file_name"`
	MimeType           string     `json:"mime_type"`
	FileSize           int64      `json:"file_size"`
	ExpiryDate         *time.Time `json:"expiry_date,omitempty"`
	URL                string     `json:"url"`
	UploadedAt         time.Time  `json:"uploaded_at"`
}

// 通知类型
const (
	NotificationExpiring = "expiring"
	NotificationExpired  = "expired"
)

// Notification 铃铛中展示的合规提醒
type Notification struct {
	ID                 int64     `json:"id"`
	TenantID           int64     `json:"tenant_id"`
	VehicleID          int64     `json:"vehicle_id"`
	ComplianceRecordID int64     `json:"compliance_record_id"`
	Kind               string    `json:"kind"`
	Title              string    `json:"title"`
	Message            string    `json:"message"`
	IsRead             bool      `json:"is_read"`
	CreatedAt          time.Time `json:"created_at"`
}
