package model

import "time"

// Tenant 隔离的客户账户，几乎所有数据都按 TenantID 划分
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// VehicleType 可配置的车辆类别，带有独立的字段 schema
type VehicleType struct {
	ID          int64              `json:"id"`
	TenantID    int64              `json:"tenant_id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Fields      []VehicleTypeField `json:"fields"`
	CreatedAt   time.Time          `json:"created_at"`
}

// VehicleTypeField 车辆类型的一个自定义属性定义
type VehicleTypeField struct {
	ID            int64    `json:"id"`
	VehicleTypeID int64    `json:"vehicle_type_id"`
	Key           string   `json:"key"`
	Label         string   `json:"label"`
	FieldType     string   `json:"field_type"` // text/number/date/email/year/select/boolean
	Required      bool     `json:"required"`
	Options       []string `json:"options,omitempty"`
	SortOrder     int      `json:"sort_order"`
}

// 车辆状态
const (
	VehicleStatusActive   = "active"
	VehicleStatusInactive = "inactive"
)

// Vehicle 车队资产，自定义属性以字段 key 存放在 FieldValues 中
type Vehicle struct {
	ID                 int64             `json:"id"`
	TenantID           int64             `json:"tenant_id"`
	VehicleTypeID      int64             `json:"vehicle_type_id"`
	Name               string            `json:"name"`
	RegistrationNumber string            `json:"registration_number"`
	Status             string            `json:"status"`
	FieldValues        map[string]string `json:"field_values"`
	Attributes         map[string]any    `json:"attributes,omitempty"` // 按类型解析后的 field_values
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// VehicleFieldValue 一条 EAV 属性值
type VehicleFieldValue struct {
	VehicleID int64  `json:"vehicle_id"`
	FieldID   int64  `json:"field_id"`
	Value     string `json:"value"`
}

// Session 绑定到租户的 bearer 令牌
type Session struct {
	Token     string     `json:"token"`
	TenantID  int64      `json:"tenant_id"`
	UserName  string     `json:"user_name"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active 判断会话是否仍可用于认证
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
