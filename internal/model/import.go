package model

import "time"

// PreviewRow 服务端校验后的导入文件数据行
// RowNumber 为表格中从 1 开始的行号，第一条数据行为 2
type PreviewRow struct {
	RowNumber int               `json:"rowNumber"`
	Data      map[string]string `json:"data"`
	Errors    []string          `json:"errors"`
	IsValid   bool              `json:"isValid"`
}

// Pagination 预览的分页信息
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// PreviewResult POST /vehicles/import/preview 的响应体
// 计数覆盖整个文件，Rows 只包含请求的那一页
type PreviewResult struct {
	TotalRows   int          `json:"totalRows"`
	ValidRows   int          `json:"validRows"`
	InvalidRows int          `json:"invalidRows"`
	Rows        []PreviewRow `json:"rows"`
	Pagination  Pagination   `json:"pagination"`
}

// EditedRows 行号到字段覆盖值的映射
type EditedRows map[int]map[string]string

// ImportRowError 导入失败的一行
type ImportRowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// ImportResult POST /vehicles/import 的响应体
type ImportResult struct {
	Imported  int              `json:"imported"`
	Failed    int              `json:"failed"`
	TotalRows int              `json:"totalRows"`
	Errors    []ImportRowError `json:"errors,omitempty"`
}

// TypeDetection 根据上传文件名对车辆类型的尽力猜测
type TypeDetection struct {
	VehicleTypeID  *int64  `json:"vehicle_type_id"`
	TypeName       string  `json:"type_name,omitempty"`
	Confidence     float64 `json:"confidence"`
	Method         string  `json:"method"` // template/name/tokens/none
	NeedsSelection bool    `json:"needs_selection"`
}

// ImportLog 一次已提交导入的记录
type ImportLog struct {
	ID            int64      `json:"id"`
	TenantID      int64      `json:"tenant_id"`
	VehicleTypeID int64      `json:"vehicle_type_id"`
	Filename      string     `json:"filename"`
	TotalRows     int        `json:"total_rows"`
	ImportedRows  int        `json:"imported_rows"`
	ErrorRows     int        `json:"error_rows"`
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
