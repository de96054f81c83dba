// Package workflow 驱动 fleetcomply API 的客户端状态机：合规视图、通知铃铛、
// 批量导入预览表格和文档上传队列
//
// 所有类型均可并发使用。阻塞调用接收 context 且不重试，失败以状态和返回的错误体现
package workflow

import (
	"context"

	"fleetcomply/internal/client"
	"fleetcomply/internal/model"
)

// ComplianceAPI 获取合规评估结果
type ComplianceAPI interface {
	ComplianceStatus(ctx context.Context, vehicleID int64) (*model.ComplianceStatus, error)
}

// NotificationAPI 读取并确认通知
type NotificationAPI interface {
	Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) (int64, error)
}

// ImportAPI 批量导入的服务端接口
type ImportAPI interface {
	DetectType(ctx context.Context, filename string) (*model.TypeDetection, error)
	PreviewImport(ctx context.Context, req client.PreviewRequest) (*model.PreviewResult, error)
	Import(ctx context.Context, req client.ImportRequest) (*model.ImportResult, error)
}

// UploadAPI 创建文档和合规记录
type UploadAPI interface {
	UploadDocument(ctx context.Context, vehicleID int64, up client.DocumentUpload) (*model.Document, error)
	CreateComplianceRecord(ctx context.Context, vehicleID int64, up client.RecordUpload) (*model.ComplianceRecord, error)
}

var (
	_ ComplianceAPI   = (*client.Client)(nil)
	_ NotificationAPI = (*client.Client)(nil)
	_ ImportAPI       = (*client.Client)(nil)
	_ UploadAPI       = (*client.Client)(nil)
)
