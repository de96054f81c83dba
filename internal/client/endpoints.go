package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fleetcomply/internal/model"
)

// dateLayout 表单字段中日期的传输格式
const dateLayout = "2006-01-02"

// File 保存在内存中的上传文件，可多次发送，导入预览每次翻页都会重新发送
type File struct {
	Name    string
	Content []byte
}

// PreviewRequest 选择导入预览的一页
type PreviewRequest struct {
	VehicleTypeID int64
	File          File
	Page          int
	PerPage       int
	Edited        model.EditedRows
}

// ImportRequest 提交上传文件
type ImportRequest struct {
	VehicleTypeID int64
	File          File
	Edited        model.EditedRows
}

// DocumentUpload 附属于车辆的文档
type DocumentUpload struct {
	Name               string
	DocumentType       string
	ExpiryDate         *time.Time
	ComplianceRecordID int64
	File               File
}

// RecordUpload 合规记录，可附带凭证文档
type RecordUpload struct {
	ComplianceTypeID int64
	IssueDate        *time.Time
	ExpiryDate       *time.Time
	Notes            string
	DocumentName     string
	File             *File
}

// ComplianceStatus 获取车辆的合规评估结果
func (c *Client) ComplianceStatus(ctx context.Context, vehicleID int64) (*model.ComplianceStatus, error) {
	var out model.ComplianceStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/vehicles/%d/compliance/status", vehicleID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VehicleTypes 列出租户的车辆类型
func (c *Client) VehicleTypes(ctx context.Context) ([]model.VehicleType, error) {
	var out []model.VehicleType
	if err := c.getJSON(ctx, "/vehicle-types", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications 列出通知，unreadOnly 时只返回未读
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread", "true")
	}
	var out []model.Notification
	if err := c.getJSON(ctx, "/notifications", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead 将一条通知标记为已读
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodPost, fmt.Sprintf("/notifications/%d/read", id), nil, nil)
}

// MarkAllNotificationsRead 将所有通知标记为已读并返回变更数
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/notifications/read-all", nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// DetectType 询问服务端文件名对应的车辆类型
func (c *Client) DetectType(ctx context.Context, filename string) (*model.TypeDetection, error) {
	var out model.TypeDetection
	if err := c.sendJSON(ctx, http.MethodPost, "/vehicles/import/detect-type", map[string]string{"filename": filename}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PreviewImport 上传文件并返回校验后的一页
func (c *Client) PreviewImport(ctx context.Context, req PreviewRequest) (*model.PreviewResult, error) {
	form := map[string]string{"vehicle_type_id": strconv.FormatInt(req.VehicleTypeID, 10)}
	if req.Page > 0 {
		form["page"] = strconv.Itoa(req.Page)
	}
	if req.PerPage > 0 {
		form["per_page"] = strconv.Itoa(req.PerPage)
	}
	if err := putEdited(form, req.Edited); err != nil {
		return nil, err
	}
	var out model.PreviewResult
	if err := c.multipart(ctx, "/vehicles/import/preview", form, &req.File, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Import 应用编辑后提交文件
func (c *Client) Import(ctx context.Context, req ImportRequest) (*model.ImportResult, error) {
	form := map[string]string{"vehicle_type_id": strconv.FormatInt(req.VehicleTypeID, 10)}
	if err := putEdited(form, req.Edited); err != nil {
		return nil, err
	}
	var out model.ImportResult
	if err := c.multipart(ctx, "/vehicles/import", form, &req.File, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument 为车辆附加文档
func (c *Client) UploadDocument(ctx context.Context, vehicleID int64, up DocumentUpload) (*model.Document, error) {
	form := map[string]string{"name": up.Name, "document_type": up.DocumentType}
	if up.ExpiryDate != nil {
		form["expiry_date"] = up.ExpiryDate.Format(dateLayout)
	}
	if up.ComplianceRecordID > 0 {
		form["compliance_record_id"] = strconv.FormatInt(up.ComplianceRecordID, 10)
	}
	var out model.Document
	if err := c.multipart(ctx, fmt.Sprintf("/vehicles/%d/documents", vehicleID), form, &up.File, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateComplianceRecord 为车辆新增合规记录
func (c *Client) CreateComplianceRecord(ctx context.Context, vehicleID int64, up RecordUpload) (*model.ComplianceRecord, error) {
	form := map[string]string{
		"compliance_type_id": strconv.FormatInt(up.ComplianceTypeID, 10),
		"notes":              up.Notes,
		"document_name":      up.DocumentName,
	}
	if up.IssueDate != nil {
		form["issue_date"] = up.IssueDate.Format(dateLayout)
	}
	if up.ExpiryDate != nil {
		form["expiry_date"] = up.ExpiryDate.Format(dateLayout)
	}
	var out model.ComplianceRecord
	if err := c.multipart(ctx, fmt.Sprintf("/vehicles/%d/compliance/records", vehicleID), form, up.File, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func putEdited(form map[string]string, edited model.EditedRows) error {
	if len(edited) == 0 {
		return nil
	}
	b, err := json.Marshal(edited)
	if err != nil {
		return fmt.Errorf("encode edited rows: %w", err)
	}
	form["edited_rows"] = string(b)
	return nil
}

func (c *Client) multipart(ctx context.Context, path string, form map[string]string, file *File, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return err
		}
		if _, err := fw.Write(file.Content); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}
