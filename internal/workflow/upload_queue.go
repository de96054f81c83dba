package workflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"fleetcomply/internal/client"
)

// ErrIncompleteForm 当前表单已填写但未完成时阻止提交，不发出请求
var ErrIncompleteForm = errors.New("form is incomplete")

// 条目类型
const (
	KindDocument = "document"
	KindRecord   = "compliance_record"
)

// QueueItem 待上传的文档或合规记录
type QueueItem struct {
	Kind string `json:"kind" validate:"required,oneof=document compliance_record"`

	// 文档
	Name               string `json:"name" validate:"required_if=Kind document"`
	DocumentType       string `json:"document_type" validate:"required_if=Kind document"`
	ComplianceRecordID int64  `json:"compliance_record_id"`

	// 合规记录
	ComplianceTypeID int64      `json:"compliance_type_id" validate:"required_if=Kind compliance_record"`
	IssueDate        *time.Time `json:"issue_date"`
	Notes            string     `json:"notes"`

	ExpiryDate *time.Time   `json:"expiry_date"`
	File       *client.File `json:"file" validate:"required_if=Kind document"`
}

// Label 在消息中标识条目
func (q QueueItem) Label() string {
	if q.Kind == KindDocument {
		return fmt.Sprintf("document %q", q.Name)
	}
	return fmt.Sprintf("compliance record of type %d", q.ComplianceTypeID)
}

// Form 上传对话框中尚未入队的当前条目
type Form struct {
	Touched bool
	Item    QueueItem
}

// FailedItem 被服务端拒绝的条目，可重新入队
type FailedItem struct {
	Item QueueItem
	Err  error
}

// SubmitResult 一批提交的汇总
type SubmitResult struct {
	SuccessCount int
	FailCount    int
	Failed       []FailedItem
}

// QueueOption UploadQueue 的配置项
type QueueOption func(*UploadQueue)

// WithQueueLogger 设置日志
func WithQueueLogger(l *zap.Logger) QueueOption {
	return func(q *UploadQueue) { q.logger = l }
}

// UploadQueue 为一辆车批量上传文档和合规记录
type UploadQueue struct {
	api       UploadAPI
	vehicleID int64
	validate  *validator.Validate
	logger    *zap.Logger

	mu    sync.Mutex
	items []QueueItem
}

// NewUploadQueue 为 vehicleID 创建空队列
func NewUploadQueue(api UploadAPI, vehicleID int64, opts ...QueueOption) (*UploadQueue, error) {
	if vehicleID <= 0 {
		return nil, ErrInvalidVehicleID
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	q := &UploadQueue{api: api, vehicleID: vehicleID, validate: v, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Check 返回条目缺失的内容
func (q *UploadQueue) Check(item QueueItem) error {
	err := q.validate.Struct(item)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Add 将完整条目入队，允许重复
func (q *UploadQueue) Add(item QueueItem) error {
	if err := q.Check(item); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

// Items 返回队列副本
func (q *UploadQueue) Items() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]QueueItem(nil), q.items...)
}

// Len 队列中的条目数
func (q *UploadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Submit 先上传已填写的表单，再逐个上传队列条目。失败不会中断整批，也不回滚。
// 至少一项成功时已提交的条目才离开队列，失败项会返回以便重新入队
func (q *UploadQueue) Submit(ctx context.Context, form Form) (SubmitResult, error) {
	var batch []QueueItem
	if form.Touched {
		if err := q.Check(form.Item); err != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", ErrIncompleteForm, err)
		}
		batch = append(batch, form.Item)
	}

	q.mu.Lock()
	queued := len(q.items)
	batch = append(batch, q.items...)
	q.mu.Unlock()

	var res SubmitResult
	for _, item := range batch {
		if err := q.submitOne(ctx, item); err != nil {
			q.logger.Warn("upload failed", zap.String("item", item.Label()), zap.Error(err))
			res.FailCount++
			res.Failed = append(res.Failed, FailedItem{Item: item, Err: err})
			continue
		}
		res.SuccessCount++
	}

	if res.SuccessCount > 0 {
		q.mu.Lock()
		q.items = append([]QueueItem(nil), q.items[queued:]...)
		q.mu.Unlock()
	}
	q.logger.Info("upload batch finished",
		zap.Int64("vehicle_id", q.vehicleID),
		zap.Int("succeeded", res.SuccessCount),
		zap.Int("failed", res.FailCount))
	return res, nil
}

func (q *UploadQueue) submitOne(ctx context.Context, item QueueItem) error {
	switch item.Kind {
	case KindDocument:
		_, err := q.api.UploadDocument(ctx, q.vehicleID, client.DocumentUpload{
			Name:               item.Name,
			DocumentType:       item.DocumentType,
			ExpiryDate:         item.ExpiryDate,
			ComplianceRecordID: item.ComplianceRecordID,
			File:               *item.File,
		})
		return err
	case KindRecord:
		_, err := q.api.CreateComplianceRecord(ctx, q.vehicleID, client.RecordUpload{
			ComplianceTypeID: item.ComplianceTypeID,
			IssueDate:        item.IssueDate,
			ExpiryDate:       item.ExpiryDate,
			Notes:            item.Notes,
			DocumentName:     item.Name,
			File:             item.File,
		})
		return err
	}
	return fmt.Errorf("unknown item kind %q", item.Kind)
}
