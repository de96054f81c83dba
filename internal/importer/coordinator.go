package importer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fleetcomply/internal/fields"
	"fleetcomply/internal/metrics"
	"fleetcomply/internal/model"
	"fleetcomply/internal/store"
)

// MaxReportedErrors 导入结果中返回的行错误上限
const MaxReportedErrors = 50

// progressEvery 每校验多少行发送一次进度事件
const progressEvery = 100

// 进度事件类型
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventDone     = "done"
	EventError    = "error"
)

// Coordinator 提交解析后的上传文件
type Coordinator struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCoordinator 创建导入协调器
func NewCoordinator(st *store.Store, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{store: st, logger: logger}
}

// ImportOptions 一次提交的参数
type ImportOptions struct {
	TenantID    int64
	VehicleType *model.VehicleType
	Parsed      *Parsed
	Edited      model.EditedRows
}

// ProgressEvent 导入过程中推送的事件
type ProgressEvent struct {
	Type      string    `json:"type"` // start/progress/done/error
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Import 在后台执行导入并返回进度通道，done 或 error 事件之后通道关闭
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)

	go func() {
		defer close(ch)
		result, err := c.Run(ctx, opts, func(evt ProgressEvent) { c.sendProgress(ctx, ch, evt) })
		if err != nil {
			c.sendProgress(ctx, ch, ProgressEvent{Type: EventError, Message: err.Error(), Timestamp: time.Now()})
			return
		}
		c.sendProgress(ctx, ch, ProgressEvent{Type: EventDone, Message: "import finished", Data: result, Timestamp: time.Now()})
	}()

	return ch
}

// sendProgress 阻塞直到事件送达或 ctx 结束
func (c *Coordinator) sendProgress(ctx context.Context, ch chan<- ProgressEvent, evt ProgressEvent) {
	select {
	case ch <- evt:
	case <-ctx.Done():
	}
}

// Run 合并编辑后校验每一行，在单个事务中插入有效行并写入导入记录。progress 可为 nil
func (c *Coordinator) Run(ctx context.Context, opts ImportOptions, progress func(ProgressEvent)) (*model.ImportResult, error) {
	if progress == nil {
		progress = func(ProgressEvent) {}
	}
	p := opts.Parsed
	rows := p.Effective(opts.Edited)

	logID, err := c.store.CreateImportLog(ctx, opts.TenantID, opts.VehicleType.ID, p.Filename)
	if err != nil {
		return nil, err
	}

	progress(ProgressEvent{
		Type:      EventStart,
		Message:   fmt.Sprintf("importing %d rows into %s", len(rows), opts.VehicleType.Name),
		Data:      map[string]any{"filename": p.Filename, "total_rows": len(rows)},
		Timestamp: time.Now(),
	})

	result := &model.ImportResult{TotalRows: len(rows), Errors: []model.ImportRowError{}}
	inputs := make([]store.VehicleInput, 0, len(rows))
	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			c.failLog(logID, result, err)
			return nil, err
		}
		in, errs := buildInput(opts, r)
		if len(errs) > 0 {
			result.Failed++
			if len(result.Errors) < MaxReportedErrors {
				result.Errors = append(result.Errors, ErrorSummary(r.Number, errs))
			}
		} else {
			inputs = append(inputs, in)
		}
		if (i+1)%progressEvery == 0 {
			progress(ProgressEvent{
				Type:      EventProgress,
				Message:   fmt.Sprintf("validated %d/%d rows", i+1, len(rows)),
				Data:      map[string]int{"validated": i + 1, "total": len(rows)},
				Timestamp: time.Now(),
			})
		}
	}

	if _, err := c.store.BatchInsertVehicles(ctx, inputs); err != nil {
		c.failLog(logID, result, err)
		return nil, fmt.Errorf("insert vehicles: %w", err)
	}
	result.Imported = len(inputs)

	if err := c.store.UpdateImportLog(ctx, logID, result.TotalRows, result.Imported, result.Failed, store.ImportStatusCompleted, ""); err != nil {
		c.logger.Warn("update import log", zap.Int64("import_log_id", logID), zap.Error(err))
	}
	metrics.ImportRows.WithLabelValues(metrics.StageImported).Add(float64(result.Imported))
	metrics.ImportRows.WithLabelValues(metrics.StageFailed).Add(float64(result.Failed))
	c.logger.Info("import completed",
		zap.Int64("tenant_id", opts.TenantID),
		zap.Int64("vehicle_type_id", opts.VehicleType.ID),
		zap.String("filename", p.Filename),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (c *Coordinator) failLog(logID int64, result *model.ImportResult, cause error) {
	// 请求的 context 可能已经结束
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.UpdateImportLog(ctx, logID, result.TotalRows, 0, result.TotalRows, store.ImportStatusFailed, cause.Error()); err != nil {
		c.logger.Warn("update import log", zap.Int64("import_log_id", logID), zap.Error(err))
	}
}

// buildInput 用预览校验器校验一行并转换为规范存储值
func buildInput(opts ImportOptions, r Row) (store.VehicleInput, []string) {
	schema := opts.Parsed.Schema
	if errs := ValidateRow(schema, r.Data); len(errs) > 0 {
		return store.VehicleInput{}, errs
	}

	custom := make(map[string]string, len(r.Data))
	for k, v := range r.Data {
		if k != ColumnName && k != ColumnRegistration {
			custom[k] = v
		}
	}
	values, ferrs := fields.FromKeyed(schema, custom)
	if len(ferrs) > 0 {
		errs := make([]string, len(ferrs))
		for i, fe := range ferrs {
			errs[i] = fe.Error()
		}
		return store.VehicleInput{}, errs
	}

	return store.VehicleInput{
		Vehicle: model.Vehicle{
			TenantID:           opts.TenantID,
			VehicleTypeID:      opts.VehicleType.ID,
			Name:               r.Data[ColumnName],
			RegistrationNumber: r.Data[ColumnRegistration],
			Status:             model.VehicleStatusActive,
		},
		Values: values.Stored(0),
	}, nil
}
