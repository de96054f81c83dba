package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fleetcomply/internal/client"
	"fleetcomply/internal/fields"
	"fleetcomply/internal/model"
)

// CountdownSeconds 自动导入倒计时的起始秒数
const CountdownSeconds = 5

var (
	// ErrImportBlocked 服务端仍报告存在无效行
	ErrImportBlocked = errors.New("import blocked: file has invalid rows")
	// ErrImportInProgress 导入请求正在执行
	ErrImportInProgress = errors.New("import already running")
	// ErrImportFinished 文件已导入，需选择新文件重新开始
	ErrImportFinished = errors.New("import already finished")
	// ErrNoFile 操作需要先选择文件
	ErrNoFile = errors.New("no file selected")
	// ErrNoVehicleType 尚未选择车辆类型
	ErrNoVehicleType = errors.New("no vehicle type selected")
	// ErrNoPreview 尚未加载第一页预览
	ErrNoPreview = errors.New("no preview loaded")
	// ErrRowNotLoaded 编辑的行不在当前页
	ErrRowNotLoaded = errors.New("row is not on the current page")
	// ErrUnknownColumn 编辑的列不属于该类型的导入列
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnknownVehicleType 选择的类型不在可选列表中
	ErrUnknownVehicleType = errors.New("unknown vehicle type")
)

// ImportState 导入向导的步骤
type ImportState int

const (
	NoFile ImportState = iota
	Detecting
	AwaitingTypeSelection
	TypeConfirmed
	Uploading
	PreviewLoaded
	Editing
	AutoImportCountdown
	ManualImport
	Importing
	Done
	ImportFailed
)

var importStateNames = [...]string{
	NoFile:                "no_file",
	Detecting:             "detecting",
	AwaitingTypeSelection: "awaiting_type_selection",
	TypeConfirmed:         "type_confirmed",
	Uploading:             "uploading",
	PreviewLoaded:         "preview_loaded",
	Editing:               "editing",
	AutoImportCountdown:   "auto_import_countdown",
	ManualImport:          "manual_import",
	Importing:             "importing",
	Done:                  "done",
	ImportFailed:          "error",
}

func (s ImportState) String() string {
	if s >= 0 && int(s) < len(importStateNames) {
		return importStateNames[s]
	}
	return fmt.Sprintf("ImportState(%d)", int(s))
}

// ImportOption ImportSession 的配置项
type ImportOption func(*ImportSession)

// WithPerPage 设置预览每页行数，服务端会限制上限
func WithPerPage(n int) ImportOption {
	return func(s *ImportSession) { s.perPage = n }
}

// WithImportLogger 设置日志
func WithImportLogger(l *zap.Logger) ImportOption {
	return func(s *ImportSession) { s.logger = l }
}

// ImportSession 批量导入预览表格
//
// 服务端是有效性的唯一依据：它的计数决定倒计时和能否导入。
// 单元格编辑按行号保存在编辑表中，随每次预览和最终导入一起提交。
// 本地校验只在下一次预览前标注被编辑的单元格
type ImportSession struct {
	api     ImportAPI
	types   []model.VehicleType
	perPage int
	logger  *zap.Logger

	mu          sync.Mutex
	state       ImportState
	file        *client.File
	detection   *model.TypeDetection
	vehicleType *model.VehicleType
	schema      *fields.Schema
	page        int
	previewSeq  uint64
	preview     *model.PreviewResult
	edited      model.EditedRows
	countdown   *int
	result      *model.ImportResult
	err         error
}

// NewImportSession 以给定的可选车辆类型启动向导
func NewImportSession(api ImportAPI, types []model.VehicleType, opts ...ImportOption) *ImportSession {
	s := &ImportSession{
		api:    api,
		types:  types,
		logger: zap.NewNop(),
		edited: model.EditedRows{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportSnapshot 向导的渲染状态，为副本
type ImportSnapshot struct {
	State         ImportState
	FileName      string
	Detection     *model.TypeDetection
	VehicleTypeID int64
	Page          int
	Preview       *model.PreviewResult
	Edited        model.EditedRows
	Countdown     *int
	Result        *model.ImportResult
	Err           error
}

// Snapshot 返回当前渲染状态
func (s *ImportSession) Snapshot() ImportSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ImportSnapshot{
		State:     s.state,
		Detection: s.detection,
		Page:      s.page,
		Preview:   clonePreview(s.preview),
		Edited:    cloneEdited(s.edited),
		Result:    s.result,
		Err:       s.err,
	}
	if s.file != nil {
		snap.FileName = s.file.Name
	}
	if s.vehicleType != nil {
		snap.VehicleTypeID = s.vehicleType.ID
	}
	if s.countdown != nil {
		n := *s.countdown
		snap.Countdown = &n
	}
	return snap
}

// SelectFile 以新文件重新开始，并请求服务端识别类型
// 识别失败时退回手动选择，不返回错误
func (s *ImportSession) SelectFile(ctx context.Context, file client.File) error {
	if strings.TrimSpace(file.Name) == "" {
		return ErrNoFile
	}

	s.mu.Lock()
	s.reset()
	f := file
	s.file = &f
	s.state = Detecting
	s.mu.Unlock()

	det, err := s.api.DetectType(ctx, file.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != &f {
		return nil
	}
	if err != nil {
		s.logger.Warn("vehicle type detection failed", zap.String("file", file.Name), zap.Error(err))
		s.state = AwaitingTypeSelection
		return nil
	}
	s.detection = det
	if det.NeedsSelection || det.VehicleTypeID == nil {
		s.state = AwaitingTypeSelection
		return nil
	}
	if err := s.selectTypeLocked(*det.VehicleTypeID); err != nil {
		s.logger.Warn("detected vehicle type unusable", zap.Int64("vehicle_type_id", *det.VehicleTypeID), zap.Error(err))
		s.state = AwaitingTypeSelection
	}
	return nil
}

func (s *ImportSession) reset() {
	s.file = nil
	s.detection = nil
	s.vehicleType = nil
	s.schema = nil
	s.page = 0
	s.previewSeq++
	s.preview = nil
	s.edited = model.EditedRows{}
	s.countdown = nil
	s.result = nil
	s.err = nil
	s.state = NoFile
}

// SelectType 确认车辆类型，更换类型会丢弃编辑和预览
func (s *ImportSession) SelectType(vehicleTypeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNoFile
	}
	return s.selectTypeLocked(vehicleTypeID)
}

func (s *ImportSession) selectTypeLocked(id int64) error {
	for i := range s.types {
		if s.types[i].ID != id {
			continue
		}
		schema, err := fields.NewSchema(s.types[i].Fields)
		if err != nil {
			return fmt.Errorf("vehicle type %q: %w", s.types[i].Name, err)
		}
		s.vehicleType = &s.types[i]
		s.schema = schema
		s.previewSeq++
		s.preview = nil
		s.edited = model.EditedRows{}
		s.countdown = nil
		s.state = TypeConfirmed
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownVehicleType, id)
}

// Upload 加载第一页预览
func (s *ImportSession) Upload(ctx context.Context) error {
	s.mu.Lock()
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = Uploading
	s.mu.Unlock()
	return s.load(ctx, 1)
}

// GoToPage 预览其他页，每次都重新拉取
func (s *ImportSession) GoToPage(ctx context.Context, page int) error {
	s.mu.Lock()
	if s.preview == nil {
		s.mu.Unlock()
		return ErrNoPreview
	}
	s.mu.Unlock()
	return s.load(ctx, page)
}

// Revalidate 携带全部编辑重新预览当前页，使服务端计数反映编辑
func (s *ImportSession) Revalidate(ctx context.Context) error {
	s.mu.Lock()
	if s.preview == nil {
		s.mu.Unlock()
		return ErrNoPreview
	}
	page := s.page
	s.mu.Unlock()
	return s.load(ctx, page)
}

func (s *ImportSession) readyLocked() error {
	if s.file == nil {
		return ErrNoFile
	}
	if s.vehicleType == nil {
		return ErrNoVehicleType
	}
	return nil
}

// settledLocked 导入开始后拒绝任何修改
func (s *ImportSession) settledLocked() error {
	switch s.state {
	case Importing:
		return ErrImportInProgress
	case Done:
		return ErrImportFinished
	}
	return nil
}

func (s *ImportSession) load(ctx context.Context, page int) error {
	s.mu.Lock()
	if err := s.settledLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.previewSeq++
	seq := s.previewSeq
	req := client.PreviewRequest{
		VehicleTypeID: s.vehicleType.ID,
		File:          *s.file,
		Page:          page,
		PerPage:       s.perPage,
		Edited:        cloneEdited(s.edited),
	}
	s.mu.Unlock()

	res, err := s.api.PreviewImport(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.previewSeq {
		return nil
	}
	if err != nil {
		s.state, s.err, s.countdown = ImportFailed, err, nil
		return err
	}
	s.preview = res
	s.page = res.Pagination.Page
	s.err = nil
	if res.InvalidRows == 0 && res.TotalRows > 0 {
		n := CountdownSeconds
		s.countdown = &n
		s.state = AutoImportCountdown
	} else {
		s.countdown = nil
		s.state = PreviewLoaded
	}
	return nil
}

// EditCell 记录当前页某行的编辑，并在本地重新校验该单元格
// 其他字段的错误保持不变
func (s *ImportSession) EditCell(rowNumber int, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settledLocked(); err != nil {
		return err
	}
	row, err := s.loadedRowLocked(rowNumber)
	if err != nil {
		return err
	}
	if !s.importableLocked(key) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, key)
	}
	s.setCellLocked(row, key, value)
	s.afterEditLocked()
	return nil
}

// FillDown 将第一条已加载行中 key 的值复制到其他值为空的已加载行，
// 只处理当前页，返回填充的行数
func (s *ImportSession) FillDown(key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settledLocked(); err != nil {
		return 0, err
	}
	if s.preview == nil {
		return 0, ErrNoPreview
	}
	if !s.importableLocked(key) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
	}
	rows := s.preview.Rows
	if len(rows) == 0 {
		return 0, nil
	}
	source := rows[0].Data[key]
	if strings.TrimSpace(source) == "" {
		return 0, nil
	}

	filled := 0
	for i := 1; i < len(rows); i++ {
		if strings.TrimSpace(rows[i].Data[key]) != "" {
			continue
		}
		s.setCellLocked(&rows[i], key, source)
		filled++
	}
	if filled > 0 {
		s.afterEditLocked()
	}
	return filled, nil
}

// afterEditLocked 已加载行存在本地错误时解除倒计时，只有新的预览才会重新启动
func (s *ImportSession) afterEditLocked() {
	if s.countdown != nil && s.pageHasErrorsLocked() {
		s.countdown = nil
	}
	if s.countdown == nil {
		s.state = Editing
	}
}

func (s *ImportSession) pageHasErrorsLocked() bool {
	for _, r := range s.preview.Rows {
		if len(r.Errors) > 0 {
			return true
		}
	}
	return false
}

func (s *ImportSession) loadedRowLocked(rowNumber int) (*model.PreviewRow, error) {
	if s.preview == nil {
		return nil, ErrNoPreview
	}
	for i := range s.preview.Rows {
		if s.preview.Rows[i].RowNumber == rowNumber {
			return &s.preview.Rows[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrRowNotLoaded, rowNumber)
}

func (s *ImportSession) importableLocked(key string) bool {
	if key == fields.KeyName || key == fields.KeyRegistration {
		return true
	}
	if s.schema == nil {
		return false
	}
	_, ok := s.schema.ByKey(key)
	return ok
}

func (s *ImportSession) setCellLocked(row *model.PreviewRow, key, value string) {
	if s.edited[row.RowNumber] == nil {
		s.edited[row.RowNumber] = map[string]string{}
	}
	s.edited[row.RowNumber][key] = value
	if row.Data == nil {
		row.Data = map[string]string{}
	}
	row.Data[key] = value

	kept := make([]string, 0, len(row.Errors))
	for _, msg := range row.Errors {
		if fields.ErrorField(msg) != key {
			kept = append(kept, msg)
		}
	}
	if fe := s.checkCellLocked(key, value); fe != nil {
		kept = append(kept, fe.Error())
	}
	row.Errors = kept
	row.IsValid = len(kept) == 0
}

func (s *ImportSession) checkCellLocked(key, value string) *fields.FieldError {
	switch key {
	case fields.KeyName:
		return fields.Check(key, fields.Text{}, true, value)
	case fields.KeyRegistration:
		return nil
	}
	f, ok := s.schema.ByKey(key)
	if !ok {
		return nil
	}
	return fields.Check(f.Key, f.Kind, f.Required, value)
}

// CancelCountdown 解除自动导入，由用户手动导入
func (s *ImportSession) CancelCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdown == nil {
		return
	}
	s.countdown = nil
	s.state = ManualImport
}

// Tick 倒计时前进一步，归零时开始导入，执行了导入时返回结果
func (s *ImportSession) Tick(ctx context.Context) (*model.ImportResult, error) {
	s.mu.Lock()
	if s.countdown == nil {
		s.mu.Unlock()
		return nil, nil
	}
	*s.countdown--
	if *s.countdown > 0 {
		s.mu.Unlock()
		return nil, nil
	}
	s.countdown = nil
	s.mu.Unlock()
	return s.Import(ctx)
}

// RunCountdown 每隔 interval 触发一次，直到倒计时触发、被取消或 ctx 结束
func (s *ImportSession) RunCountdown(ctx context.Context, interval time.Duration) (*model.ImportResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		s.mu.Lock()
		armed := s.countdown != nil
		s.mu.Unlock()
		if !armed {
			return nil, nil
		}
		res, err := s.Tick(ctx)
		if res != nil || err != nil {
			return res, err
		}
	}
}

// Import 提交原始文件和编辑表，上次预览报告无效行时拒绝
func (s *ImportSession) Import(ctx context.Context) (*model.ImportResult, error) {
	s.mu.Lock()
	if err := s.settledLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.readyLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.preview == nil {
		s.mu.Unlock()
		return nil, ErrNoPreview
	}
	if s.preview.InvalidRows > 0 {
		s.mu.Unlock()
		return nil, ErrImportBlocked
	}
	s.countdown = nil
	s.state = Importing
	req := client.ImportRequest{
		VehicleTypeID: s.vehicleType.ID,
		File:          *s.file,
		Edited:        cloneEdited(s.edited),
	}
	s.mu.Unlock()

	res, err := s.api.Import(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state, s.err = ImportFailed, err
		return nil, err
	}
	s.state, s.result, s.err = Done, res, nil
	s.logger.Info("import finished",
		zap.String("file", req.File.Name),
		zap.Int("imported", res.Imported),
		zap.Int("failed", res.Failed))
	return res, nil
}

func cloneEdited(in model.EditedRows) model.EditedRows {
	out := make(model.EditedRows, len(in))
	for row, cells := range in {
		c := make(map[string]string, len(cells))
		for k, v := range cells {
			c[k] = v
		}
		out[row] = c
	}
	return out
}

func clonePreview(in *model.PreviewResult) *model.PreviewResult {
	if in == nil {
		return nil
	}
	out := *in
	out.Rows = make([]model.PreviewRow, len(in.Rows))
	for i, r := range in.Rows {
		data := make(map[string]string, len(r.Data))
		for k, v := range r.Data {
			data[k] = v
		}
		r.Data = data
		r.Errors = append([]string(nil), r.Errors...)
		out.Rows[i] = r
	}
	return &out
}
