package workflow

import (
	"context"
	"errors"
	"sync"

	"fleetcomply/internal/client"
	"fleetcomply/internal/model"
)

var errBoom = errors.New("boom")

type fakeCompliance struct {
	calls  int
	errs   []error
	status *model.ComplianceStatus
}

func (f *fakeCompliance) ComplianceStatus(_ context.Context, _ int64) (*model.ComplianceStatus, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.status, nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	fetch     func(call int) ([]model.Notification, error)
	fetches   int
	markErr   error
	marked    []int64
	markedAll int
}

func (f *fakeNotifications) Notifications(_ context.Context, _ bool) ([]model.Notification, error) {
	f.mu.Lock()
	f.fetches++
	call := f.fetches
	f.mu.Unlock()
	return f.fetch(call)
}

func (f *fakeNotifications) MarkNotificationRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return f.markErr
}

func (f *fakeNotifications) MarkAllNotificationsRead(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedAll++
	return 0, f.markErr
}

func (f *fakeNotifications) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeImport struct {
	detection *model.TypeDetection
	detectErr error
	previews  []*model.PreviewResult
	requests  []client.PreviewRequest
	imports   []client.ImportRequest
	importing func()
}

func (f *fakeImport) DetectType(_ context.Context, _ string) (*model.TypeDetection, error) {
	return f.detection, f.detectErr
}

func (f *fakeImport) PreviewImport(_ context.Context, req client.PreviewRequest) (*model.PreviewResult, error) {
	f.requests = append(f.requests, req)
	if len(f.previews) == 0 {
		return nil, errBoom
	}
	res := f.previews[0]
	if len(f.previews) > 1 {
		f.previews = f.previews[1:]
	}
	return clonePreview(res), nil
}

func (f *fakeImport) Import(_ context.Context, req client.ImportRequest) (*model.ImportResult, error) {
	f.imports = append(f.imports, req)
	if f.importing != nil {
		f.importing()
	}
	return &model.ImportResult{Imported: 3, TotalRows: 3}, nil
}

type fakeUploads struct {
	failNames map[string]bool
	calls     []string
}

func (f *fakeUploads) UploadDocument(_ context.Context, _ int64, up client.DocumentUpload) (*model.Document, error) {
	f.calls = append(f.calls, up.Name)
	if f.failNames[up.Name] {
		return nil, &client.APIError{Status: 422, Message: "unsupported file"}
	}
	return &model.Document{Name: up.Name}, nil
}

func (f *fakeUploads) CreateComplianceRecord(_ context.Context, _ int64, up client.RecordUpload) (*model.ComplianceRecord, error) {
	f.calls = append(f.calls, "record")
	return &model.ComplianceRecord{ComplianceTypeID: up.ComplianceTypeID}, nil
}
