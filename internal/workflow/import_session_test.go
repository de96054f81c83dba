package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcomply/internal/client"
	"fleetcomply/internal/fields"
	"fleetcomply/internal/model"
)

func truckTypes() []model.VehicleType {
	return []model.VehicleType{{
		ID:   4,
		Name: "Truck",
		Slug: "truck",
		Fields: []model.VehicleTypeField{
			{ID: 1, Key: "vin", Label: "VIN", FieldType: fields.TypeText, Required: true, SortOrder: 1},
			{ID: 2, Key: "driver_email", Label: "Driver Email", FieldType: fields.TypeEmail, SortOrder: 2},
			{ID: 3, Key: "fuel", Label: "Fuel", FieldType: fields.TypeSelect, Options: []string{"Diesel", "Petrol"}, SortOrder: 3},
		},
	}}
}

func previewOf(total, invalid int, rows ...model.PreviewRow) *model.PreviewResult {
	return &model.PreviewResult{
		TotalRows:   total,
		ValidRows:   total - invalid,
		InvalidRows: invalid,
		Rows:        rows,
		Pagination:  model.Pagination{Page: 1, PerPage: 25, Total: total, TotalPages: 1},
	}
}

func row(n int, data map[string]string, errs ...string) model.PreviewRow {
	if errs == nil {
		errs = []string{}
	}
	return model.PreviewRow{RowNumber: n, Data: data, Errors: errs, IsValid: len(errs) == 0}
}

func confident(id int64) *model.TypeDetection {
	return &model.TypeDetection{VehicleTypeID: &id, TypeName: "Truck", Confidence: 1, Method: "template"}
}

func loadedSession(t *testing.T, api *fakeImport) *ImportSession {
	t.Helper()
	api.detection = confident(4)
	s := NewImportSession(api, truckTypes())
	require.NoError(t, s.SelectFile(context.Background(), client.File{Name: "vehicle-import-truck.xlsx", Content: []byte("x")}))
	require.Equal(t, TypeConfirmed, s.Snapshot().State)
	require.NoError(t, s.Upload(context.Background()))
	return s
}

func tagged(errs []string, key string) []string {
	var out []string
	for _, e := range errs {
		if strings.HasPrefix(e, key+": ") {
			out = append(out, e)
		}
	}
	return out
}

func TestImportSession_Detection(t *testing.T) {
	ctx := context.Background()
	file := client.File{Name: "fleet.csv", Content: []byte("name\n")}

	api := &fakeImport{detection: &model.TypeDetection{Confidence: 0.2, Method: "none", NeedsSelection: true}}
	s := NewImportSession(api, truckTypes())
	require.NoError(t, s.SelectFile(ctx, file))
	assert.Equal(t, AwaitingTypeSelection, s.Snapshot().State)
	assert.ErrorIs(t, s.Upload(ctx), ErrNoVehicleType)
	assert.ErrorIs(t, s.SelectType(99), ErrUnknownVehicleType)
	require.NoError(t, s.SelectType(4))
	assert.Equal(t, TypeConfirmed, s.Snapshot().State)
	assert.Equal(t, int64(4), s.Snapshot().VehicleTypeID)

	api = &fakeImport{detectErr: errBoom}
	s = NewImportSession(api, truckTypes())
	require.NoError(t, s.SelectFile(ctx, file))
	assert.Equal(t, AwaitingTypeSelection, s.Snapshot().State)

	s = NewImportSession(&fakeImport{}, truckTypes())
	assert.ErrorIs(t, s.SelectType(4), ErrNoFile)
}

func TestImportSession_EditCellReplacesOnlyThatFieldsErrors(t *testing.T) {
	api := &fakeImport{previews: []*model.PreviewResult{previewOf(1, 1,
		row(2, map[string]string{"name": "T1", "vin": "", "driver_email": "a@b.co"}, "vin: is required"),
	)}}
	s := loadedSession(t, api)

	require.NoError(t, s.EditCell(2, "driver_email", "not-an-email"))
	r := s.Snapshot().Preview.Rows[0]
	assert.Len(t, tagged(r.Errors, "driver_email"), 1)
	assert.Equal(t, []string{"vin: is required"}, tagged(r.Errors, "vin"))
	assert.Len(t, r.Errors, 2)
	assert.False(t, r.IsValid)

	require.NoError(t, s.EditCell(2, "driver_email", "driver@fleet.example"))
	r = s.Snapshot().Preview.Rows[0]
	assert.Equal(t, []string{"vin: is required"}, r.Errors)

	require.NoError(t, s.EditCell(2, "vin", "1HGBH41JXMN109186"))
	snap := s.Snapshot()
	assert.Empty(t, snap.Preview.Rows[0].Errors)
	assert.True(t, snap.Preview.Rows[0].IsValid)
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, model.EditedRows{2: {"driver_email": "driver@fleet.example", "vin": "1HGBH41JXMN109186"}}, snap.Edited)

	assert.ErrorIs(t, s.EditCell(9, "vin", "x"), ErrRowNotLoaded)
	assert.ErrorIs(t, s.EditCell(2, "colour", "red"), ErrUnknownColumn)
}

func TestImportSession_FillDownSkipsFilledRowsAndOtherPages(t *testing.T) {
	api := &fakeImport{previews: []*model.PreviewResult{previewOf(30, 0,
		row(2, map[string]string{"name": "T1", "vin": "A", "fuel": "Diesel"}),
		row(3, map[string]string{"name": "T2", "vin": "B", "fuel": "Petrol"}),
		row(4, map[string]string{"name": "T3", "vin": "C", "fuel": ""}),
	)}}
	s := loadedSession(t, api)

	n, err := s.FillDown("fuel")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap := s.Snapshot()
	assert.Equal(t, "Diesel", snap.Preview.Rows[0].Data["fuel"])
	assert.Equal(t, "Petrol", snap.Preview.Rows[1].Data["fuel"])
	assert.Equal(t, "Diesel", snap.Preview.Rows[2].Data["fuel"])
	assert.Equal(t, model.EditedRows{4: {"fuel": "Diesel"}}, snap.Edited)

	n, err = s.FillDown("driver_email")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportSession_CountdownFollowsServerCounts(t *testing.T) {
	ctx := context.Background()
	api := &fakeImport{previews: []*model.PreviewResult{
		previewOf(3, 1, row(2, map[string]string{"name": "", "vin": "A"}, "name: is required")),
		previewOf(3, 0, row(2, map[string]string{"name": "T1", "vin": "A"})),
	}}
	s := loadedSession(t, api)
	assert.Nil(t, s.Snapshot().Countdown)
	assert.Equal(t, PreviewLoaded, s.Snapshot().State)

	require.NoError(t, s.EditCell(2, "name", "T1"))
	assert.Nil(t, s.Snapshot().Countdown)

	require.NoError(t, s.Revalidate(ctx))
	snap := s.Snapshot()
	require.NotNil(t, snap.Countdown)
	assert.Equal(t, CountdownSeconds, *snap.Countdown)
	assert.Equal(t, AutoImportCountdown, snap.State)
	assert.Equal(t, model.EditedRows{2: {"name": "T1"}}, api.requests[1].Edited)

	s.CancelCountdown()
	snap = s.Snapshot()
	assert.Nil(t, snap.Countdown)
	assert.Equal(t, ManualImport, snap.State)
}

func TestImportSession_EmptyFileNeverArmsCountdown(t *testing.T) {
	api := &fakeImport{previews: []*model.PreviewResult{previewOf(0, 0)}}
	s := loadedSession(t, api)
	assert.Nil(t, s.Snapshot().Countdown)
}

func TestImportSession_CountdownFiresOnAggregateCounts(t *testing.T) {
	ctx := context.Background()
	page2 := previewOf(40, 0, row(27, map[string]string{"name": "T26", "vin": "Z"}))
	page2.Pagination.Page = 2
	api := &fakeImport{previews: []*model.PreviewResult{previewOf(40, 0), page2}}
	s := loadedSession(t, api)

	require.NoError(t, s.GoToPage(ctx, 2))
	require.Equal(t, 2, s.Snapshot().Page)
	require.NotNil(t, s.Snapshot().Countdown)

	for i := 1; i < CountdownSeconds; i++ {
		res, err := s.Tick(ctx)
		require.NoError(t, err)
		require.Nil(t, res)
		assert.Equal(t, CountdownSeconds-i, *s.Snapshot().Countdown)
	}
	res, err := s.Tick(ctx)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Imported)
	require.Len(t, api.imports, 1)
	assert.Equal(t, "vehicle-import-truck.xlsx", api.imports[0].File.Name)

	snap := s.Snapshot()
	assert.Equal(t, Done, snap.State)
	assert.Nil(t, snap.Countdown)
	assert.Equal(t, res, snap.Result)
}

func TestImportSession_ImportBlockedWhileInvalid(t *testing.T) {
	api := &fakeImport{previews: []*model.PreviewResult{
		previewOf(2, 1, row(2, map[string]string{"name": "T1", "vin": ""}, "vin: is required")),
	}}
	s := loadedSession(t, api)

	require.NoError(t, s.EditCell(2, "vin", "A"))
	_, err := s.Import(context.Background())
	assert.ErrorIs(t, err, ErrImportBlocked)
	assert.Empty(t, api.imports)

	res, err := s.Tick(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestImportSession_PreviewFailure(t *testing.T) {
	api := &fakeImport{detection: confident(4)}
	s := NewImportSession(api, truckTypes())
	require.NoError(t, s.SelectFile(context.Background(), client.File{Name: "a.xlsx"}))

	require.ErrorIs(t, s.Upload(context.Background()), errBoom)
	snap := s.Snapshot()
	assert.Equal(t, ImportFailed, snap.State)
	assert.ErrorIs(t, snap.Err, errBoom)
	assert.ErrorIs(t, s.GoToPage(context.Background(), 2), ErrNoPreview)
}

func TestImportSession_ImportRunsOnce(t *testing.T) {
	ctx := context.Background()
	api := &fakeImport{previews: []*model.PreviewResult{
		previewOf(1, 0, row(2, map[string]string{"name": "T1", "vin": "A"})),
	}}
	s := loadedSession(t, api)

	var during error
	api.importing = func() {
		_, during = s.Import(ctx)
	}
	_, err := s.Import(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, during, ErrImportInProgress)

	_, err = s.Import(ctx)
	assert.ErrorIs(t, err, ErrImportFinished)
	assert.ErrorIs(t, s.Revalidate(ctx), ErrImportFinished)
	assert.ErrorIs(t, s.EditCell(2, "vin", "B"), ErrImportFinished)
	res, err := s.Tick(ctx)
	assert.NoError(t, err)
	assert.Nil(t, res)

	assert.Len(t, api.imports, 1)
	assert.Equal(t, Done, s.Snapshot().State)
}

func TestImportSession_LocalErrorDisarmsCountdown(t *testing.T) {
	ctx := context.Background()
	api := &fakeImport{previews: []*model.PreviewResult{
		previewOf(2, 0,
			row(2, map[string]string{"name": "T1", "vin": "A", "fuel": "Diesel"}),
			row(3, map[string]string{"name": "T2", "vin": "B", "fuel": ""}),
		),
	}}
	s := loadedSession(t, api)
	require.NotNil(t, s.Snapshot().Countdown)

	// 合法编辑不影响倒计时
	n, err := s.FillDown("fuel")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	snap := s.Snapshot()
	require.NotNil(t, snap.Countdown)
	assert.Equal(t, AutoImportCountdown, snap.State)

	require.NoError(t, s.EditCell(2, "vin", ""))
	snap = s.Snapshot()
	assert.Nil(t, snap.Countdown)
	assert.Equal(t, Editing, snap.State)
	assert.Equal(t, []string{"vin: is required"}, snap.Preview.Rows[0].Errors)

	for i := 0; i < CountdownSeconds; i++ {
		res, err := s.Tick(ctx)
		require.NoError(t, err)
		require.Nil(t, res)
	}
	assert.Empty(t, api.imports)

	// 仅本地修正不够，需要服务端确认
	require.NoError(t, s.EditCell(2, "vin", "A2"))
	assert.Nil(t, s.Snapshot().Countdown)
	require.NoError(t, s.Revalidate(ctx))
	snap = s.Snapshot()
	require.NotNil(t, snap.Countdown)
	assert.Equal(t, CountdownSeconds, *snap.Countdown)
}
