package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcomply/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "fleetcomply.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

type fixture struct {
	tenant  *model.Tenant
	truck   *model.VehicleType
	vehicle *model.Vehicle
}

func seed(t *testing.T, st *Store) fixture {
	t.Helper()
	ctx := context.Background()

	tenant, err := st.CreateTenant(ctx, "acme")
	require.NoError(t, err)

	truck := &model.VehicleType{
		TenantID: tenant.ID,
		Name:     "Truck",
		Slug:     "truck",
		Fields: []model.VehicleTypeField{
			{Key: "vin", Label: "VIN", FieldType: "text", Required: true, SortOrder: 1},
			{Key: "fuel_type", Label: "Fuel", FieldType: "select", Options: []string{"Diesel", "LNG"}, SortOrder: 2},
		},
	}
	require.NoError(t, st.CreateVehicleType(ctx, truck))

	in := &VehicleInput{
		Vehicle: model.Vehicle{TenantID: tenant.ID, VehicleTypeID: truck.ID, Name: "T-01", RegistrationNumber: "AB-123"},
		Values: []model.VehicleFieldValue{
			{FieldID: truck.Fields[0].ID, Value: "1HGCM82633A004352"},
			{FieldID: truck.Fields[1].ID, Value: "Diesel"},
		},
	}
	require.NoError(t, st.CreateVehicle(ctx, in))

	v, err := st.GetVehicle(ctx, tenant.ID, in.Vehicle.ID)
	require.NoError(t, err)
	return fixture{tenant: tenant, truck: truck, vehicle: v}
}

func TestVehicleTypeRoundTrip(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	got, err := st.GetVehicleType(ctx, f.tenant.ID, f.truck.ID)
	require.NoError(t, err)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "vin", got.Fields[0].Key)
	assert.True(t, got.Fields[0].Required)
	assert.Nil(t, got.Fields[0].Options)
	assert.Equal(t, []string{"Diesel", "LNG"}, got.Fields[1].Options)

	// 同一类型内 key 重复
	err = st.AddField(ctx, f.tenant.ID, &model.VehicleTypeField{VehicleTypeID: f.truck.ID, Key: "vin", Label: "VIN 2", FieldType: "text"})
	assert.ErrorIs(t, err, ErrConflict)

	extra := &model.VehicleTypeField{VehicleTypeID: f.truck.ID, Key: "axles", Label: "Axles", FieldType: "number"}
	require.NoError(t, st.AddField(ctx, f.tenant.ID, extra))
	assert.Equal(t, 3, extra.SortOrder)

	require.NoError(t, st.DeleteField(ctx, f.tenant.ID, f.truck.ID, extra.ID))
	assert.ErrorIs(t, st.DeleteField(ctx, f.tenant.ID, f.truck.ID, extra.ID), ErrNotFound)
}

func TestTenantIsolation(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	other, err := st.CreateTenant(ctx, "globex")
	require.NoError(t, err)

	_, err = st.GetVehicle(ctx, other.ID, f.vehicle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetVehicleType(ctx, other.ID, f.truck.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.DeleteVehicle(ctx, other.ID, f.vehicle.ID), ErrNotFound)

	err = st.CreateComplianceRecord(ctx, &model.ComplianceRecord{TenantID: other.ID, VehicleID: f.vehicle.ID, ComplianceTypeID: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVehicleListAndUpdate(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	assert.Equal(t, "Diesel", f.vehicle.FieldValues["fuel_type"])

	ids, err := st.BatchInsertVehicles(ctx, []VehicleInput{
		{Vehicle: model.Vehicle{TenantID: f.tenant.ID, VehicleTypeID: f.truck.ID, Name: "T-02"}},
		{Vehicle: model.Vehicle{TenantID: f.tenant.ID, VehicleTypeID: f.truck.ID, Name: "T-03", RegistrationNumber: "ZZ-9"}},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	opts := VehicleQueryOptions{TenantID: f.tenant.ID, Keyword: "ZZ"}
	list, err := st.ListVehicles(ctx, opts)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T-03", list[0].Name)
	assert.NotNil(t, list[0].FieldValues)

	n, err := st.CountVehicles(ctx, VehicleQueryOptions{TenantID: f.tenant.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := st.ListVehicles(ctx, VehicleQueryOptions{TenantID: f.tenant.ID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	upd := &VehicleInput{
		Vehicle: model.Vehicle{ID: f.vehicle.ID, TenantID: f.tenant.ID, Name: "T-01b", Status: model.VehicleStatusInactive},
		Values:  []model.VehicleFieldValue{{FieldID: f.truck.Fields[0].ID, Value: "NEWVIN"}},
	}
	require.NoError(t, st.UpdateVehicle(ctx, upd))
	got, err := st.GetVehicle(ctx, f.tenant.ID, f.vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"vin": "NEWVIN"}, got.FieldValues)
	assert.Equal(t, model.VehicleStatusInactive, got.Status)

	// 使用中的类型不能删除
	assert.ErrorIs(t, st.DeleteVehicleType(ctx, f.tenant.ID, f.truck.ID), ErrConflict)
}

func TestListVehiclesBeyondOneBatch(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	inputs := make([]VehicleInput, 0, 2*fieldValueBatch+10)
	for i := 0; i < cap(inputs); i++ {
		inputs = append(inputs, VehicleInput{
			Vehicle: model.Vehicle{TenantID: f.tenant.ID, VehicleTypeID: f.truck.ID, Name: fmt.Sprintf("B-%04d", i)},
			Values:  []model.VehicleFieldValue{{FieldID: f.truck.Fields[0].ID, Value: fmt.Sprintf("VIN%04d", i)}},
		})
	}
	_, err := st.BatchInsertVehicles(ctx, inputs)
	require.NoError(t, err)

	all, err := st.ListVehicles(ctx, VehicleQueryOptions{TenantID: f.tenant.ID})
	require.NoError(t, err)
	require.Len(t, all, len(inputs)+1)
	withVIN := 0
	for _, v := range all {
		if v.FieldValues["vin"] != "" {
			withVIN++
		}
	}
	assert.Equal(t, len(all), withVIN)

	bare, err := st.ListVehicles(ctx, VehicleQueryOptions{TenantID: f.tenant.ID, SkipFieldValues: true})
	require.NoError(t, err)
	require.Len(t, bare, len(inputs)+1)
	assert.Nil(t, bare[0].FieldValues)
}

func TestBatchInsertIsAtomic(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	_, err := st.BatchInsertVehicles(ctx, []VehicleInput{
		{Vehicle: model.Vehicle{TenantID: f.tenant.ID, VehicleTypeID: f.truck.ID, Name: "ok"}},
		{Vehicle: model.Vehicle{TenantID: f.tenant.ID, VehicleTypeID: 9999, Name: "bad type"}},
	})
	require.Error(t, err)

	n, err := st.CountVehicles(ctx, VehicleQueryOptions{TenantID: f.tenant.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestComplianceRecordsAndDocuments(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	ct := &model.ComplianceType{TenantID: f.tenant.ID, Name: "Insurance", Category: "legal", IsRequired: true, RenewalLeadDays: 14}
	require.NoError(t, st.CreateComplianceType(ctx, ct))
	vanOnly := &model.ComplianceType{TenantID: f.tenant.ID, Name: "Van permit", VehicleTypeID: ptr(int64(9999))}
	assert.Error(t, st.CreateComplianceType(ctx, vanOnly))

	types, err := st.ListComplianceTypes(ctx, f.tenant.ID, &f.truck.ID)
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Nil(t, types[0].VehicleTypeID)
	assert.True(t, types[0].IsRequired)

	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := &model.ComplianceRecord{TenantID: f.tenant.ID, VehicleID: f.vehicle.ID, ComplianceTypeID: ct.ID, ExpiryDate: &expiry}
	require.NoError(t, st.CreateComplianceRecord(ctx, rec))

	doc := &model.Document{
		TenantID: f.tenant.ID, VehicleID: f.vehicle.ID, ComplianceRecordID: &rec.ID,
		Name: "policy", DocumentType: model.DocTypeInsurance, FilePath: "1/abc.pdf", FileName: "policy.pdf",
	}
	require.NoError(t, st.CreateDocument(ctx, doc))
	assert.False(t, doc.UploadedAt.IsZero())

	records, err := st.ListComplianceRecords(ctx, f.tenant.ID, f.vehicle.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ExpiryDate)
	assert.True(t, records[0].ExpiryDate.Equal(expiry))
	require.Len(t, records[0].Documents, 1)
	assert.Equal(t, "policy", records[0].Documents[0].Name)

	// 删除记录后文档保留并解除关联
	require.NoError(t, st.DeleteComplianceRecord(ctx, f.tenant.ID, rec.ID))
	got, err := st.GetDocument(ctx, f.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ComplianceRecordID)

	removed, err := st.DeleteDocument(ctx, f.tenant.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "1/abc.pdf", removed.FilePath)
	_, err = st.GetDocument(ctx, f.tenant.ID, doc.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNotificationsAreCreatedOnce(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	ct := &model.ComplianceType{TenantID: f.tenant.ID, Name: "Registration", IsRequired: true}
	require.NoError(t, st.CreateComplianceType(ctx, ct))
	rec := &model.ComplianceRecord{TenantID: f.tenant.ID, VehicleID: f.vehicle.ID, ComplianceTypeID: ct.ID}
	require.NoError(t, st.CreateComplianceRecord(ctx, rec))

	n := model.Notification{TenantID: f.tenant.ID, VehicleID: f.vehicle.ID, ComplianceRecordID: rec.ID,
		Kind: model.NotificationExpired, Title: "Registration expired", Message: "T-01"}
	created, err := st.CreateNotificationOnce(ctx, &n)
	require.NoError(t, err)
	assert.True(t, created)
	dup := n
	created, err = st.CreateNotificationOnce(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	unread, err := st.ListNotifications(ctx, f.tenant.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	require.NoError(t, st.MarkNotificationRead(ctx, f.tenant.ID, unread[0].ID))
	unread, err = st.ListNotifications(ctx, f.tenant.ID, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	changed, err := st.MarkAllNotificationsRead(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestSessionsAndSettings(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	sess, err := st.CreateSession(ctx, f.tenant.ID, "ops", time.Hour)
	require.NoError(t, err)
	assert.True(t, sess.Active(time.Now()))

	require.NoError(t, st.RevokeSession(ctx, sess.Token))
	require.NoError(t, st.RevokeSession(ctx, sess.Token))
	got, err := st.GetSession(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, got.Active(time.Now()))
	assert.ErrorIs(t, st.RevokeSession(ctx, "nope"), ErrNotFound)

	_, err = st.GetSettingInt(ctx, f.tenant.ID, SettingAtRiskDays)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, st.SetSettingInt(ctx, f.tenant.ID, SettingAtRiskDays, 45))
	days, err := st.GetSettingInt(ctx, f.tenant.ID, SettingAtRiskDays)
	require.NoError(t, err)
	assert.Equal(t, 45, days)
}

func TestImportLogs(t *testing.T) {
	st := newTestStore(t)
	f := seed(t, st)
	ctx := context.Background()

	id, err := st.CreateImportLog(ctx, f.tenant.ID, f.truck.ID, "trucks.xlsx")
	require.NoError(t, err)
	require.NoError(t, st.UpdateImportLog(ctx, id, 10, 8, 2, ImportStatusCompleted, ""))

	logs, err := st.ListImportLogs(ctx, f.tenant.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 8, logs[0].ImportedRows)
	assert.Equal(t, ImportStatusCompleted, logs[0].Status)
	assert.NotNil(t, logs[0].CompletedAt)
}

func ptr[T any](v T) *T { return &v }
