package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fleetcomply/internal/compliance"
	"fleetcomply/internal/config"
	"fleetcomply/internal/model"
	"fleetcomply/internal/storage"
	"fleetcomply/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	store  *store.Store
	files  *storage.Local
	tenant *model.Tenant
	token  string
	truck  *model.VehicleType
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "fleetcomply.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	files, err := storage.NewLocal(filepath.Join(dir, "uploads"), "/api/v1/files")
	require.NoError(t, err)

	h := NewHandler(Deps{
		Store:      st,
		Compliance: compliance.NewService(st, 30, nil),
		Storage:    files,
		Import:     config.ImportConfig{DefaultPerPage: 25, MaxPerPage: 200},
		MaxUpload:  1 << 20,
	})
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	tenant, err := st.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	sess, err := st.CreateSession(ctx, tenant.ID, "ops", time.Hour)
	require.NoError(t, err)

	truck := &model.VehicleType{
		TenantID: tenant.ID,
		Name:     "Truck",
		Slug:     "truck",
		Fields: []model.VehicleTypeField{
			{Key: "vin", Label: "VIN", FieldType: "text", Required: true, SortOrder: 1},
			{Key: "driver_email", Label: "Driver Email", FieldType: "email", SortOrder: 2},
			{Key: "fuel", Label: "Fuel", FieldType: "select", Options: []string{"Diesel", "Petrol"}, SortOrder: 3},
		},
	}
	require.NoError(t, st.CreateVehicleType(ctx, truck))

	return &testEnv{t: t, router: router, store: st, files: files, tenant: tenant, token: sess.Token, truck: truck}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("X-Tenant-ID", fmt.Sprint(e.tenant.ID))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) multipart(path string, form map[string]string, fileName string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form {
		require.NoError(e.t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(e.t, err)
		_, err = fw.Write(content)
		require.NoError(e.t, err)
	}
	require.NoError(e.t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) createVehicle(name string) model.Vehicle {
	w := e.json(http.MethodPost, "/api/v1/vehicles", gin.H{
		"vehicle_type_id": e.truck.ID,
		"name":            name,
		"field_values":    map[string]string{"vin": "VIN-" + name},
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.Vehicle](e.t, w)
}

func TestAuthIsEnforced(t *testing.T) {
	env := newEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("X-Tenant-ID", "999")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.json(http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.json(http.MethodGet, "/api/v1/vehicles", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVehicleLifecycle(t *testing.T) {
	env := newEnv(t)

	w := env.json(http.MethodPost, "/api/v1/vehicles", gin.H{
		"vehicle_type_id": env.truck.ID,
		"name":            "T-01",
		"field_values":    map[string]string{"driver_email": "not-an-email"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[struct {
		Fields []struct{ Field, Message string } `json:"fields"`
	}](t, w)
	var tagged []string
	for _, f := range body.Fields {
		tagged = append(tagged, f.Field)
	}
	assert.ElementsMatch(t, []string{"driver_email", "vin"}, tagged)

	w = env.json(http.MethodPost, "/api/v1/vehicles", gin.H{"vehicle_type_id": env.truck.ID})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"name"`)

	v := env.createVehicle("T-01")
	assert.Equal(t, model.VehicleStatusActive, v.Status)
	assert.Equal(t, "VIN-T-01", v.FieldValues["vin"])
	env.createVehicle("T-02")

	w = env.json(http.MethodPatch, fmt.Sprintf("/api/v1/vehicles/%d", v.ID), gin.H{
		"status":       "inactive",
		"field_values": map[string]string{"fuel": "diesel"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[model.Vehicle](t, w)
	assert.Equal(t, model.VehicleStatusInactive, updated.Status)
	assert.Equal(t, "Diesel", updated.FieldValues["fuel"])
	assert.Equal(t, "VIN-T-01", updated.FieldValues["vin"])

	w = env.json(http.MethodGet, "/api/v1/vehicles?status=active&per_page=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Vehicles   []model.Vehicle  `json:"vehicles"`
		Pagination model.Pagination `json:"pagination"`
	}](t, w)
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, "T-02", list.Vehicles[0].Name)
	assert.Equal(t, 1, list.Pagination.Total)

	w = env.json(http.MethodDelete, fmt.Sprintf("/api/v1/vehicles/%d", v.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicles/%d", v.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 使用中的类型不能删除
	w = env.json(http.MethodDelete, fmt.Sprintf("/api/v1/vehicle-types/%d", env.truck.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestVehicleAttributesAreTyped(t *testing.T) {
	env := newEnv(t)

	w := env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{
		"name": "Trailer",
		"fields": []gin.H{
			{"key": "axles", "label": "Axles", "field_type": "number"},
			{"key": "built", "label": "Built", "field_type": "year"},
			{"key": "reefer", "label": "Reefer", "field_type": "boolean"},
			{"key": "inspected_on", "label": "Inspected On", "field_type": "date"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trailer := decode[model.VehicleType](t, w)

	w = env.json(http.MethodPost, "/api/v1/vehicles", gin.H{
		"vehicle_type_id": trailer.ID,
		"name":            "TR-1",
		"field_values":    map[string]string{"axles": "3", "built": "2019", "reefer": "yes", "inspected_on": "15/06/2024"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"axles":3,"built":2019,"reefer":true,"inspected_on":"2024-06-15"}`,
		string(decode[struct {
			Attributes json.RawMessage `json:"attributes"`
		}](t, w).Attributes))

	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicles?vehicle_type_id=%d", trailer.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Vehicles []model.Vehicle `json:"vehicles"`
	}](t, w)
	require.Len(t, list.Vehicles, 1)
	assert.Equal(t, true, list.Vehicles[0].Attributes["reefer"])
	assert.Equal(t, 3.0, list.Vehicles[0].Attributes["axles"])
}

func TestVehicleTypeValidation(t *testing.T) {
	env := newEnv(t)

	w := env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{
		"name":   "Van",
		"fields": []gin.H{{"key": "body", "label": "Body", "field_type": "select"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{
		"name":   "Van",
		"fields": []gin.H{{"key": "body", "label": "Body", "field_type": "colour"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"fields[0].field_type"`)

	w = env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{
		"name":   "Box Van",
		"fields": []gin.H{{"key": "payload", "label": "Payload", "field_type": "number", "required": true}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	van := decode[model.VehicleType](t, w)
	assert.Equal(t, "box-van", van.Slug)
	require.Len(t, van.Fields, 1)

	w = env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{"name": "Box Van"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.json(http.MethodPost, fmt.Sprintf("/api/v1/vehicle-types/%d/fields", van.ID), gin.H{
		"key": "payload", "label": "Payload again", "field_type": "number",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.json(http.MethodPost, fmt.Sprintf("/api/v1/vehicle-types/%d/fields", van.ID), gin.H{
		"key": "axles", "label": "Axles", "field_type": "number",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	field := decode[model.VehicleTypeField](t, w)
	assert.Equal(t, 2, field.SortOrder)

	w = env.json(http.MethodDelete, fmt.Sprintf("/api/v1/vehicle-types/%d/fields/%d", van.ID, field.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBuiltinColumnKeysAreReserved(t *testing.T) {
	env := newEnv(t)

	w := env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{
		"name":   "Coach",
		"fields": []gin.H{{"key": "registration_number", "label": "Plate", "field_type": "text", "required": true}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "reserved")

	w = env.json(http.MethodPost, "/api/v1/vehicle-types", gin.H{"name": "Coach"})
	require.Equal(t, http.StatusCreated, w.Code)
	coach := decode[model.VehicleType](t, w)

	w = env.json(http.MethodPost, fmt.Sprintf("/api/v1/vehicle-types/%d/fields", coach.ID), gin.H{
		"key": "name", "label": "Name", "field_type": "text",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicle-types/%d", coach.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[model.VehicleType](t, w).Fields)
}

const uploadCSV = "Name,VIN,Driver Email\n" +
	"T-01,V1,a@fleet.io\n" +
	"T-02,,b@fleet.io\n" +
	"T-03,V3,broken\n"

func TestImportPreviewAndCommit(t *testing.T) {
	env := newEnv(t)
	path := "/api/v1/vehicles/import/preview"
	form := map[string]string{"vehicle_type_id": fmt.Sprint(env.truck.ID), "per_page": "2"}

	w := env.multipart(path, form, "trucks.csv", []byte(uploadCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode[model.PreviewResult](t, w)
	assert.Equal(t, 3, preview.TotalRows)
	assert.Equal(t, 1, preview.ValidRows)
	assert.Equal(t, 2, preview.InvalidRows)
	assert.Equal(t, model.Pagination{Page: 1, PerPage: 2, Total: 3, TotalPages: 2}, preview.Pagination)
	require.Len(t, preview.Rows, 2)
	assert.Equal(t, 2, preview.Rows[0].RowNumber)
	assert.Equal(t, []string{"vin: is required"}, preview.Rows[1].Errors)

	form["edited_rows"] = `{"3":{"vin":"V2"},"4":{"driver_email":"c@fleet.io"}}`
	form["page"] = "2"
	w = env.multipart(path, form, "trucks.csv", []byte(uploadCSV))
	require.Equal(t, http.StatusOK, w.Code)
	preview = decode[model.PreviewResult](t, w)
	assert.Equal(t, 0, preview.InvalidRows)
	require.Len(t, preview.Rows, 1)
	assert.Equal(t, "c@fleet.io", preview.Rows[0].Data["driver_email"])

	delete(form, "page")
	w = env.multipart("/api/v1/vehicles/import", form, "trucks.csv", []byte(uploadCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[model.ImportResult](t, w)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 0, result.Failed)

	w = env.json(http.MethodGet, "/api/v1/imports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[[]model.ImportLog](t, w)
	require.Len(t, logs, 1)
	assert.Equal(t, store.ImportStatusCompleted, logs[0].Status)

	w = env.multipart(path, map[string]string{"vehicle_type_id": fmt.Sprint(env.truck.ID)}, "trucks.pdf", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.multipart(path, map[string]string{"vehicle_type_id": fmt.Sprint(env.truck.ID), "edited_rows": "[1]"}, "trucks.csv", []byte(uploadCSV))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportStreamEmitsEvents(t *testing.T) {
	env := newEnv(t)
	w := env.multipart("/api/v1/vehicles/import/stream",
		map[string]string{"vehicle_type_id": fmt.Sprint(env.truck.ID)}, "trucks.csv", []byte(uploadCSV))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var types []string
	var last map[string]any
	for _, line := range strings.Split(w.Body.String(), "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(payload), &last))
		types = append(types, last["type"].(string))
	}
	assert.Equal(t, []string{"start", "done"}, types)
	data := last["data"].(map[string]any)
	assert.EqualValues(t, 1, data["imported"])
	assert.EqualValues(t, 2, data["failed"])
}

func TestDetectType(t *testing.T) {
	env := newEnv(t)
	w := env.json(http.MethodPost, "/api/v1/vehicles/import/detect-type", gin.H{"filename": "vehicle-import-truck-2026.xlsx"})
	require.Equal(t, http.StatusOK, w.Code)
	det := decode[model.TypeDetection](t, w)
	require.NotNil(t, det.VehicleTypeID)
	assert.Equal(t, env.truck.ID, *det.VehicleTypeID)
	assert.False(t, det.NeedsSelection)

	w = env.json(http.MethodPost, "/api/v1/vehicles/import/detect-type", gin.H{"filename": "export.csv"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.TypeDetection](t, w).NeedsSelection)
}

func TestTemplateDownloadLinkIsSingleUse(t *testing.T) {
	env := newEnv(t)

	w := env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicle-types/%d/import-template", env.truck.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "vehicle-import-truck")

	w = env.json(http.MethodPost, fmt.Sprintf("/api/v1/vehicle-types/%d/import-template/link", env.truck.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	link := decode[struct {
		DownloadURL string `json:"download_url"`
	}](t, w)
	require.True(t, strings.HasPrefix(link.DownloadURL, "/api/v1/downloads/"))

	// 链接本身不需要凭证
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, link.DownloadURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows("Vehicles")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Registration Number", "VIN", "Driver Email", "Fuel"}, rows[0])

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, link.DownloadURL, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComplianceRecordWithDocument(t *testing.T) {
	env := newEnv(t)
	v := env.createVehicle("T-01")

	w := env.json(http.MethodPost, "/api/v1/compliance-types", gin.H{
		"name": "Insurance", "category": "legal", "validity_days": 365, "renewal_lead_days": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ct := decode[model.ComplianceType](t, w)
	assert.True(t, ct.IsRequired)

	recordsPath := fmt.Sprintf("/api/v1/vehicles/%d/compliance/records", v.ID)
	issued := time.Now().AddDate(0, 0, -10).Format(store.DateLayout)
	w = env.multipart(recordsPath, map[string]string{
		"compliance_type_id": fmt.Sprint(ct.ID),
		"issue_date":         issued,
	}, "policy.pdf", []byte("%PDF-1.4 policy"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decode[model.ComplianceRecord](t, w)
	require.NotNil(t, rec.ExpiryDate)
	assert.Equal(t, model.StatusCompliant, rec.Status)
	require.Len(t, rec.Documents, 1)
	doc := rec.Documents[0]
	assert.Equal(t, model.DocTypeInsurance, doc.DocumentType)
	assert.Equal(t, "policy.pdf", doc.Name)
	assert.True(t, strings.HasPrefix(doc.URL, "/api/v1/files/"))

	w = env.multipart(recordsPath, map[string]string{"compliance_type_id": fmt.Sprint(ct.ID), "expiry_date": "31/12/2026"}, "", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"expiry_date"`)

	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicles/%d/compliance/status", v.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[model.ComplianceStatus](t, w)
	assert.Equal(t, 100.0, status.Summary.ComplianceScore)
	assert.Equal(t, model.OverallCompliant, status.Summary.OverallStatus)
	assert.True(t, status.Summary.CanOperate)

	// 存储的文件无需凭证即可访问
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, doc.URL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 policy", w.Body.String())

	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicles/%d/documents", v.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Document](t, w), 1)

	full, err := env.files.Path(doc.FilePath)
	require.NoError(t, err)
	w = env.json(http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", doc.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err = os.Stat(full)
	assert.True(t, os.IsNotExist(err))

	w = env.json(http.MethodDelete, fmt.Sprintf("/api/v1/compliance/records/%d", rec.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.json(http.MethodGet, fmt.Sprintf("/api/v1/vehicles/%d/compliance/status", v.ID), nil)
	status = decode[model.ComplianceStatus](t, w)
	assert.Equal(t, model.OverallIncomplete, status.Summary.OverallStatus)
}

func TestDocumentUploadRequiresNameAndType(t *testing.T) {
	env := newEnv(t)
	v := env.createVehicle("T-01")
	path := fmt.Sprintf("/api/v1/vehicles/%d/documents", v.ID)

	w := env.multipart(path, map[string]string{"document_type": "permit"}, "p.pdf", []byte("x"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.multipart(path, map[string]string{"name": "Permit", "document_type": "permit"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.multipart(path, map[string]string{"name": "Permit", "document_type": "permit"}, "p.pdf", []byte("x"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.multipart("/api/v1/vehicles/999/documents", map[string]string{"name": "Permit", "document_type": "permit"}, "p.pdf", []byte("x"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotifications(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	v := env.createVehicle("T-01")

	ct := &model.ComplianceType{TenantID: env.tenant.ID, Name: "Registration", IsRequired: true}
	require.NoError(t, env.store.CreateComplianceType(ctx, ct))
	expired := time.Now().AddDate(0, 0, -3)
	rec := &model.ComplianceRecord{TenantID: env.tenant.ID, VehicleID: v.ID, ComplianceTypeID: ct.ID, ExpiryDate: &expired}
	require.NoError(t, env.store.CreateComplianceRecord(ctx, rec))
	for _, kind := range []string{model.NotificationExpiring, model.NotificationExpired} {
		_, err := env.store.CreateNotificationOnce(ctx, &model.Notification{
			TenantID: env.tenant.ID, VehicleID: v.ID, ComplianceRecordID: rec.ID, Kind: kind, Title: kind, Message: kind,
		})
		require.NoError(t, err)
	}

	w := env.json(http.MethodGet, "/api/v1/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]model.Notification](t, w)
	require.Len(t, items, 2)

	w = env.json(http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", items[0].ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.json(http.MethodGet, "/api/v1/notifications?unread=true", nil)
	assert.Len(t, decode[[]model.Notification](t, w), 1)

	w = env.json(http.MethodPost, "/api/v1/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"updated":1}`, w.Body.String())

	w = env.json(http.MethodPost, "/api/v1/notifications/424242/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
