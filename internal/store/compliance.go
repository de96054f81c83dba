package store

import (
	"context"
	"database/sql"
	"fmt"

	"fleetcomply/internal/model"
)

// CreateComplianceType 新增合规类型，名称在租户内唯一
func (s *Store) CreateComplianceType(ctx context.Context, ct *model.ComplianceType) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_types (tenant_id, vehicle_type_id, name, category, description,
			validity_days, renewal_lead_days, is_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ct.TenantID, nullInt64(ct.VehicleTypeID), ct.Name, ct.Category, ct.Description,
		ct.ValidityDays, ct.RenewalLeadDays, boolToInt(ct.IsRequired))
	if err != nil {
		return mapErr(err, "create compliance type")
	}
	ct.ID, err = res.LastInsertId()
	return err
}

const complianceTypeColumns = `id, tenant_id, vehicle_type_id, name, category, description,
	validity_days, renewal_lead_days, is_required, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplianceType(r rowScanner) (model.ComplianceType, error) {
	var ct model.ComplianceType
	var vtID sql.NullInt64
	var required int
	err := r.Scan(&ct.ID, &ct.TenantID, &vtID, &ct.Name, &ct.Category, &ct.Description,
		&ct.ValidityDays, &ct.RenewalLeadDays, &required, &ct.CreatedAt)
	ct.VehicleTypeID = ptrInt64(vtID)
	ct.IsRequired = required == 1
	return ct, err
}

// GetComplianceType 加载租户的一个合规类型
func (s *Store) GetComplianceType(ctx context.Context, tenantID, id int64) (*model.ComplianceType, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+complianceTypeColumns+" FROM compliance_types WHERE id = ? AND tenant_id = ?", id, tenantID)
	ct, err := scanComplianceType(row)
	if err != nil {
		return nil, mapErr(err, "get compliance type")
	}
	return &ct, nil
}

// ListComplianceTypes 返回租户的合规类型。vehicleTypeID 非 nil 时
// 只返回适用于该车辆类型的类型，包括租户通用的类型
func (s *Store) ListComplianceTypes(ctx context.Context, tenantID int64, vehicleTypeID *int64) ([]model.ComplianceType, error) {
	query := "SELECT " + complianceTypeColumns + " FROM compliance_types WHERE tenant_id = ?"
	args := []any{tenantID}
	if vehicleTypeID != nil {
		query += " AND (vehicle_type_id IS NULL OR vehicle_type_id = ?)"
		args = append(args, *vehicleTypeID)
	}
	query += " ORDER BY is_required DESC, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compliance types: %w", err)
	}
	defer rows.Close()

	out := []model.ComplianceType{}
	for rows.Next() {
		ct, err := scanComplianceType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance type: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// CreateComplianceRecord 为租户的车辆新增记录
func (s *Store) CreateComplianceRecord(ctx context.Context, rec *model.ComplianceRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compliance_records (tenant_id, vehicle_id, compliance_type_id, issue_date, expiry_date, notes)
		SELECT ?, v.id, ?, ?, ?, ?
		FROM vehicles v WHERE v.id = ? AND v.tenant_id = ?
	`, rec.TenantID, rec.ComplianceTypeID, formatDate(rec.IssueDate), formatDate(rec.ExpiryDate), rec.Notes,
		rec.VehicleID, rec.TenantID)
	if err != nil {
		return mapErr(err, "create compliance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "create compliance record")
	}
	rec.ID, err = res.LastInsertId()
	return err
}

const recordColumns = "id, tenant_id, vehicle_id, compliance_type_id, issue_date, expiry_date, notes, created_at"

func scanRecord(r rowScanner) (model.ComplianceRecord, error) {
	var rec model.ComplianceRecord
	var issue, expiry sql.NullString
	err := r.Scan(&rec.ID, &rec.TenantID, &rec.VehicleID, &rec.ComplianceTypeID, &issue, &expiry, &rec.Notes, &rec.CreatedAt)
	rec.IssueDate = parseDate(issue)
	rec.ExpiryDate = parseDate(expiry)
	rec.Documents = []model.Document{}
	return rec, err
}

// GetComplianceRecord 加载一条记录及其文档
func (s *Store) GetComplianceRecord(ctx context.Context, tenantID, id int64) (*model.ComplianceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM compliance_records WHERE id = ? AND tenant_id = ?", id, tenantID)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapErr(err, "get compliance record")
	}
	docs, err := s.ListDocuments(ctx, DocumentQuery{TenantID: tenantID, ComplianceRecordID: &id})
	if err != nil {
		return nil, err
	}
	rec.Documents = docs
	return &rec, nil
}

// ListComplianceRecords 返回车辆的全部记录及关联文档，按到期日倒序
func (s *Store) ListComplianceRecords(ctx context.Context, tenantID, vehicleID int64) ([]model.ComplianceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM compliance_records
		WHERE tenant_id = ? AND vehicle_id = ?
		ORDER BY compliance_type_id, expiry_date DESC, id DESC
	`, tenantID, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("query compliance records: %w", err)
	}
	defer rows.Close()

	out := []model.ComplianceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docs, err := s.ListDocuments(ctx, DocumentQuery{TenantID: tenantID, VehicleID: &vehicleID})
	if err != nil {
		return nil, err
	}
	byRecord := make(map[int64][]model.Document)
	for _, d := range docs {
		if d.ComplianceRecordID != nil {
			byRecord[*d.ComplianceRecordID] = append(byRecord[*d.ComplianceRecordID], d)
		}
	}
	for i := range out {
		if linked, ok := byRecord[out[i].ID]; ok {
			out[i].Documents = linked
		}
	}
	return out, nil
}

// ListRecordsForTenant 返回租户的全部记录，供提醒扫描使用
func (s *Store) ListRecordsForTenant(ctx context.Context, tenantID int64) ([]model.ComplianceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM compliance_records WHERE tenant_id = ? ORDER BY vehicle_id, id", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query compliance records: %w", err)
	}
	defer rows.Close()

	out := []model.ComplianceRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteComplianceRecord 删除记录，关联文档保留并解除关联
func (s *Store) DeleteComplianceRecord(ctx context.Context, tenantID, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM compliance_records WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return mapErr(err, "delete compliance record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "delete compliance record")
	}
	return nil
}
