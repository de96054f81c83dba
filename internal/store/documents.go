package store

import (
	"context"
	"database/sql"
	"fmt"

	"fleetcomply/internal/model"
)

// CreateDocument 写入文档元数据，文件本身由 storage 包管理
func (s *Store) CreateDocument(ctx context.Context, d *model.Document) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (tenant_id, vehicle_id, compliance_record_id, name, document_type,
			file_path, file_name, mime_type, file_size, expiry_date)
		SELECT ?, v.id, ?, ?, ?, ?, ?, ?, ?, ?
		FROM vehicles v WHERE v.id = ? AND v.tenant_id = ?
	`, d.TenantID, nullInt64(d.ComplianceRecordID), d.Name, d.DocumentType,
		d.FilePath, d.FileName, d.MimeType, d.FileSize, formatDate(d.ExpiryDate),
		d.VehicleID, d.TenantID)
	if err != nil {
		return mapErr(err, "create document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "create document")
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, "SELECT uploaded_at FROM documents WHERE id = ?", d.ID).Scan(&d.UploadedAt)
}

// DocumentQuery 按车辆和/或记录查询租户的文档
type DocumentQuery struct {
	TenantID           int64
	VehicleID          *int64
	ComplianceRecordID *int64
}

const documentColumns = `id, tenant_id, vehicle_id, compliance_record_id, name, document_type,
	file_path, file_name, mime_type, file_size, expiry_date, uploaded_at`

func scanDocument(r rowScanner) (model.Document, error) {
	var d model.Document
	var recID sql.NullInt64
	var expiry sql.NullString
	err := r.Scan(&d.ID, &d.TenantID, &d.VehicleID, &recID, &d.Name, &d.DocumentType,
		&d.FilePath, &d.FileName, &d.MimeType, &d.FileSize, &expiry, &d.UploadedAt)
	d.ComplianceRecordID = ptrInt64(recID)
	d.ExpiryDate = parseDate(expiry)
	return d, err
}

// ListDocuments 返回匹配的文档，按时间倒序
func (s *Store) ListDocuments(ctx context.Context, q DocumentQuery) ([]model.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE tenant_id = ?"
	args := []any{q.TenantID}
	if q.VehicleID != nil {
		query += " AND vehicle_id = ?"
		args = append(args, *q.VehicleID)
	}
	if q.ComplianceRecordID != nil {
		query += " AND compliance_record_id = ?"
		args = append(args, *q.ComplianceRecordID)
	}
	query += " ORDER BY uploaded_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDocument 加载租户的一个文档
func (s *Store) GetDocument(ctx context.Context, tenantID, id int64) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ? AND tenant_id = ?", id, tenantID)
	d, err := scanDocument(row)
	if err != nil {
		return nil, mapErr(err, "get document")
	}
	return &d, nil
}

// DeleteDocument 删除元数据行并返回它，供调用方删除文件
func (s *Store) DeleteDocument(ctx context.Context, tenantID, id int64) (*model.Document, error) {
	d, err := s.GetDocument(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ? AND tenant_id = ?", id, tenantID); err != nil {
		return nil, mapErr(err, "delete document")
	}
	return d, nil
}
