package store

import (
	"context"
	"fmt"

	"fleetcomply/internal/model"
)

// 导入记录状态
const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
)

// CreateImportLog 以 processing 状态创建导入记录并返回 id
func (s *Store) CreateImportLog(ctx context.Context, tenantID, vehicleTypeID int64, filename string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO import_logs (tenant_id, vehicle_type_id, filename, status)
		VALUES (?, ?, ?, ?)
	`, tenantID, vehicleTypeID, filename, ImportStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// UpdateImportLog 以最终计数结束导入记录
func (s *Store) UpdateImportLog(ctx context.Context, id int64, totalRows, importedRows, errorRows int, status, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE import_logs SET
			total_rows = ?,
			imported_rows = ?,
			error_rows = ?,
			status = ?,
			error_message = ?,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, totalRows, importedRows, errorRows, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

// ListImportLogs 返回租户最近的导入记录
func (s *Store) ListImportLogs(ctx context.Context, tenantID int64, limit int) ([]model.ImportLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, vehicle_type_id, filename, total_rows, imported_rows, error_rows,
		       status, error_message, created_at, completed_at
		FROM import_logs WHERE tenant_id = ?
		ORDER BY id DESC LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query import logs: %w", err)
	}
	defer rows.Close()

	out := []model.ImportLog{}
	for rows.Next() {
		var l model.ImportLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.VehicleTypeID, &l.Filename, &l.TotalRows, &l.ImportedRows,
			&l.ErrorRows, &l.Status, &l.ErrorMessage, &l.CreatedAt, &l.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
