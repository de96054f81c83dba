package store

import (
	"context"
	"database/sql"
	"fmt"

	"fleetcomply/internal/model"
)

// CreateNotificationOnce 同一 (record, kind) 尚无通知时才写入，返回是否新建
func (s *Store) CreateNotificationOnce(ctx context.Context, n *model.Notification) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications (tenant_id, vehicle_id, compliance_record_id, kind, title, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.TenantID, n.VehicleID, n.ComplianceRecordID, n.Kind, n.Title, n.Message)
	if err != nil {
		return false, mapErr(err, "create notification")
	}
	affected, err := res.RowsAffected()
	if err != nil || affected == 0 {
		return false, err
	}
	n.ID, err = res.LastInsertId()
	return true, err
}

// ListNotifications 返回租户的通知，按时间倒序
func (s *Store) ListNotifications(ctx context.Context, tenantID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `
		SELECT id, tenant_id, vehicle_id, compliance_record_id, kind, title, message, is_read, created_at
		FROM notifications WHERE tenant_id = ?`
	if unreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC"
	args := []any{tenantID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var read int
		if err := rows.Scan(&n.ID, &n.TenantID, &n.VehicleID, &n.ComplianceRecordID, &n.Kind,
			&n.Title, &n.Message, &read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.IsRead = read == 1
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead 将一条通知标记为已读
func (s *Store) MarkNotificationRead(ctx context.Context, tenantID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return mapErr(err, "mark notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "mark notification read")
	}
	return nil
}

// MarkAllNotificationsRead 将租户所有未读通知标记为已读并返回变更数
func (s *Store) MarkAllNotificationsRead(ctx context.Context, tenantID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE tenant_id = ? AND is_read = 0", tenantID)
	if err != nil {
		return 0, mapErr(err, "mark all notifications read")
	}
	return res.RowsAffected()
}
