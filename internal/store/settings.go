package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// 设置项 key
const (
	SettingAtRiskDays = "compliance.at_risk_days"
)

// GetSetting 读取租户设置
func (s *Store) GetSetting(ctx context.Context, tenantID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM tenant_settings WHERE tenant_id = ? AND key = ?", tenantID, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
		}
		return "", err
	}
	return value, nil
}

// GetSettingInt 读取整数类型的租户设置
func (s *Store) GetSettingInt(ctx context.Context, tenantID int64, key string) (int, error) {
	value, err := s.GetSetting(ctx, tenantID, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// SetSetting 写入租户设置
func (s *Store) SetSetting(ctx context.Context, tenantID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, tenantID, key, value)
	return mapErr(err, "set setting")
}

// SetSettingInt 写入整数类型的租户设置
func (s *Store) SetSettingInt(ctx context.Context, tenantID int64, key string, value int) error {
	return s.SetSetting(ctx, tenantID, key, strconv.Itoa(value))
}

// AllSettings 返回租户的所有设置
func (s *Store) AllSettings(ctx context.Context, tenantID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM tenant_settings WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	return settings, rows.Err()
}
