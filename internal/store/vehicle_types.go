package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fleetcomply/internal/model"
)

// CreateVehicleType 新增车辆类型及其字段，ID 回写到 vt
func (s *Store) CreateVehicleType(ctx context.Context, vt *model.VehicleType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO vehicle_types (tenant_id, name, slug, description) VALUES (?, ?, ?, ?)",
		vt.TenantID, vt.Name, vt.Slug, vt.Description,
	)
	if err != nil {
		return mapErr(err, "create vehicle type")
	}
	if vt.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for i := range vt.Fields {
		vt.Fields[i].VehicleTypeID = vt.ID
		if err := insertField(ctx, tx, &vt.Fields[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertField(ctx context.Context, tx *sql.Tx, f *model.VehicleTypeField) error {
	options, err := json.Marshal(nonNilStrings(f.Options))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO vehicle_type_fields (vehicle_type_id, key, label, field_type, required, options, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.VehicleTypeID, f.Key, f.Label, f.FieldType, boolToInt(f.Required), string(options), f.SortOrder)
	if err != nil {
		return mapErr(err, fmt.Sprintf("insert field %q", f.Key))
	}
	f.ID, err = res.LastInsertId()
	return err
}

// AddField 为租户的车辆类型追加字段
func (s *Store) AddField(ctx context.Context, tenantID int64, f *model.VehicleTypeField) error {
	if _, err := s.GetVehicleType(ctx, tenantID, f.VehicleTypeID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if f.SortOrder == 0 {
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(sort_order), 0) + 1 FROM vehicle_type_fields WHERE vehicle_type_id = ?",
			f.VehicleTypeID,
		).Scan(&f.SortOrder); err != nil {
			return err
		}
	}
	if err := insertField(ctx, tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteField 删除字段，并通过级联删除其存储的值
func (s *Store) DeleteField(ctx context.Context, tenantID, vehicleTypeID, fieldID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM vehicle_type_fields
		WHERE id = ? AND vehicle_type_id = ?
		  AND vehicle_type_id IN (SELECT id FROM vehicle_types WHERE tenant_id = ?)
	`, fieldID, vehicleTypeID, tenantID)
	if err != nil {
		return mapErr(err, "delete field")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "delete field")
	}
	return nil
}

// GetVehicleType 加载车辆类型及其字段
func (s *Store) GetVehicleType(ctx context.Context, tenantID, id int64) (*model.VehicleType, error) {
	vt := &model.VehicleType{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, slug, description, created_at
		FROM vehicle_types WHERE id = ? AND tenant_id = ?
	`, id, tenantID).Scan(&vt.ID, &vt.TenantID, &vt.Name, &vt.Slug, &vt.Description, &vt.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get vehicle type")
	}

	fieldsByType, err := s.loadFields(ctx, "vehicle_type_id = ?", id)
	if err != nil {
		return nil, err
	}
	vt.Fields = fieldsByType[id]
	if vt.Fields == nil {
		vt.Fields = []model.VehicleTypeField{}
	}
	return vt, nil
}

// ListVehicleTypes 按名称返回租户的所有车辆类型及字段
func (s *Store) ListVehicleTypes(ctx context.Context, tenantID int64) ([]model.VehicleType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, slug, description, created_at
		FROM vehicle_types WHERE tenant_id = ? ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VehicleType
	for rows.Next() {
		var vt model.VehicleType
		if err := rows.Scan(&vt.ID, &vt.TenantID, &vt.Name, &vt.Slug, &vt.Description, &vt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fieldsByType, err := s.loadFields(ctx, "vehicle_type_id IN (SELECT id FROM vehicle_types WHERE tenant_id = ?)", tenantID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Fields = fieldsByType[out[i].ID]
		if out[i].Fields == nil {
			out[i].Fields = []model.VehicleTypeField{}
		}
	}
	return out, nil
}

func (s *Store) loadFields(ctx context.Context, where string, args ...any) (map[int64][]model.VehicleTypeField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_type_id, key, label, field_type, required, options, sort_order
		FROM vehicle_type_fields WHERE `+where+` ORDER BY sort_order, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]model.VehicleTypeField)
	for rows.Next() {
		var f model.VehicleTypeField
		var required int
		var options string
		if err := rows.Scan(&f.ID, &f.VehicleTypeID, &f.Key, &f.Label, &f.FieldType, &required, &options, &f.SortOrder); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		f.Required = required == 1
		if err := json.Unmarshal([]byte(options), &f.Options); err != nil {
			return nil, fmt.Errorf("decode options of field %q: %w", f.Key, err)
		}
		if len(f.Options) == 0 {
			f.Options = nil
		}
		out[f.VehicleTypeID] = append(out[f.VehicleTypeID], f)
	}
	return out, rows.Err()
}

// UpdateVehicleType 修改车辆类型的描述性属性
func (s *Store) UpdateVehicleType(ctx context.Context, vt *model.VehicleType) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE vehicle_types SET name = ?, slug = ?, description = ? WHERE id = ? AND tenant_id = ?",
		vt.Name, vt.Slug, vt.Description, vt.ID, vt.TenantID,
	)
	if err != nil {
		return mapErr(err, "update vehicle type")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "update vehicle type")
	}
	return nil
}

// DeleteVehicleType 删除未使用的车辆类型，仍被车辆引用时返回 ErrConflict
func (s *Store) DeleteVehicleType(ctx context.Context, tenantID, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicle_types WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return mapErr(err, "delete vehicle type")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "delete vehicle type")
	}
	return nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
