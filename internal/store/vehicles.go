package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fleetcomply/internal/model"
)

// VehicleInput 一辆车及其 EAV 值，由 fields 包生成
type VehicleInput struct {
	Vehicle model.Vehicle
	Values  []model.VehicleFieldValue
}

// CreateVehicle 新增一辆车及其字段值，新 id 回写
func (s *Store) CreateVehicle(ctx context.Context, in *VehicleInput) error {
	ids, err := s.BatchInsertVehicles(ctx, []VehicleInput{*in})
	if err != nil {
		return err
	}
	in.Vehicle.ID = ids[0]
	return nil
}

// BatchInsertVehicles 在一个事务中批量插入车辆，要么全部成功要么全部失败
func (s *Store) BatchInsertVehicles(ctx context.Context, inputs []VehicleInput) ([]int64, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	vehicleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vehicles (tenant_id, vehicle_type_id, name, registration_number, status)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer vehicleStmt.Close()

	valueStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO vehicle_field_values (vehicle_id, field_id, value) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer valueStmt.Close()

	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		v := in.Vehicle
		if v.Status == "" {
			v.Status = model.VehicleStatusActive
		}
		res, err := vehicleStmt.ExecContext(ctx, v.TenantID, v.VehicleTypeID, v.Name, v.RegistrationNumber, v.Status)
		if err != nil {
			return nil, mapErr(err, "insert vehicle")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		for _, fv := range in.Values {
			if _, err := valueStmt.ExecContext(ctx, id, fv.FieldID, fv.Value); err != nil {
				return nil, mapErr(err, "insert field value")
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

// UpdateVehicle 更新车辆并替换其全部字段值
func (s *Store) UpdateVehicle(ctx context.Context, in *VehicleInput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	v := in.Vehicle
	res, err := tx.ExecContext(ctx, `
		UPDATE vehicles SET name = ?, registration_number = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND tenant_id = ?
	`, v.Name, v.RegistrationNumber, v.Status, v.ID, v.TenantID)
	if err != nil {
		return mapErr(err, "update vehicle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "update vehicle")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM vehicle_field_values WHERE vehicle_id = ?", v.ID); err != nil {
		return mapErr(err, "clear field values")
	}
	for _, fv := range in.Values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vehicle_field_values (vehicle_id, field_id, value) VALUES (?, ?, ?)",
			v.ID, fv.FieldID, fv.Value,
		); err != nil {
			return mapErr(err, "insert field value")
		}
	}

	return tx.Commit()
}

// GetVehicle 加载一辆车，字段值按字段 key 组织
func (s *Store) GetVehicle(ctx context.Context, tenantID, id int64) (*model.Vehicle, error) {
	v := &model.Vehicle{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, vehicle_type_id, name, registration_number, status, created_at, updated_at
		FROM vehicles WHERE id = ? AND tenant_id = ?
	`, id, tenantID).Scan(&v.ID, &v.TenantID, &v.VehicleTypeID, &v.Name, &v.RegistrationNumber, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "get vehicle")
	}

	values, err := s.loadFieldValues(ctx, "fv.vehicle_id = ?", id)
	if err != nil {
		return nil, err
	}
	v.FieldValues = values[id]
	if v.FieldValues == nil {
		v.FieldValues = map[string]string{}
	}
	return v, nil
}

// GetStoredValues 返回车辆的原始 EAV 行
func (s *Store) GetStoredValues(ctx context.Context, vehicleID int64) ([]model.VehicleFieldValue, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT vehicle_id, field_id, value FROM vehicle_field_values WHERE vehicle_id = ?", vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VehicleFieldValue
	for rows.Next() {
		var fv model.VehicleFieldValue
		if err := rows.Scan(&fv.VehicleID, &fv.FieldID, &fv.Value); err != nil {
			return nil, err
		}
		out = append(out, fv)
	}
	return out, rows.Err()
}

func (s *Store) loadFieldValues(ctx context.Context, where string, args ...any) (map[int64]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fv.vehicle_id, f.key, fv.value
		FROM vehicle_field_values fv
		JOIN vehicle_type_fields f ON f.id = fv.field_id
		WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query field values: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]string)
	for rows.Next() {
		var vehicleID int64
		var key, value string
		if err := rows.Scan(&vehicleID, &key, &value); err != nil {
			return nil, err
		}
		if out[vehicleID] == nil {
			out[vehicleID] = make(map[string]string)
		}
		out[vehicleID][key] = value
	}
	return out, rows.Err()
}

// VehicleQueryOptions 车辆列表过滤条件
type VehicleQueryOptions struct {
	TenantID      int64
	VehicleTypeID *int64
	Status        *string
	Keyword       string // 匹配名称或车牌号
	Limit         int
	Offset        int

	// SkipFieldValues 不加载 FieldValues，供只需要固定列的调用方使用
	SkipFieldValues bool
}

// fieldValueBatch 每个 IN 子句的 id 上限，SQLite 限制绑定变量数
const fieldValueBatch = 500

func (o VehicleQueryOptions) where() (string, []any) {
	clause := "WHERE v.tenant_id = ?"
	args := []any{o.TenantID}

	if o.VehicleTypeID != nil {
		clause += " AND v.vehicle_type_id = ?"
		args = append(args, *o.VehicleTypeID)
	}
	if o.Status != nil {
		clause += " AND v.status = ?"
		args = append(args, *o.Status)
	}
	if kw := strings.TrimSpace(o.Keyword); kw != "" {
		clause += " AND (v.name LIKE ? OR v.registration_number LIKE ?)"
		like := "%" + kw + "%"
		args = append(args, like, like)
	}
	return clause, args
}

// ListVehicles 返回按名称排序的一页车辆
func (s *Store) ListVehicles(ctx context.Context, opts VehicleQueryOptions) ([]model.Vehicle, error) {
	where, args := opts.where()
	query := `
		SELECT v.id, v.tenant_id, v.vehicle_type_id, v.name, v.registration_number, v.status, v.created_at, v.updated_at
		FROM vehicles v ` + where + " ORDER BY v.name, v.id"
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var out []model.Vehicle
	var ids []any
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.TenantID, &v.VehicleTypeID, &v.Name, &v.RegistrationNumber, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Vehicle{}, nil
	}
	if opts.SkipFieldValues {
		return out, nil
	}

	values := make(map[int64]map[string]string, len(ids))
	for start := 0; start < len(ids); start += fieldValueBatch {
		batch := ids[start:min(start+fieldValueBatch, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		part, err := s.loadFieldValues(ctx, "fv.vehicle_id IN ("+placeholders+")", batch...)
		if err != nil {
			return nil, err
		}
		for id, v := range part {
			values[id] = v
		}
	}
	for i := range out {
		out[i].FieldValues = values[out[i].ID]
		if out[i].FieldValues == nil {
			out[i].FieldValues = map[string]string{}
		}
	}
	return out, nil
}

// CountVehicles 统计匹配 opts 的车辆数，忽略 Limit/Offset
func (s *Store) CountVehicles(ctx context.Context, opts VehicleQueryOptions) (int, error) {
	where, args := opts.where()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM vehicles v "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vehicles: %w", err)
	}
	return n, nil
}

// DeleteVehicle 删除车辆及其字段值、记录、文档和通知
func (s *Store) DeleteVehicle(ctx context.Context, tenantID, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return mapErr(err, "delete vehicle")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "delete vehicle")
	}
	return nil
}
