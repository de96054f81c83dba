package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"fleetcomply/internal/model"
)

// CreateTenant 新增租户，名称唯一
func (s *Store) CreateTenant(ctx context.Context, name string) (*model.Tenant, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO tenants (name) VALUES (?)", name)
	if err != nil {
		return nil, mapErr(err, "create tenant")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapErr(err, "create tenant")
	}
	return s.GetTenant(ctx, id)
}

// GetTenant 按 id 加载租户
func (s *Store) GetTenant(ctx context.Context, id int64) (*model.Tenant, error) {
	t := &model.Tenant{}
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM tenants WHERE id = ?", id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get tenant")
	}
	return t, nil
}

// GetTenantByName 按唯一名称加载租户
func (s *Store) GetTenantByName(ctx context.Context, name string) (*model.Tenant, error) {
	t := &model.Tenant{}
	err := s.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM tenants WHERE name = ?", name).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get tenant")
	}
	return t, nil
}

// ListTenantIDs 返回所有租户 id
func (s *Store) ListTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM tenants ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSession 为租户用户签发新的 bearer 令牌
func (s *Store) CreateSession(ctx context.Context, tenantID int64, userName string, ttl time.Duration) (*model.Session, error) {
	token := uuid.NewString() + uuid.NewString()[:8]
	expires := time.Now().UTC().Add(ttl)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, tenant_id, user_name, expires_at) VALUES (?, ?, ?, ?)",
		token, tenantID, userName, expires,
	)
	if err != nil {
		return nil, mapErr(err, "create session")
	}
	return s.GetSession(ctx, token)
}

// GetSession 按令牌加载会话，无论是否仍有效
func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	sess := &model.Session{}
	err := s.db.QueryRowContext(ctx, `
		SELECT token, tenant_id, user_name, expires_at, revoked_at, created_at
		FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.TenantID, &sess.UserName, &sess.ExpiresAt, &sess.RevokedAt, &sess.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "get session")
	}
	return sess, nil
}

// RevokeSession 结束会话，重复吊销不报错
func (s *Store) RevokeSession(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = COALESCE(revoked_at, CURRENT_TIMESTAMP) WHERE token = ?", token)
	if err != nil {
		return mapErr(err, "revoke session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapErr(sql.ErrNoRows, "revoke session")
	}
	return nil
}
