package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcomply/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuth(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "fleetcomply.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	tenant, err := st.CreateTenant(ctx, "acme")
	require.NoError(t, err)
	sess, err := st.CreateSession(ctx, tenant.ID, "ops", time.Hour)
	require.NoError(t, err)
	revoked, err := st.CreateSession(ctx, tenant.ID, "ops", time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.RevokeSession(ctx, revoked.Token))
	expired, err := st.CreateSession(ctx, tenant.ID, "ops", -time.Minute)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/whoami", Auth(st), func(c *gin.Context) {
		s := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"tenant_id": s.TenantID, "user": s.UserName})
	})

	tenantHeader := strconv.FormatInt(tenant.ID, 10)
	tests := []struct {
		name   string
		auth   string
		tenant string
		want   int
	}{
		{"ok", "Bearer " + sess.Token, tenantHeader, http.StatusOK},
		{"lowercase scheme", "bearer " + sess.Token, tenantHeader, http.StatusOK},
		{"no token", "", tenantHeader, http.StatusUnauthorized},
		{"unknown token", "Bearer nope", tenantHeader, http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked.Token, tenantHeader, http.StatusUnauthorized},
		{"expired", "Bearer " + expired.Token, tenantHeader, http.StatusUnauthorized},
		{"other tenant", "Bearer " + sess.Token, "999", http.StatusForbidden},
		{"no tenant", "Bearer " + sess.Token, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.tenant != "" {
				req.Header.Set(TenantHeader, tt.tenant)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestTenantLimiter(t *testing.T) {
	l := NewTenantLimiter(0.001, 2)
	assert.True(t, l.Allow(1))
	assert.True(t, l.Allow(1))
	assert.False(t, l.Allow(1))
	assert.True(t, l.Allow(2), "buckets are per tenant")

	unlimited := NewTenantLimiter(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow(1))
	}
}
