// Package middleware API 使用的 gin 中间件
package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fleetcomply/internal/store"
)

// TenantHeader 每个 API 请求的租户头
const TenantHeader = "X-Tenant-ID"

const sessionKey = "fleetcomply.session"

// Session 请求的认证调用方
type Session struct {
	Token    string
	TenantID int64
	UserName string
}

// Auth 要求有效的 bearer 会话，且其租户与 X-Tenant-ID 一致
// 缺失、未知、过期或已吊销的令牌返回 401；租户头缺失或不一致返回 403
func Auth(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, err := st.GetSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				abort(c, http.StatusUnauthorized, "invalid session")
				return
			}
			abort(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !sess.Active(time.Now()) {
			abort(c, http.StatusUnauthorized, "session expired")
			return
		}

		tenantID, err := strconv.ParseInt(c.GetHeader(TenantHeader), 10, 64)
		if err != nil || tenantID != sess.TenantID {
			abort(c, http.StatusForbidden, "tenant mismatch")
			return
		}

		c.Set(sessionKey, Session{Token: sess.Token, TenantID: sess.TenantID, UserName: sess.UserName})
		c.Next()
	}
}

// SessionFrom 返回 Auth 保存的会话
func SessionFrom(c *gin.Context) Session {
	v, _ := c.Get(sessionKey)
	sess, _ := v.(Session)
	return sess
}

// TenantID 返回已认证请求的租户
func TenantID(c *gin.Context) int64 {
	return SessionFrom(c).TenantID
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
