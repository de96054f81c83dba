package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"fleetcomply/internal/metrics"
)

// TenantLimiter 为每个租户分配一个令牌桶
type TenantLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewTenantLimiter 创建每秒 perSecond 个请求、突发 burst 的限流器
// perSecond <= 0 时不限流
func NewTenantLimiter(perSecond float64, burst int) *TenantLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{limiters: make(map[int64]*rate.Limiter), limit: limit, burst: burst}
}

// Allow 判断 tenantID 当前是否可以继续
func (l *TenantLimiter) Allow(tenantID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[tenantID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit 超出租户额度时返回 429，必须放在 Auth 之后
func RateLimit(l *TenantLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(TenantID(c)) {
			metrics.RateLimited.Inc()
			abort(c, http.StatusTooManyRequests, "too many uploads, slow down")
			return
		}
		c.Next()
	}
}
