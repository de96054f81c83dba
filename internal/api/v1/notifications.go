package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetcomply/internal/middleware"
)

const defaultNotificationLimit = 50

type listNotificationsQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ListNotifications 返回租户最新的通知
// GET /api/v1/notifications?unread=true
func (h *Handler) ListNotifications(c *gin.Context) {
	var q listNotificationsQuery
	if !bind(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultNotificationLimit
	}
	items, err := h.store.ListNotifications(c.Request.Context(), middleware.TenantID(c), q.Unread, q.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// MarkNotificationRead 将一条通知标记为已读
// POST /api/v1/notifications/:id/read
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.MarkNotificationRead(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllNotificationsRead 将租户所有未读通知标记为已读
// POST /api/v1/notifications/read-all
func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.store.MarkAllNotificationsRead(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Logout 吊销调用方的会话
// DELETE /api/v1/session
func (h *Handler) Logout(c *gin.Context) {
	if err := h.store.RevokeSession(c.Request.Context(), middleware.SessionFrom(c).Token); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
