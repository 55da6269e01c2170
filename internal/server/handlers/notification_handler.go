package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmchain/internal/service/notifications"
)

// NotificationHandler serves the notification inbox.
type NotificationHandler struct {
	svc    *notifications.Service
	logger *zap.Logger
}

// NewNotificationHandler constructs the HTTP handler adapter.
func NewNotificationHandler(svc *notifications.Service, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

// List handles GET /users/:userId/notifications?role=.
func (h *NotificationHandler) List(c *gin.Context) {
	out, err := h.svc.ListForUser(c.Request.Context(), c.Param("userId"), c.Query("role"))
	respond(c, h.logger, out, err)
}

// UnreadCount handles GET /users/:userId/notifications/unread-count?role=.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), c.Param("userId"), c.Query("role"))
	respond(c, h.logger, gin.H{"unread": n}, err)
}

// MarkAllRead handles PUT /users/:userId/notifications/read-all?role=.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllAsRead(c.Request.Context(), c.Param("userId"), c.Query("role"))
	respond(c, h.logger, gin.H{"updated": n}, err)
}

// MarkRead handles PUT /notifications/:notificationId/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkAsRead(c.Request.Context(), c.Param("notificationId")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
