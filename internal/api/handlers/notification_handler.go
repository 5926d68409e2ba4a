package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
)

// NotificationHandler serves the polled badge counts.
type NotificationHandler struct {
	notificationService services.INotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService services.INotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetSummary handles GET /v1/notificacoes.
func (h *NotificationHandler) GetSummary(c *gin.Context) {
	summary, err := h.notificationService.Summary(c.Request.Context(), middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
