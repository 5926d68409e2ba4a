package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
)

// ConfigHandler exposes the public platform parameters clients need before
// authenticating, notably the chat availability window.
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetPublicConfig handles GET /v1/config.
func (h *ConfigHandler) GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app_name":               h.cfg.AppName,
		"platform_timezone":      h.cfg.PlatformTimezone,
		"chat_open_hour":         h.cfg.ChatOpenHour,
		"chat_close_hour":        h.cfg.ChatCloseHour,
		"chat_window":            fmt.Sprintf("%02d:00-%02d:00", h.cfg.ChatOpenHour, h.cfg.ChatCloseHour),
		"quote_visibility_hours": int(h.cfg.QuoteVisibility.Hours()),
	})
}
