package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/chat"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Auth happens via JWT; the origin check adds nothing for native apps.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades authenticated connections into chat hub clients.
type WSHandler struct {
	hub         *chat.Hub
	userService services.IUserService
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *chat.Hub, userService services.IUserService) *WSHandler {
	return &WSHandler{hub: hub, userService: userService}
}

// Serve handles GET /v1/ws. AuthMiddleware ran first; browsers pass the token
// as a query parameter since they cannot set headers on the upgrade request.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := middleware.GetUserID(c)
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for user %s: %v", userID.String(), err)
		return
	}

	client := chat.NewClient(h.hub, conn, userID, user.Name)
	client.Run(c.Request.Context())
}
