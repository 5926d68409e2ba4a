package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ConversationHandler handles the REST side of the negotiation channel. Live
// messaging goes over the websocket.
type ConversationHandler struct {
	conversationService services.IConversationService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(conversationService services.IConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// OpenConversation handles POST /v1/cotacoes/:id/chat (shipper only).
func (h *ConversationHandler) OpenConversation(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	conv, err := h.conversationService.OpenConversation(c.Request.Context(), quoteID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// ListMessages handles GET /v1/conversas/:id/mensagens.
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	conversationID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	messages, err := h.conversationService.ListMessages(c.Request.Context(), conversationID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}
