package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/handlers"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

func TestConversationHandler_OpenConversation_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConvSvc := new(MockConversationService)
	handler := handlers.NewConversationHandler(mockConvSvc)

	shipperID := utils.NewSixID()
	quoteID := utils.NewSixID()
	conv := &models.Conversation{QuoteID: quoteID, ShipperID: shipperID, Status: models.ConversationOpen}
	conv.GenID()
	mockConvSvc.On("OpenConversation", mock.Anything, quoteID, shipperID).Return(conv, nil)

	r := gin.New()
	r.POST("/v1/cotacoes/:id/chat", authAs(shipperID, models.RoleShipper), handler.OpenConversation)

	w := postJSON(r, "/v1/cotacoes/"+quoteID.String()+"/chat", nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	var respBody models.Conversation
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, conv.ID, respBody.ID)
	mockConvSvc.AssertExpectations(t)
}

func TestConversationHandler_OpenConversation_OutsideWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConvSvc := new(MockConversationService)
	handler := handlers.NewConversationHandler(mockConvSvc)

	shipperID := utils.NewSixID()
	quoteID := utils.NewSixID()
	mockConvSvc.On("OpenConversation", mock.Anything, quoteID, shipperID).
		Return(nil, services.NewValidationError("chat disponível apenas durante o horário comercial da plataforma"))

	r := gin.New()
	r.POST("/v1/cotacoes/:id/chat", authAs(shipperID, models.RoleShipper), handler.OpenConversation)

	w := postJSON(r, "/v1/cotacoes/"+quoteID.String()+"/chat", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockConvSvc.AssertExpectations(t)
}

func TestConversationHandler_ListMessages_NonParticipant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockConvSvc := new(MockConversationService)
	handler := handlers.NewConversationHandler(mockConvSvc)

	userID := utils.NewSixID()
	conversationID := utils.NewSixID()
	mockConvSvc.On("ListMessages", mock.Anything, conversationID, userID).
		Return(nil, services.NewPermissionError("usuário não participa desta conversa"))

	r := gin.New()
	r.GET("/v1/conversas/:id/mensagens", authAs(userID, models.RoleCarrier), handler.ListMessages)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/conversas/"+conversationID.String()+"/mensagens", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockConvSvc.AssertExpectations(t)
}
