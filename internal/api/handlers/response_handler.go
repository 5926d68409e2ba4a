package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// ResponseHandler handles carrier proposal endpoints.
type ResponseHandler struct {
	responseService services.IResponseService
	quoteService    services.IQuoteService
}

// NewResponseHandler creates a new ResponseHandler.
func NewResponseHandler(responseService services.IResponseService, quoteService services.IQuoteService) *ResponseHandler {
	return &ResponseHandler{responseService: responseService, quoteService: quoteService}
}

// CreateResponse handles POST /v1/respostas (carrier only).
func (h *ResponseHandler) CreateResponse(c *gin.Context) {
	var input services.CreateResponseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	response, err := h.responseService.CreateResponse(c.Request.Context(), middleware.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

// ListByQuote handles GET /v1/cotacoes/:id/respostas. Shippers see responses
// on their own quotes; carriers only their own submission.
func (h *ResponseHandler) ListByQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}

	quote, err := h.quoteService.FindQuoteByID(c.Request.Context(), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}

	userID := middleware.GetUserID(c)
	responses, err := h.responseService.ListByQuote(c.Request.Context(), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}

	if quote.ShipperID != userID {
		filtered := responses[:0]
		for _, r := range responses {
			if r.CarrierID == userID {
				filtered = append(filtered, r)
			}
		}
		responses = filtered
	}
	c.JSON(http.StatusOK, gin.H{"data": responses})
}
