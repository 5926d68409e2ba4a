package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/tasks"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// IAsynqClient defines the interface for the Asynq client methods used by the
// handlers. Allows easier mocking than the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QuoteHandler handles the quote lifecycle endpoints.
type QuoteHandler struct {
	quoteService   services.IQuoteService
	matcherService services.IMatcherService
	taskClient     IAsynqClient
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quoteService services.IQuoteService, matcherService services.IMatcherService, taskClient IAsynqClient) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService, matcherService: matcherService, taskClient: taskClient}
}

// CreateQuote handles POST /v1/cotacoes (shipper only).
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var input services.CreateQuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), middleware.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	// Carrier fan-out happens in the background worker.
	if h.taskClient != nil {
		task, taskErr := tasks.NewQuoteNotifyTask(quote.ID)
		if taskErr == nil {
			_, taskErr = h.taskClient.EnqueueContext(c.Request.Context(), task)
		}
		if taskErr != nil {
			log.Printf("Failed to enqueue notify task for quote %s: %v", quote.ID.String(), taskErr)
		}
	}

	c.JSON(http.StatusCreated, quote)
}

// ListQuotes handles GET /v1/cotacoes: the caller's own quotes.
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.quoteService.ListQuotesByShipper(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes})
}

// ListAvailableQuotes handles GET /v1/cotacoes/disponiveis (carrier only).
func (h *QuoteHandler) ListAvailableQuotes(c *gin.Context) {
	quotes, err := h.matcherService.ListAvailableQuotes(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": quotes})
}

// GetQuote handles GET /v1/cotacoes/:id.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
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
	// Shippers only see their own quotes. Carriers see any discoverable quote;
	// field-level hiding (collection code) is handled by serialization.
	if middleware.GetRole(c) == models.RoleShipper && quote.ShipperID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cotação não pertence a este embarcador"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// MarkVisualized handles POST /v1/cotacoes/:id/visualizar (carrier only).
func (h *QuoteHandler) MarkVisualized(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	if err := h.quoteService.MarkVisualized(c.Request.Context(), quoteID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type acceptRequest struct {
	ResponseID string `json:"response_id" binding:"required"`
}

// AcceptResponse handles POST /v1/cotacoes/:id/aceitar (shipper only).
func (h *QuoteHandler) AcceptResponse(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "response_id é obrigatório"})
		return
	}
	responseID, err := utils.ParseSixID(req.ResponseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "response_id inválido"})
		return
	}

	quote, err := h.quoteService.AcceptResponse(c.Request.Context(), quoteID, middleware.GetUserID(c), responseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type paymentWebhookRequest struct {
	QuoteID     string `json:"quote_id" binding:"required"`
	Approved    bool   `json:"approved"`
	ExternalRef string `json:"external_ref"`
}

// PaymentWebhook handles POST /v1/pagamentos/webhook. Called by the payment
// gateway, not by users.
func (h *QuoteHandler) PaymentWebhook(c *gin.Context) {
	var req paymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}
	quoteID, err := utils.ParseSixID(req.QuoteID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quote_id inválido"})
		return
	}

	quote, err := h.quoteService.ConfirmPayment(c.Request.Context(), quoteID, req.Approved, req.ExternalRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": quote.Status})
}

type confirmCollectionRequest struct {
	Code string `json:"code" binding:"required"`
}

// ConfirmCollection handles POST /v1/cotacoes/:id/confirmar-coleta (carrier).
func (h *QuoteHandler) ConfirmCollection(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	var req confirmCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code é obrigatório"})
		return
	}
	quote, err := h.quoteService.ConfirmCollection(c.Request.Context(), quoteID, middleware.GetUserID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type attachDocumentRequest struct {
	Type    string `json:"type" binding:"required"`
	Payload []byte `json:"payload" binding:"required"` // base64 in JSON
}

// AttachDocument handles POST /v1/cotacoes/:id/documento (carrier).
func (h *QuoteHandler) AttachDocument(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	var req attachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type e payload são obrigatórios"})
		return
	}
	quote, err := h.quoteService.AttachDocument(c.Request.Context(), quoteID, middleware.GetUserID(c), req.Type, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

type trackingRequest struct {
	Description string `json:"description" binding:"required"`
	City        string `json:"city"`
	UF          string `json:"uf"`
}

// AddTracking handles POST /v1/cotacoes/:id/rastreamento (carrier).
func (h *QuoteHandler) AddTracking(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description é obrigatória"})
		return
	}
	// At is stamped by the service clock.
	event := models.TrackingEvent{Description: req.Description, City: req.City, UF: req.UF}
	if err := h.quoteService.AddTracking(c.Request.Context(), quoteID, middleware.GetUserID(c), event); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type finalizeRequest struct {
	Proof []byte `json:"proof" binding:"required"` // base64 in JSON
}

// FinalizeDelivery handles POST /v1/cotacoes/:id/finalizar (carrier).
func (h *QuoteHandler) FinalizeDelivery(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof é obrigatório"})
		return
	}
	quote, err := h.quoteService.FinalizeDelivery(c.Request.Context(), quoteID, middleware.GetUserID(c), req.Proof)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// ApproveCte handles POST /v1/cotacoes/:id/aprovar-cte (admin only).
func (h *QuoteHandler) ApproveCte(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	quote, err := h.quoteService.ApproveCte(c.Request.Context(), quoteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// CancelQuote handles POST /v1/cotacoes/:id/cancelar (shipper or admin).
func (h *QuoteHandler) CancelQuote(c *gin.Context) {
	quoteID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id inválido"})
		return
	}
	isAdmin := middleware.GetRole(c) == models.RoleAdmin
	quote, err := h.quoteService.CancelQuote(c.Request.Context(), quoteID, middleware.GetUserID(c), isAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
