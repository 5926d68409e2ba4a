package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/handlers"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/chat"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/storage"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, taskClient handlers.IAsynqClient, publisher events.Publisher, docStore storage.IDocumentStore) *gin.Engine {
	clock := utils.RealClock{}
	window := chat.NewAvailabilityWindow(cfg.ChatOpenHour, cfg.ChatCloseHour, cfg.Location())

	// quoteService and conversationService reference each other; the setter
	// breaks the construction cycle.
	userService := services.NewUserService(db)
	quoteService := services.NewQuoteService(db, cfg, clock, publisher, docStore)
	responseService := services.NewResponseService(db, cfg, clock)
	matcherService := services.NewMatcherService(db, quoteService, responseService, clock)
	conversationService := services.NewConversationService(db, window, clock, quoteService, responseService, publisher)
	quoteService.SetConversationService(conversationService)
	notificationService := services.NewNotificationService(db, matcherService, conversationService)

	hub := chat.NewHub(conversationService)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, userService)
	configHandler := handlers.NewConfigHandler(cfg)
	quoteHandler := handlers.NewQuoteHandler(quoteService, matcherService, taskClient)
	responseHandler := handlers.NewResponseHandler(responseService, quoteService)
	coverageHandler := handlers.NewCoverageHandler(matcherService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	wsHandler := handlers.NewWSHandler(hub, userService)

	authRequired := middleware.AuthMiddleware(cfg.JwtSecret)
	shipperOnly := middleware.RequireRole(models.RoleShipper)
	carrierOnly := middleware.RequireRole(models.RoleCarrier)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.POST("/login", authHandler.Login)
		v1.GET("/config", configHandler.GetPublicConfig)
		v1.POST("/pagamentos/webhook", quoteHandler.PaymentWebhook)
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		authed := v1.Group("", authRequired)
		{
			// Shipper side
			authed.POST("/cotacoes", shipperOnly, quoteHandler.CreateQuote)
			authed.GET("/cotacoes", shipperOnly, quoteHandler.ListQuotes)
			authed.POST("/cotacoes/:id/aceitar", shipperOnly, quoteHandler.AcceptResponse)
			authed.POST("/cotacoes/:id/chat", shipperOnly, conversationHandler.OpenConversation)

			// Carrier side
			authed.GET("/cotacoes/disponiveis", carrierOnly, quoteHandler.ListAvailableQuotes)
			authed.POST("/cotacoes/:id/visualizar", carrierOnly, quoteHandler.MarkVisualized)
			authed.POST("/respostas", carrierOnly, responseHandler.CreateResponse)
			authed.POST("/cotacoes/:id/confirmar-coleta", carrierOnly, quoteHandler.ConfirmCollection)
			authed.POST("/cotacoes/:id/documento", carrierOnly, quoteHandler.AttachDocument)
			authed.POST("/cotacoes/:id/rastreamento", carrierOnly, quoteHandler.AddTracking)
			authed.POST("/cotacoes/:id/finalizar", carrierOnly, quoteHandler.FinalizeDelivery)
			authed.GET("/cobertura", carrierOnly, coverageHandler.GetCoverage)
			authed.PUT("/cobertura", carrierOnly, coverageHandler.UpsertCoverage)

			// Admin
			authed.POST("/cotacoes/:id/aprovar-cte", adminOnly, quoteHandler.ApproveCte)

			// Shared
			authed.GET("/cotacoes/:id", quoteHandler.GetQuote)
			authed.GET("/cotacoes/:id/respostas", responseHandler.ListByQuote)
			authed.POST("/cotacoes/:id/cancelar", quoteHandler.CancelQuote)
			authed.GET("/conversas/:id/mensagens", conversationHandler.ListMessages)
			authed.GET("/notificacoes", notificationHandler.GetSummary)
			authed.GET("/ws", wsHandler.Serve)
		}
	}

	return r
}
