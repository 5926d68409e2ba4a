package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api/middleware"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/models"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
)

// CoverageHandler lets carriers manage the service coverage the eligibility
// matcher evaluates.
type CoverageHandler struct {
	matcherService services.IMatcherService
}

// NewCoverageHandler creates a new CoverageHandler.
func NewCoverageHandler(matcherService services.IMatcherService) *CoverageHandler {
	return &CoverageHandler{matcherService: matcherService}
}

// GetCoverage handles GET /v1/cobertura (carrier only).
func (h *CoverageHandler) GetCoverage(c *gin.Context) {
	coverage, err := h.matcherService.FindCoverage(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coverage)
}

type coverageRequest struct {
	GoodsCodesDenied []string                 `json:"goods_codes_denied"`
	RegionsDenied    []string                 `json:"regions_denied"`
	RegionsAllowed   []string                 `json:"regions_allowed"`
	Offerings        []models.ServiceOffering `json:"offerings"`
}

// UpsertCoverage handles PUT /v1/cobertura (carrier only).
func (h *CoverageHandler) UpsertCoverage(c *gin.Context) {
	var req coverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload inválido"})
		return
	}

	coverage := &models.CarrierCoverage{
		CarrierID:        middleware.GetUserID(c),
		GoodsCodesDenied: req.GoodsCodesDenied,
		RegionsDenied:    req.RegionsDenied,
		RegionsAllowed:   req.RegionsAllowed,
		Offerings:        req.Offerings,
	}
	if err := h.matcherService.UpsertCoverage(c.Request.Context(), coverage); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, coverage)
}
