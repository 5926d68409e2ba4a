package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
)

// respondError maps service errors onto HTTP status codes. Anything untyped is
// a 500 with a generic body; the real error goes to Gin's error log.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "recurso não encontrado"})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case services.IsPermission(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "erro interno"})
	}
}
