// Package control implements the tenant control-plane HTTP handlers: tenant
// CRUD, membership management, invitations, API keys, and org units. Every
// handler here runs behind the middleware chain in internal/middleware (auth,
// route scope, tenant access, permission, audit); handlers translate between
// HTTP and the service layer and never touch authorization state beyond
// reading what the middleware stored in the gin context.
package control

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/services"
)

// writeServiceError translates the service layer's sentinel errors into HTTP
// responses. ErrExpiredToken deliberately maps to 404: a caller probing
// invitation tokens learns nothing beyond "no usable invitation here".
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrExpiredToken):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Identity provider unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
