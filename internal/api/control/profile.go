// profile.go implements the caller introspection endpoint.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/middleware"
)

// @Summary      Who am I
// @Description  Return the caller's profile and authentication method. API-key callers get the owning profile ID and the key's tenant instead of a full profile.
// @Tags         Profile
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "profile or profile_id, auth_method"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/me [get]
// MeHandler reports the authenticated caller
// GET /api/v1/me
func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		authMethod := c.GetString(middleware.AuthMethodKey)

		if profileVal, ok := c.Get(middleware.ProfileKey); ok {
			if profile, ok := profileVal.(*models.MemberProfile); ok && profile != nil {
				c.JSON(http.StatusOK, gin.H{
					"profile":     profile,
					"auth_method": authMethod,
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"profile_id":  c.GetString(middleware.ProfileIDKey),
			"tenant_id":   c.GetString(middleware.KeyTenantIDKey),
			"auth_method": authMethod,
		})
	}
}
