// apikeys.go implements handlers for tenant-scoped API key management. The
// raw key appears exactly once, in the create response; only the bcrypt hash
// and a display prefix survive in the database.
package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/services"
)

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	apiKeys *services.APIKeyService
}

// NewAPIKeyHandlers creates a new APIKeyHandlers instance
func NewAPIKeyHandlers(apiKeys *services.APIKeyService) *APIKeyHandlers {
	return &APIKeyHandlers{apiKeys: apiKeys}
}

// CreateAPIKeyRequest represents the request to create a new API key
type CreateAPIKeyRequest struct {
	Name      string   `json:"name" binding:"required"`
	Scopes    []string `json:"scopes" binding:"required"`
	ExpiresAt *string  `json:"expires_at"` // RFC3339 format
}

// @Summary      Create API key
// @Description  Mint a tenant-scoped API key. The raw key is returned once and cannot be recovered later.
// @Tags         API Keys
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string              true  "Tenant ID"
// @Param        request    body  CreateAPIKeyRequest  true  "Key details"
// @Success      201  {object}  map[string]interface{}  "api_key: models.APIKey, key: string"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      409  {object}  map[string]interface{}  "Invalid name, scopes, or expiry"
// @Router       /api/v1/tenants/{tenant_id}/api-keys [post]
// CreateAPIKeyHandler mints a new API key
// POST /api/v1/tenants/:tenant_id/api-keys
func (h *APIKeyHandlers) CreateAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateAPIKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != nil && *req.ExpiresAt != "" {
			parsed, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be RFC3339 formatted"})
				return
			}
			expiresAt = &parsed
		}

		key, rawKey, err := h.apiKeys.Create(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), req.Name, req.Scopes, expiresAt)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"api_key": key,
			"key":     rawKey,
		})
	}
}

// @Summary      List API keys
// @Description  List a tenant's API keys. Raw keys are never included.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "api_keys: []models.APIKey"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/api-keys [get]
// ListAPIKeysHandler lists a tenant's API keys
// GET /api/v1/tenants/:tenant_id/api-keys
func (h *APIKeyHandlers) ListAPIKeysHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keys, err := h.apiKeys.List(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"api_keys": keys})
	}
}

// @Summary      Revoke API key
// @Description  Delete an API key. Requests bearing it fail from the next authentication onward.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        key_id     path  string  true  "API key ID"
// @Success      204  "Revoked"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Key not found"
// @Router       /api/v1/tenants/{tenant_id}/api-keys/{key_id} [delete]
// RevokeAPIKeyHandler deletes an API key
// DELETE /api/v1/tenants/:tenant_id/api-keys/:key_id
func (h *APIKeyHandlers) RevokeAPIKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.apiKeys.Revoke(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("key_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
