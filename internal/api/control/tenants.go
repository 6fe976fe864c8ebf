// tenants.go implements handlers for tenant CRUD and ownership transfer.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/services"
)

// TenantHandlers handles tenant management endpoints
type TenantHandlers struct {
	tenants     *services.TenantService
	memberships *services.MembershipService
}

// NewTenantHandlers creates a new TenantHandlers instance
func NewTenantHandlers(tenants *services.TenantService, memberships *services.MembershipService) *TenantHandlers {
	return &TenantHandlers{tenants: tenants, memberships: memberships}
}

// CreateTenantRequest represents the request to create a new tenant
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateTenantRequest represents the request to rename a tenant
type UpdateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// TransferOwnershipRequest names the member who becomes the new owner
type TransferOwnershipRequest struct {
	ProfileID string `json:"profile_id" binding:"required"`
}

// @Summary      Create tenant
// @Description  Create a new tenant. The caller becomes its owner.
// @Tags         Tenants
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        request  body  CreateTenantRequest  true  "Tenant details"
// @Success      201  {object}  map[string]interface{}  "tenant: models.Tenant"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      409  {object}  map[string]interface{}  "Name conflict"
// @Router       /api/v1/tenants [post]
// CreateTenantHandler creates a tenant owned by the caller
// POST /api/v1/tenants
func (h *TenantHandlers) CreateTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		tenant, err := h.tenants.Create(c.Request.Context(), req.Name, c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"tenant": tenant})
	}
}

// @Summary      List my tenants
// @Description  List every tenant the caller is an active member of.
// @Tags         Tenants
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "tenants: []models.Tenant"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/tenants [get]
// ListTenantsHandler lists the caller's tenants
// GET /api/v1/tenants
func (h *TenantHandlers) ListTenantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenants, err := h.tenants.ListForProfile(c.Request.Context(), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tenants": tenants})
	}
}

// @Summary      Get tenant
// @Description  Retrieve a tenant the caller is a member of.
// @Tags         Tenants
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "tenant: models.Tenant"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id} [get]
// GetTenantHandler retrieves a tenant by ID
// GET /api/v1/tenants/:tenant_id
func (h *TenantHandlers) GetTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := h.tenants.GetByID(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tenant": tenant})
	}
}

// @Summary      Rename tenant
// @Description  Change a tenant's display name. The slug never changes.
// @Tags         Tenants
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string               true  "Tenant ID"
// @Param        request    body  UpdateTenantRequest  true  "New name"
// @Success      200  {object}  map[string]interface{}  "tenant: models.Tenant"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id} [put]
// UpdateTenantHandler renames a tenant
// PUT /api/v1/tenants/:tenant_id
func (h *TenantHandlers) UpdateTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		tenant, err := h.tenants.UpdateName(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), req.Name)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"tenant": tenant})
	}
}

// @Summary      Delete tenant
// @Description  Delete a tenant and all dependent rows. Owner only.
// @Tags         Tenants
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id} [delete]
// DeleteTenantHandler deletes a tenant
// DELETE /api/v1/tenants/:tenant_id
func (h *TenantHandlers) DeleteTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.tenants.Delete(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey)); err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Transfer ownership
// @Description  Make another active member the tenant owner. The previous owner becomes an admin.
// @Tags         Tenants
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string                    true  "Tenant ID"
// @Param        request    body  TransferOwnershipRequest  true  "New owner"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /api/v1/tenants/{tenant_id}/transfer-ownership [post]
// TransferOwnershipHandler hands the owner role to another member
// POST /api/v1/tenants/:tenant_id/transfer-ownership
func (h *TenantHandlers) TransferOwnershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TransferOwnershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.memberships.TransferOwnership(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), req.ProfileID)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
	}
}
