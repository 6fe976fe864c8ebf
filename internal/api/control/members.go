// members.go implements handlers for membership management: listing, role and
// status changes, custom permission overrides, and removal.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/services"
)

// MemberHandlers handles membership management endpoints
type MemberHandlers struct {
	memberships *services.MembershipService
}

// NewMemberHandlers creates a new MemberHandlers instance
func NewMemberHandlers(memberships *services.MembershipService) *MemberHandlers {
	return &MemberHandlers{memberships: memberships}
}

// UpdateRoleRequest represents a role change for a member
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateStatusRequest represents a status change for a member
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdatePermissionsRequest carries per-action overrides for a member. A key
// set to true grants the action regardless of role; false revokes it.
type UpdatePermissionsRequest struct {
	Permissions map[string]bool `json:"permissions" binding:"required"`
}

// @Summary      List members
// @Description  List all members of a tenant with their profile details.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "members: []models.MembershipWithProfile"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/members [get]
// ListMembersHandler lists a tenant's members
// GET /api/v1/tenants/:tenant_id/members
func (h *MemberHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := h.memberships.List(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}

// @Summary      Membership stats
// @Description  Per-role and per-status member counts for a tenant.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "stats: models.MembershipStats"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/members/stats [get]
// MemberStatsHandler returns member counts grouped by role and status
// GET /api/v1/tenants/:tenant_id/members/stats
func (h *MemberHandlers) MemberStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.memberships.Stats(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

// @Summary      Update member role
// @Description  Change a member's role. Demoting the last active owner is rejected.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id   path  string             true  "Tenant ID"
// @Param        profile_id  path  string             true  "Member profile ID"
// @Param        request     body  UpdateRoleRequest  true  "New role"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden or last-owner violation"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /api/v1/tenants/{tenant_id}/members/{profile_id}/role [put]
// UpdateRoleHandler changes a member's role
// PUT /api/v1/tenants/:tenant_id/members/:profile_id/role
func (h *MemberHandlers) UpdateRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.memberships.UpdateRole(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("profile_id"), req.Role)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
	}
}

// @Summary      Update member status
// @Description  Activate or deactivate a member. Deactivating the last active owner is rejected.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id   path  string               true  "Tenant ID"
// @Param        profile_id  path  string               true  "Member profile ID"
// @Param        request     body  UpdateStatusRequest  true  "New status"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden or last-owner violation"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /api/v1/tenants/{tenant_id}/members/{profile_id}/status [put]
// UpdateStatusHandler changes a member's status
// PUT /api/v1/tenants/:tenant_id/members/:profile_id/status
func (h *MemberHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.memberships.UpdateStatus(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("profile_id"), req.Status)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
	}
}

// @Summary      Update member permissions
// @Description  Replace a member's custom permission overrides.
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id   path  string                    true  "Tenant ID"
// @Param        profile_id  path  string                    true  "Member profile ID"
// @Param        request     body  UpdatePermissionsRequest  true  "Overrides"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /api/v1/tenants/{tenant_id}/members/{profile_id}/permissions [put]
// UpdatePermissionsHandler replaces a member's custom permission overrides
// PUT /api/v1/tenants/:tenant_id/members/:profile_id/permissions
func (h *MemberHandlers) UpdatePermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdatePermissionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.memberships.UpdateCustomPermissions(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("profile_id"), req.Permissions)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Permissions updated"})
	}
}

// @Summary      Remove member
// @Description  Remove a member from the tenant. Removing the last active owner is rejected.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        tenant_id   path  string  true  "Tenant ID"
// @Param        profile_id  path  string  true  "Member profile ID"
// @Success      204  "Removed"
// @Failure      403  {object}  map[string]interface{}  "Forbidden or last-owner violation"
// @Failure      404  {object}  map[string]interface{}  "Member not found"
// @Router       /api/v1/tenants/{tenant_id}/members/{profile_id} [delete]
// RemoveMemberHandler removes a member from a tenant
// DELETE /api/v1/tenants/:tenant_id/members/:profile_id
func (h *MemberHandlers) RemoveMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.memberships.Remove(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("profile_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
