// orgunits.go implements handlers for the org unit tree: creation, renames,
// subtree queries, deletion, and member assignment.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/services"
)

// OrgUnitHandlers handles org unit endpoints
type OrgUnitHandlers struct {
	orgUnits *services.OrgUnitService
}

// NewOrgUnitHandlers creates a new OrgUnitHandlers instance
func NewOrgUnitHandlers(orgUnits *services.OrgUnitService) *OrgUnitHandlers {
	return &OrgUnitHandlers{orgUnits: orgUnits}
}

// CreateOrgUnitRequest represents the request to create an org unit
type CreateOrgUnitRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// RenameOrgUnitRequest represents the request to rename an org unit
type RenameOrgUnitRequest struct {
	Name string `json:"name" binding:"required"`
}

// AssignMemberRequest names the membership to place in an org unit
type AssignMemberRequest struct {
	MembershipID string `json:"membership_id" binding:"required"`
}

// @Summary      List org units
// @Description  List the tenant's full org unit tree as a flat list with parent references.
// @Tags         Org Units
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "org_units: []models.OrgUnit"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units [get]
// ListOrgUnitsHandler lists a tenant's org units
// GET /api/v1/tenants/:tenant_id/org-units
func (h *OrgUnitHandlers) ListOrgUnitsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := h.orgUnits.List(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"org_units": units})
	}
}

// @Summary      Get org unit subtree
// @Description  List an org unit and all its descendants.
// @Tags         Org Units
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        unit_id    path  string  true  "Org unit ID"
// @Success      200  {object}  map[string]interface{}  "org_units: []models.OrgUnit"
// @Failure      404  {object}  map[string]interface{}  "Unit not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units/{unit_id}/subtree [get]
// OrgUnitSubtreeHandler lists an org unit and its descendants
// GET /api/v1/tenants/:tenant_id/org-units/:unit_id/subtree
func (h *OrgUnitHandlers) OrgUnitSubtreeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		units, err := h.orgUnits.Subtree(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("unit_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"org_units": units})
	}
}

// @Summary      Create org unit
// @Description  Create an org unit, optionally under a parent.
// @Tags         Org Units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string                true  "Tenant ID"
// @Param        request    body  CreateOrgUnitRequest  true  "Unit details"
// @Success      201  {object}  map[string]interface{}  "org_unit: models.OrgUnit"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Parent not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units [post]
// CreateOrgUnitHandler creates an org unit
// POST /api/v1/tenants/:tenant_id/org-units
func (h *OrgUnitHandlers) CreateOrgUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrgUnitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		unit, err := h.orgUnits.Create(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), req.Name, req.ParentID)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"org_unit": unit})
	}
}

// @Summary      Rename org unit
// @Description  Change an org unit's name.
// @Tags         Org Units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string                true  "Tenant ID"
// @Param        unit_id    path  string                true  "Org unit ID"
// @Param        request    body  RenameOrgUnitRequest  true  "New name"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Unit not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units/{unit_id} [put]
// RenameOrgUnitHandler renames an org unit
// PUT /api/v1/tenants/:tenant_id/org-units/:unit_id
func (h *OrgUnitHandlers) RenameOrgUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RenameOrgUnitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.orgUnits.Rename(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("unit_id"), req.Name)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Org unit renamed"})
	}
}

// @Summary      Delete org unit
// @Description  Delete an org unit. Children are re-parented to the deleted unit's parent.
// @Tags         Org Units
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        unit_id    path  string  true  "Org unit ID"
// @Success      204  "Deleted"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Unit not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units/{unit_id} [delete]
// DeleteOrgUnitHandler deletes an org unit
// DELETE /api/v1/tenants/:tenant_id/org-units/:unit_id
func (h *OrgUnitHandlers) DeleteOrgUnitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.orgUnits.Delete(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("unit_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Assign member to org unit
// @Description  Place an existing tenant membership in an org unit.
// @Tags         Org Units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string               true  "Tenant ID"
// @Param        unit_id    path  string               true  "Org unit ID"
// @Param        request    body  AssignMemberRequest  true  "Membership"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Unit or membership not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units/{unit_id}/members [post]
// AssignMemberHandler places a membership in an org unit
// POST /api/v1/tenants/:tenant_id/org-units/:unit_id/members
func (h *OrgUnitHandlers) AssignMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssignMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		err := h.orgUnits.AssignMember(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("unit_id"), req.MembershipID)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Member assigned"})
	}
}

// @Summary      Unassign member from org unit
// @Description  Remove a membership from an org unit. The tenant membership itself is untouched.
// @Tags         Org Units
// @Security     Bearer
// @Produce      json
// @Param        tenant_id      path  string  true  "Tenant ID"
// @Param        unit_id        path  string  true  "Org unit ID"
// @Param        membership_id  path  string  true  "Membership ID"
// @Success      204  "Unassigned"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Assignment not found"
// @Router       /api/v1/tenants/{tenant_id}/org-units/{unit_id}/members/{membership_id} [delete]
// UnassignMemberHandler removes a membership from an org unit
// DELETE /api/v1/tenants/:tenant_id/org-units/:unit_id/members/:membership_id
func (h *OrgUnitHandlers) UnassignMemberHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.orgUnits.UnassignMember(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("unit_id"), c.Param("membership_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
