// invitations.go implements handlers for the invitation lifecycle. The
// tenant-scoped endpoints (list, stats, send, resend, cancel) run behind the
// full middleware chain; the token endpoints (get, accept, decline) are
// reached by people who are not members yet, so they are mounted outside
// RequireTenantAccess and are throttled per IP instead.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/services"
	"github.com/commshub/commshub/internal/telemetry"
)

// InvitationHandlers handles invitation endpoints
type InvitationHandlers struct {
	invitations *services.InvitationService
}

// NewInvitationHandlers creates a new InvitationHandlers instance
func NewInvitationHandlers(invitations *services.InvitationService) *InvitationHandlers {
	return &InvitationHandlers{invitations: invitations}
}

// SendInvitationRequest represents the request to invite someone by email
type SendInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// @Summary      List invitations
// @Description  List all invitations for a tenant.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "invitations: []models.Invitation"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/invitations [get]
// ListInvitationsHandler lists a tenant's invitations
// GET /api/v1/tenants/:tenant_id/invitations
func (h *InvitationHandlers) ListInvitationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invitations, err := h.invitations.List(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"invitations": invitations})
	}
}

// @Summary      Invitation stats
// @Description  Invitation counts per status for a tenant.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  map[string]interface{}  "stats: models.InvitationStats"
// @Failure      404  {object}  map[string]interface{}  "Tenant not found"
// @Router       /api/v1/tenants/{tenant_id}/invitations/stats [get]
// InvitationStatsHandler returns invitation counts per status
// GET /api/v1/tenants/:tenant_id/invitations/stats
func (h *InvitationHandlers) InvitationStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := h.invitations.Stats(c.Request.Context(), c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

// @Summary      Send invitation
// @Description  Invite someone to the tenant by email. The invitation email is delivered through the identity provider.
// @Tags         Invitations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string                 true  "Tenant ID"
// @Param        request    body  SendInvitationRequest  true  "Invitee"
// @Success      201  {object}  map[string]interface{}  "invitation: models.Invitation"
// @Failure      400  {object}  map[string]interface{}  "Invalid request body"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      409  {object}  map[string]interface{}  "Already a member or already invited"
// @Failure      502  {object}  map[string]interface{}  "Identity provider unavailable"
// @Router       /api/v1/tenants/{tenant_id}/invitations [post]
// SendInvitationHandler invites an email address to the tenant
// POST /api/v1/tenants/:tenant_id/invitations
func (h *InvitationHandlers) SendInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendInvitationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}

		inv, err := h.invitations.Send(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), req.Email, req.Role)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		telemetry.InvitationsSentTotal.Inc()
		c.JSON(http.StatusCreated, gin.H{"invitation": inv})
	}
}

// @Summary      Resend invitation
// @Description  Rotate the token of a pending or expired invitation and deliver a fresh email.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        tenant_id      path  string  true  "Tenant ID"
// @Param        invitation_id  path  string  true  "Invitation ID"
// @Success      200  {object}  map[string]interface{}  "invitation: models.Invitation"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Invitation not found"
// @Failure      409  {object}  map[string]interface{}  "Invitation already accepted or declined"
// @Router       /api/v1/tenants/{tenant_id}/invitations/{invitation_id}/resend [post]
// ResendInvitationHandler rotates an invitation token and resends the email
// POST /api/v1/tenants/:tenant_id/invitations/:invitation_id/resend
func (h *InvitationHandlers) ResendInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := h.invitations.Resend(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("invitation_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		telemetry.InvitationsSentTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"invitation": inv})
	}
}

// @Summary      Cancel invitation
// @Description  Delete a pending invitation. Its token stops working immediately.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        tenant_id      path  string  true  "Tenant ID"
// @Param        invitation_id  path  string  true  "Invitation ID"
// @Success      204  "Cancelled"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Failure      404  {object}  map[string]interface{}  "Invitation not found"
// @Router       /api/v1/tenants/{tenant_id}/invitations/{invitation_id} [delete]
// CancelInvitationHandler deletes a pending invitation
// DELETE /api/v1/tenants/:tenant_id/invitations/:invitation_id
func (h *InvitationHandlers) CancelInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.invitations.Cancel(c.Request.Context(),
			c.Param("tenant_id"), c.GetString(middleware.ProfileIDKey), c.Param("invitation_id"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// @Summary      Look up invitation by token
// @Description  Fetch the invitation behind a token so the join page can show the tenant and role. Expired tokens return 404.
// @Tags         Invitations
// @Produce      json
// @Param        token  path  string  true  "Invitation token"
// @Success      200  {object}  map[string]interface{}  "invitation: models.Invitation"
// @Failure      404  {object}  map[string]interface{}  "No usable invitation"
// @Router       /api/v1/invitations/{token} [get]
// GetInvitationHandler resolves an invitation token
// GET /api/v1/invitations/:token
func (h *InvitationHandlers) GetInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := h.invitations.GetByToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			writeServiceError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"invitation": inv})
	}
}

// @Summary      Accept invitation
// @Description  Accept an invitation as the signed-in account. Creates the membership; accepting twice is a no-op.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Param        token  path  string  true  "Invitation token"
// @Success      200  {object}  map[string]interface{}  "invitation: models.Invitation"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "API key callers cannot accept invitations"
// @Failure      404  {object}  map[string]interface{}  "No usable invitation"
// @Router       /api/v1/invitations/{token}/accept [post]
// AcceptInvitationHandler accepts an invitation on behalf of the caller
// POST /api/v1/invitations/:token/accept
func (h *InvitationHandlers) AcceptInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(middleware.AuthMethodKey) != middleware.AuthMethodIdentity {
			c.JSON(http.StatusForbidden, gin.H{"error": "API keys cannot accept invitations"})
			return
		}

		profileVal, _ := c.Get(middleware.ProfileKey)
		profile, ok := profileVal.(*models.MemberProfile)
		if !ok || profile == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		inv, err := h.invitations.Accept(c.Request.Context(),
			c.Param("token"), profile.IdentityID, profile.Email, profile.DisplayName)
		if err != nil {
			writeServiceError(c, err)
			return
		}

		telemetry.InvitationsAcceptedTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"invitation": inv})
	}
}

// @Summary      Decline invitation
// @Description  Decline an invitation. No account is needed; possession of the token is enough.
// @Tags         Invitations
// @Produce      json
// @Param        token  path  string  true  "Invitation token"
// @Success      204  "Declined"
// @Router       /api/v1/invitations/{token}/decline [post]
// DeclineInvitationHandler declines an invitation by token
// POST /api/v1/invitations/:token/decline
func (h *InvitationHandlers) DeclineInvitationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.invitations.Decline(c.Request.Context(), c.Param("token")); err != nil {
			writeServiceError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
