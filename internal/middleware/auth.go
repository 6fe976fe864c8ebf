// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → Scope/Permission → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any DB or
// bcrypt work. Auth resolves the caller to a member profile (identity token) or
// an API key; the scope and permission middleware read from that context. Audit
// logging runs last so only authorized mutations are recorded as successful.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/identity"
	"github.com/commshub/commshub/internal/services"
	"github.com/commshub/commshub/internal/telemetry"
)

// Context keys set by AuthMiddleware and read by downstream middleware and handlers.
const (
	ProfileKey     = "profile"
	ProfileIDKey   = "profile_id"
	IdentityIDKey  = "identity_id"
	AuthMethodKey  = "auth_method"
	APIKeyKey      = "api_key"
	KeyTenantIDKey = "key_tenant_id"
	ScopesKey      = "scopes"
)

// Values of AuthMethodKey.
const (
	AuthMethodIdentity = "identity"
	AuthMethodAPIKey   = "api_key"
)

// AuthMiddleware authenticates a request from its Bearer token: first as a
// provider-issued identity token (stateless signature check, no DB), then as
// an API key (prefix lookup + bcrypt). Identity callers resolve to a member
// profile, created on first sight; API key callers carry the key's tenant and
// scopes instead.
func AuthMiddleware(provider identity.Provider, profiles *repositories.ProfileRepository, apiKeys *services.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		// Identity tokens verify locally against the provider's signing
		// secret, so this path costs no DB round-trip on failure.
		if account, err := provider.ResolveCurrentIdentity(c.Request.Context(), token); err == nil {
			profile, err := profiles.GetByIdentityID(c.Request.Context(), account.ID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Failed to load profile",
				})
				return
			}
			if profile == nil {
				// First request from this identity: give it a profile so it
				// can create tenants and accept invitations.
				profile = &models.MemberProfile{IdentityID: account.ID, Email: account.Email}
				if err := profiles.Upsert(c.Request.Context(), profile); err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "Failed to create profile",
					})
					return
				}
			}

			c.Set(ProfileKey, profile)
			c.Set(ProfileIDKey, profile.ID)
			c.Set(IdentityIDKey, account.ID)
			c.Set(AuthMethodKey, AuthMethodIdentity)
			telemetry.AuthAttemptsTotal.WithLabelValues(AuthMethodIdentity, "success").Inc()

			c.Next()
			return
		}

		key, err := apiKeys.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthorized) {
				telemetry.AuthAttemptsTotal.WithLabelValues(AuthMethodAPIKey, "failure").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Invalid credentials",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Authentication failed",
			})
			return
		}

		c.Set(APIKeyKey, key)
		c.Set(ProfileIDKey, key.ProfileID)
		c.Set(KeyTenantIDKey, key.TenantID)
		c.Set(ScopesKey, key.Scopes)
		c.Set(AuthMethodKey, AuthMethodAPIKey)
		telemetry.AuthAttemptsTotal.WithLabelValues(AuthMethodAPIKey, "success").Inc()

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
