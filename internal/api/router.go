// Package api wires together all HTTP routes for the CommsHub access-control plane.
//
// Route grouping philosophy:
//   - Invitation token routes (/api/v1/invitations/:token/...) are reachable
//     without a membership. The person holding the token is by definition not
//     a member yet, so these routes sit outside the tenant-scoped middleware
//     chain and are throttled aggressively per IP instead.
//   - Everything under /api/v1/tenants/:tenant_id runs the full chain: route
//     scope check (API keys), tenant membership resolution, then a per-route
//     capability check.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/commshub/commshub/internal/api/control"
	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/config"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/identity"
	"github.com/commshub/commshub/internal/jobs"
	"github.com/commshub/commshub/internal/middleware"
	"github.com/commshub/commshub/internal/safego"
	"github.com/commshub/commshub/internal/services"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	expiryNotifier *jobs.APIKeyExpiryNotifier
	rateLimiters   []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.expiryNotifier != nil {
		bg.expiryNotifier.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	profileRepo := repositories.NewProfileRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	invitationRepo := repositories.NewInvitationRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Wrap *sql.DB with sqlx for the org unit repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	orgUnitRepo := repositories.NewOrgUnitRepository(sqlxDB)

	// Initialize the identity provider client
	provider, err := identity.NewHTTPProvider(cfg.Identity.BaseURL, cfg.Identity.ServiceKey, cfg.Identity.JWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize identity provider client: %v", err)
	}

	// Initialize services
	tenantService := services.NewTenantService(tenantRepo, membershipRepo)
	membershipService := services.NewMembershipService(membershipRepo)
	invitationService := services.NewInvitationService(
		invitationRepo, membershipRepo, profileRepo, provider,
		cfg.Invitations.GetCallbackURL(&cfg.Server),
	)
	apiKeyService := services.NewAPIKeyService(apiKeyRepo, membershipRepo, cfg.Auth.APIKeys.Prefix)
	orgUnitService := services.NewOrgUnitService(orgUnitRepo, membershipRepo)

	// Initialize and start the API key expiry notifier
	expiryNotifier := jobs.NewAPIKeyExpiryNotifier(apiKeyRepo, profileRepo, &cfg.Notifications)
	safego.Go(func() {
		expiryNotifier.Start(context.Background())
	})
	log.Println("API key expiry notifier started")

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint
	router.GET("/ready", readinessHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	tenantHandlers := control.NewTenantHandlers(tenantService, membershipService)
	memberHandlers := control.NewMemberHandlers(membershipService)
	invitationHandlers := control.NewInvitationHandlers(invitationService)
	apiKeyHandlers := control.NewAPIKeyHandlers(apiKeyService)
	orgUnitHandlers := control.NewOrgUnitHandlers(orgUnitService)

	// Initialize rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	tokenRateLimiter := middleware.NewRateLimiter(middleware.InvitationTokenRateLimitConfig())

	apiV1 := router.Group("/api/v1")
	{
		// Invitation token endpoints. Lookup and decline need no account at
		// all; possession of the token is the credential. Accept requires a
		// signed-in identity so we know who is joining.
		tokenGroup := apiV1.Group("/invitations")
		tokenGroup.Use(middleware.RateLimitMiddleware(tokenRateLimiter))
		{
			tokenGroup.GET("/:token", invitationHandlers.GetInvitationHandler())
			tokenGroup.POST("/:token/decline", invitationHandlers.DeclineInvitationHandler())
			tokenGroup.POST("/:token/accept",
				middleware.RateLimitMiddleware(authRateLimiter),
				middleware.AuthMiddleware(provider, profileRepo, apiKeyService),
				invitationHandlers.AcceptInvitationHandler())
		}

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		authenticatedGroup.Use(middleware.AuthMiddleware(provider, profileRepo, apiKeyService))
		// RequireRouteScope covers every authenticated route: API-key callers
		// are checked against the static route table, and routes absent from
		// it (/me, tenant create/list, and the rest) stay identity-only.
		authenticatedGroup.Use(middleware.RequireRouteScope())
		if cfg.Audit.Enabled {
			authenticatedGroup.Use(middleware.AuditMiddleware(auditRepo))
		}
		{
			// Caller identity and tenant listing sit outside the tenant
			// scope: they answer "who am I" and "where can I go".
			authenticatedGroup.GET("/me", control.MeHandler())
			authenticatedGroup.POST("/tenants", tenantHandlers.CreateTenantHandler())
			authenticatedGroup.GET("/tenants", tenantHandlers.ListTenantsHandler())

			// Tenant-scoped endpoints. RequireTenantAccess resolves the
			// membership; RequirePermission checks the route's capability.
			tenantGroup := authenticatedGroup.Group("/tenants/:tenant_id")
			tenantGroup.Use(middleware.RequireTenantAccess(membershipRepo))
			{
				tenantGroup.GET("",
					middleware.RequirePermission(auth.ActionRead),
					tenantHandlers.GetTenantHandler())
				tenantGroup.PUT("",
					middleware.RequirePermission(auth.ActionUpdateTenant),
					tenantHandlers.UpdateTenantHandler())
				tenantGroup.DELETE("",
					middleware.RequirePermission(auth.ActionDeleteTenant),
					tenantHandlers.DeleteTenantHandler())
				tenantGroup.POST("/transfer-ownership",
					middleware.RequirePermission(auth.ActionTransferOwnership),
					tenantHandlers.TransferOwnershipHandler())

				// Members
				tenantGroup.GET("/members",
					middleware.RequirePermission(auth.ActionRead),
					memberHandlers.ListMembersHandler())
				tenantGroup.GET("/members/stats",
					middleware.RequirePermission(auth.ActionRead),
					memberHandlers.MemberStatsHandler())
				tenantGroup.PUT("/members/:profile_id/role",
					middleware.RequirePermission(auth.ActionManageMembers),
					memberHandlers.UpdateRoleHandler())
				tenantGroup.PUT("/members/:profile_id/status",
					middleware.RequirePermission(auth.ActionManageMembers),
					memberHandlers.UpdateStatusHandler())
				tenantGroup.PUT("/members/:profile_id/permissions",
					middleware.RequirePermission(auth.ActionManageMembers),
					memberHandlers.UpdatePermissionsHandler())
				tenantGroup.DELETE("/members/:profile_id",
					middleware.RequirePermission(auth.ActionManageMembers),
					memberHandlers.RemoveMemberHandler())

				// Invitations
				tenantGroup.GET("/invitations",
					middleware.RequirePermission(auth.ActionRead),
					invitationHandlers.ListInvitationsHandler())
				tenantGroup.GET("/invitations/stats",
					middleware.RequirePermission(auth.ActionRead),
					invitationHandlers.InvitationStatsHandler())
				tenantGroup.POST("/invitations",
					middleware.RequirePermission(auth.ActionInviteUsers),
					invitationHandlers.SendInvitationHandler())
				tenantGroup.POST("/invitations/:invitation_id/resend",
					middleware.RequirePermission(auth.ActionInviteUsers),
					invitationHandlers.ResendInvitationHandler())
				tenantGroup.DELETE("/invitations/:invitation_id",
					middleware.RequirePermission(auth.ActionInviteUsers),
					invitationHandlers.CancelInvitationHandler())

				// API keys
				tenantGroup.GET("/api-keys",
					middleware.RequirePermission(auth.ActionRead),
					apiKeyHandlers.ListAPIKeysHandler())
				tenantGroup.POST("/api-keys",
					middleware.RequirePermission(auth.ActionManageAPIKeys),
					apiKeyHandlers.CreateAPIKeyHandler())
				tenantGroup.DELETE("/api-keys/:key_id",
					middleware.RequirePermission(auth.ActionManageAPIKeys),
					apiKeyHandlers.RevokeAPIKeyHandler())

				// Org units
				tenantGroup.GET("/org-units",
					middleware.RequirePermission(auth.ActionRead),
					orgUnitHandlers.ListOrgUnitsHandler())
				tenantGroup.GET("/org-units/:unit_id/subtree",
					middleware.RequirePermission(auth.ActionRead),
					orgUnitHandlers.OrgUnitSubtreeHandler())
				tenantGroup.POST("/org-units",
					middleware.RequirePermission(auth.ActionManageMembers),
					orgUnitHandlers.CreateOrgUnitHandler())
				tenantGroup.PUT("/org-units/:unit_id",
					middleware.RequirePermission(auth.ActionManageMembers),
					orgUnitHandlers.RenameOrgUnitHandler())
				tenantGroup.DELETE("/org-units/:unit_id",
					middleware.RequirePermission(auth.ActionManageMembers),
					orgUnitHandlers.DeleteOrgUnitHandler())
				tenantGroup.POST("/org-units/:unit_id/members",
					middleware.RequirePermission(auth.ActionManageMembers),
					orgUnitHandlers.AssignMemberHandler())
				tenantGroup.DELETE("/org-units/:unit_id/members/:membership_id",
					middleware.RequirePermission(auth.ActionManageMembers),
					orgUnitHandlers.UnassignMemberHandler())
			}
		}
	}

	bg := &BackgroundServices{
		expiryNotifier: expiryNotifier,
		rateLimiters:   []*middleware.RateLimiter{generalRateLimiter, authRateLimiter, tokenRateLimiter},
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
