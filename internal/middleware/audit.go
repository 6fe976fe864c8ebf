// audit.go provides Gin middleware that records authenticated write operations
// to the audit log.
package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/safego"
)

// AuditMiddleware records successful write operations with the acting profile,
// tenant, and client IP. Reads and failed requests are not recorded. The write
// happens on a background goroutine so audit logging never adds latency to the
// request path.
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "GET" || c.Request.Method == "OPTIONS" {
			return
		}
		if c.Writer.Status() >= 400 {
			return
		}

		entry := &models.AuditLog{
			Action: c.Request.Method + " " + c.Request.URL.Path,
		}

		ip := c.ClientIP()
		if ip != "" {
			entry.IPAddress = &ip
		}
		if profileID := c.GetString(ProfileIDKey); profileID != "" {
			entry.ProfileID = &profileID
		}
		if tenantID := c.Param("tenant_id"); tenantID != "" {
			entry.TenantID = &tenantID
		}
		if rt := resourceTypeForPath(c.Request.URL.Path); rt != "" {
			entry.ResourceType = &rt
		}

		entry.Metadata = map[string]interface{}{
			"auth_method": c.GetString(AuthMethodKey),
			"status_code": c.Writer.Status(),
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = auditRepo.CreateAuditLog(ctx, entry)
		})
	}
}

// resourceTypeForPath classifies a request path by the innermost resource
// collection it addresses.
func resourceTypeForPath(path string) string {
	switch {
	case strings.Contains(path, "/invitations"):
		return "invitation"
	case strings.Contains(path, "/members"):
		return "member"
	case strings.Contains(path, "/api-keys"):
		return "api_key"
	case strings.Contains(path, "/org-units"):
		return "org_unit"
	case strings.Contains(path, "/tenants"):
		return "tenant"
	}
	return ""
}
