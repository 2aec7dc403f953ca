package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/proxyconsole/internal/config"
	permissions "github.com/router-for-me/proxyconsole/internal/http/api/admin/permissions"
	"github.com/router-for-me/proxyconsole/internal/models"
	"github.com/router-for-me/proxyconsole/internal/security"
	"gorm.io/gorm"
)

// adminAuthMiddleware validates admin JWTs and stores the caller's Principal.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).
			Select("id", "username", "active", "permissions", "is_super_admin").
			First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		permissions.SetPrincipal(c, permissions.NewPrincipal(
			admin.ID,
			admin.Username,
			admin.IsSuperAdmin,
			permissions.ParsePermissions(admin.Permissions),
		))
		c.Next()
	}
}
