package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	permissions "github.com/router-for-me/proxyconsole/internal/http/api/admin/permissions"
)

// PermissionHandler exposes permission definitions for admins.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns all permission definitions and whether the caller holds each one.
func (h *PermissionHandler) List(c *gin.Context) {
	principal, _ := permissions.PrincipalFromContext(c)

	defs := permissions.Definitions()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"key":     def.Key,
			"label":   def.Label,
			"module":  def.Module,
			"granted": principal.IsAdmin() || principal.HasPermission(def.Key),
		})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out})
}
