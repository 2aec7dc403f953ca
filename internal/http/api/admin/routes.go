package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/proxyconsole/internal/config"
	"github.com/router-for-me/proxyconsole/internal/http/api/admin/handlers"
	"github.com/router-for-me/proxyconsole/internal/proxy"
	"gorm.io/gorm"
)

// Route maps a method and path to a console handler.
type Route struct {
	Name    string
	Method  string
	Path    string
	Public  bool // Served without an admin token.
	Handler gin.HandlerFunc
}

// Routes builds the console route table.
func Routes(db *gorm.DB, jwtCfg config.JWTConfig, proxyService proxy.Service) []Route {
	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	healthHandler := handlers.NewHealthHandler(db)
	permissionHandler := handlers.NewPermissionHandler()
	proxyHandler := handlers.NewProxyConfigurationHandler(proxyService, proxy.NewValidator())

	return []Route{
		{Name: "healthz", Method: http.MethodGet, Path: "/healthz", Public: true, Handler: healthHandler.Healthz},
		{Name: "auth.login", Method: http.MethodPost, Path: "/auth/login", Public: true, Handler: authHandler.Login},
		{Name: "permissions.list", Method: http.MethodGet, Path: "/permissions", Handler: permissionHandler.List},
		{Name: "configuration.proxy.getProxy", Method: http.MethodGet, Path: "/configuration/proxy", Handler: proxyHandler.Get},
		{Name: "configuration.proxy.updateProxy", Method: http.MethodPost, Path: "/configuration/proxy", Handler: proxyHandler.Update},
	}
}

// RegisterAdminRoutes mounts the console routes under basePath.
func RegisterAdminRoutes(r gin.IRouter, basePath string, db *gorm.DB, jwtCfg config.JWTConfig, proxyService proxy.Service) {
	if r == nil || db == nil || proxyService == nil {
		return
	}

	public := r.Group(basePath)
	authed := r.Group(basePath)
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	for _, route := range Routes(db, jwtCfg, proxyService) {
		group := authed
		if route.Public {
			group = public
		}
		group.Handle(route.Method, route.Path, route.Handler)
	}
}
