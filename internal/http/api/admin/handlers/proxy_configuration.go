package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	permissions "github.com/router-for-me/proxyconsole/internal/http/api/admin/permissions"
	"github.com/router-for-me/proxyconsole/internal/proxy"
	log "github.com/sirupsen/logrus"
)

// maxProxyBodyBytes caps the update payload size.
const maxProxyBodyBytes = 64 << 10

// ProxyConfigurationHandler serves the platform proxy configuration.
type ProxyConfigurationHandler struct {
	service   proxy.Service
	validator *proxy.Validator
}

// NewProxyConfigurationHandler constructs a handler backed by service.
func NewProxyConfigurationHandler(service proxy.Service, validator *proxy.Validator) *ProxyConfigurationHandler {
	if validator == nil {
		validator = proxy.NewValidator()
	}
	return &ProxyConfigurationHandler{service: service, validator: validator}
}

// Get returns the current proxy configuration.
func (h *ProxyConfigurationHandler) Get(c *gin.Context) {
	if _, ok := authorizeUIParameters(c); !ok {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	current, errGet := h.service.GetProxy(c.Request.Context())
	if errGet != nil {
		log.WithError(errGet).Error("read proxy configuration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, current)
}

// Update replaces the proxy configuration with the request body.
func (h *ProxyConfigurationHandler) Update(c *gin.Context) {
	principal, ok := authorizeUIParameters(c)
	if !ok {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProxyBodyBytes)
	raw, errRead := c.GetRawData()
	if errRead != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(errRead, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read request body failed"})
		return
	}

	next, errDecode := proxy.DecodeRequest(raw, h.validator)
	if errDecode != nil {
		var parseErr *proxy.ParseError
		var validationErr *proxy.ValidationError
		switch {
		case errors.As(errDecode, &parseErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  proxy.InvalidJSONMessage,
				"code":   parseErr.Code,
				"offset": parseErr.Offset,
			})
		case errors.As(errDecode, &validationErr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      "Validation failed",
				"violations": validationErr.Violations,
			})
		default:
			log.WithError(errDecode).Error("decode proxy configuration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	if errUpdate := h.service.UpdateProxy(c.Request.Context(), next); errUpdate != nil {
		log.WithError(errUpdate).Error("update proxy configuration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	log.WithFields(log.Fields{
		"admin": principal.Username(),
		"proxy": next.String(),
	}).Info("proxy configuration updated")
	c.Status(http.StatusOK)
}

// authorizeUIParameters checks the caller may manage UI parameters.
func authorizeUIParameters(c *gin.Context) (permissions.Principal, bool) {
	principal, ok := permissions.PrincipalFromContext(c)
	if !ok {
		return permissions.Principal{}, false
	}
	return principal, permissions.CanManageUIParameters(principal)
}
