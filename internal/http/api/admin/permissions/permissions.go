package permissions

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ManageUIParameters grants access to the console UI parameters, including the proxy configuration.
const ManageUIParameters = "ADMINISTRATION_PARAMETERS_UI"

// principalContextKey is the gin context key holding the authenticated Principal.
const principalContextKey = "adminPrincipal"

// Definition describes a grantable permission.
type Definition struct {
	Key    string
	Label  string
	Module string
}

var definitions = []Definition{
	{Key: ManageUIParameters, Label: "Manage UI parameters", Module: "Administration"},
}

// Definitions returns all permission definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// DefinitionMap returns the definitions keyed by permission key.
func DefinitionMap() map[string]Definition {
	out := make(map[string]Definition, len(definitions))
	for _, def := range definitions {
		out[def.Key] = def
	}
	return out
}

// ParsePermissions decodes a stored permission list, dropping blanks and duplicates.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var keys []string
	if errUnmarshal := json.Unmarshal(raw, &keys); errUnmarshal != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// HasPermission reports whether key is in the list.
func HasPermission(list []string, key string) bool {
	for _, granted := range list {
		if granted == key {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller of a console request.
// It is immutable once built.
type Principal struct {
	adminID       uint64
	username      string
	administrator bool
	permissions   []string
}

// NewPrincipal builds a Principal; the permission list is copied.
func NewPrincipal(adminID uint64, username string, administrator bool, granted []string) Principal {
	perms := make([]string, len(granted))
	copy(perms, granted)
	return Principal{
		adminID:       adminID,
		username:      username,
		administrator: administrator,
		permissions:   perms,
	}
}

// AdminID returns the admin row ID.
func (p Principal) AdminID() uint64 { return p.adminID }

// Username returns the admin login name.
func (p Principal) Username() string { return p.username }

// IsAdmin reports whether the caller holds the administrator role.
func (p Principal) IsAdmin() bool { return p.administrator }

// HasPermission reports whether the caller was granted key.
func (p Principal) HasPermission(key string) bool {
	return HasPermission(p.permissions, key)
}

// CanManageUIParameters reports whether p may read or change UI parameters.
func CanManageUIParameters(p Principal) bool {
	return p.IsAdmin() || p.HasPermission(ManageUIParameters)
}

// SetPrincipal stores p on the request context.
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalContextKey, p)
}

// PrincipalFromContext returns the Principal stored by the auth middleware.
func PrincipalFromContext(c *gin.Context) (Principal, bool) {
	value, ok := c.Get(principalContextKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := value.(Principal)
	return p, ok
}
