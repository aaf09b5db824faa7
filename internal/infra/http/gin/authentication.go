package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	principalContextKey = "partyspace.principal"
	// UserIDHeader carries the caller identity set by the authenticating gateway.
	UserIDHeader = "X-User-ID"
)

type principal struct {
	ID string
}

// GatewayAuth trusts the identity forwarded by the gateway. Requests without it stay
// anonymous and are rejected by handlers that need a caller.
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(UserIDHeader)); id != "" {
			setPrincipal(c, principal{ID: id})
		}
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorBody{Code: "UNAUTHENTICATED", Message: "caller identity required"})
		return principal{}, false
	}
	return p, true
}
