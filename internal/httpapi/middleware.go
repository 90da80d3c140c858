package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nazeru/storefront-go/internal/identity"
)

const capabilityKey = "capability"

// requireAuth verifies the bearer token and attaches the caller
// capability; workflows receive it explicitly, never the request.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "access token required"})
		return
	}

	capability, err := s.tokens.Verify(strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(capabilityKey, capability)
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	if !caller(c).Admin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return
	}
	c.Next()
}

func caller(c *gin.Context) identity.Capability {
	v, _ := c.Get(capabilityKey)
	capability, _ := v.(identity.Capability)
	return capability
}
