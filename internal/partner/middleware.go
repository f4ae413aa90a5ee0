package partner

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyPartner is the gin context key holding the authenticated partner.
	ContextKeyPartner = "partner"
)

// Middleware extracts and validates the API key from the request.
// Sets the partner in context if valid; rejection is left to RequireAuth so
// public routes can share the chain.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			p, err := m.Authenticate(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyPartner, p)
			} else if errors.Is(err, ErrSuspended) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "suspended",
					"message": "This account is suspended.",
				})
				return
			}
		}

		c.Next()
	}
}

// RequireAuth middleware rejects requests without a valid API key.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyPartner); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer vk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin guards provisioning endpoints with a shared admin secret.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Admin-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin secret required.",
			})
			return
		}
		c.Next()
	}
}

// FromContext returns the authenticated partner, if any.
func FromContext(c *gin.Context) (*Partner, bool) {
	v, exists := c.Get(ContextKeyPartner)
	if !exists {
		return nil, false
	}
	p, ok := v.(*Partner)
	return p, ok
}
