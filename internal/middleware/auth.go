package middleware

import (
	"net/http"
	"strings"

	"github.com/campuslive/campuslive/internal/auth"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/gin-gonic/gin"
)

// Context key for the verified identity in gin.Context.
//
// A constant instead of an inline string: a typo in c.Get("identity")
// compiles fine and silently returns nil; with the constant the
// compiler catches it.
const ContextKeyIdentity = "identity"

// AuthMiddleware returns a gin middleware that validates JWT tokens and
// stores the resolved identity for downstream handlers.
//
// Tokens arrive one of two ways:
//   - "Authorization: Bearer <token>" — every REST call.
//   - "?token=<token>" query parameter — the websocket handshake.
//     Browsers cannot set headers on a WebSocket upgrade, so the
//     credential rides the URL for that one endpoint.
//
// If the token is missing or invalid the chain aborts with 401 and the
// handler never runs — an unidentified caller is refused before any
// realtime admission can happen.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing credentials",
			})
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyIdentity, claims.Identity())
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// GetIdentity extracts the verified identity stored by AuthMiddleware.
// The zero Identity (ID 0) means "not authenticated" and fails any
// admission check downstream.
func GetIdentity(c *gin.Context) models.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return models.Identity{}
	}
	id, ok := val.(models.Identity)
	if !ok {
		return models.Identity{}
	}
	return id
}
