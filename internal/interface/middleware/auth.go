package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prasatya/authflow/internal/session"
	"github.com/prasatya/authflow/pkg/helpers"
	"github.com/prasatya/authflow/pkg/response"
)

const CtxUserIDKey = "userID"

// Auth validates the provider-signed access token cookie and checks it
// belongs to the identity the session store currently holds. It sets
// CtxUserIDKey in the Gin context on success.
func Auth(store *session.Store, verifier *helpers.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := verifier.Parse(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", err.Error())
			c.Abort()
			return
		}

		snap := store.Snapshot()
		if snap.Identity == nil || snap.Identity.ID != claims.Subject {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Next()
	}
}

// RequireAdmin allows only sessions whose profile carries the admin
// role. Must run after Auth.
func RequireAdmin(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := store.Snapshot().Profile; !p.IsAdmin() {
			response.Error[any](c, http.StatusForbidden, "admin role required", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
