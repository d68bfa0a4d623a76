package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasatya/authflow/internal/container"
	handlers "github.com/prasatya/authflow/internal/interface/http"
	"github.com/prasatya/authflow/internal/interface/middleware"
)

type AuthModule struct {
	C       *container.Container
	Handler *handlers.AuthHandler
}

func NewAuthModule(c *container.Container, h *handlers.AuthHandler) *AuthModule {
	return &AuthModule{C: c, Handler: h}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	loginLimiter := middleware.RateLimit(m.C.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(m.C.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/reset/init", resetLimiter, m.Handler.ResetInit)

	// Protected endpoints with user-based rate limits
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.C.Store, m.C.Verifier))
	auth.Use(middleware.RateLimit(m.C.Redis, 30, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/auth/password", m.Handler.PasswordChange)
		auth.GET("/session", m.Handler.Session)
	}
}
