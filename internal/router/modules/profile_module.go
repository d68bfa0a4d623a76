package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasatya/authflow/internal/container"
	handlers "github.com/prasatya/authflow/internal/interface/http"
	"github.com/prasatya/authflow/internal/interface/middleware"
)

type ProfileModule struct {
	C       *container.Container
	Handler *handlers.ProfileHandler
}

func NewProfileModule(c *container.Container, h *handlers.ProfileHandler) *ProfileModule {
	return &ProfileModule{C: c, Handler: h}
}

func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.C.Store, m.C.Verifier))
	auth.Use(middleware.RateLimit(m.C.Redis, 60, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/profile", m.Handler.Get)
		auth.PUT("/profile", m.Handler.Update)
	}

	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(m.C.Store, m.C.Verifier))
	admin.Use(middleware.RequireAdmin(m.C.Store))
	{
		admin.GET("/profiles/search", m.Handler.Search)
	}
}
