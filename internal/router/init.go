package router

import (
	"github.com/prasatya/authflow/internal/container"
	handlers "github.com/prasatya/authflow/internal/interface/http"
	"github.com/prasatya/authflow/internal/router/modules"
)

// InitModules builds the feature modules from the container and adds
// them to the registry. Call once during startup.
func InitModules(r *Registry, c *container.Container) {
	authHandler := handlers.NewAuthHandler(c.AuthSvc, c.Store, c.Cookies, c.Cfg, c.Logger)
	profileHandler := handlers.NewProfileHandler(c.ProfileSvc, c.Logger)

	r.Add(modules.NewAuthModule(c, authHandler))
	r.Add(modules.NewProfileModule(c, profileHandler))
	if c.Cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(c))
	}
}
