package container

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/config"
	"github.com/prasatya/authflow/internal/application"
	"github.com/prasatya/authflow/internal/domain/repository"
	"github.com/prasatya/authflow/internal/identity"
	pginfra "github.com/prasatya/authflow/internal/infrastructure/postgres"
	"github.com/prasatya/authflow/internal/infrastructure/redisstore"
	"github.com/prasatya/authflow/internal/notify"
	"github.com/prasatya/authflow/internal/session"
	"github.com/prasatya/authflow/pkg/helpers"
)

// Container holds the wired application graph. Everything is injected
// through constructors; nothing here is package-global state.
type Container struct {
	Cfg    *config.Config
	Logger *logrus.Logger

	PGPool    *pgxpool.Pool
	Redis     *redis.Client
	ES        *elasticsearch.Client
	RabbitPub *helpers.RabbitPublisher

	Verifier *helpers.TokenVerifier
	Cookies  *helpers.Manager

	Provider *identity.Client
	Profiles repository.ProfileRepository
	Store    *session.Store
	Ledger   *notify.Ledger
	Notifier notify.Notifier
	Listener *session.Listener

	AuthSvc    *application.AuthService
	ProfileSvc *application.ProfileService

	unsubscribe func()
}

// Build wires the application graph on top of already-opened
// infrastructure handles; the caller keeps ownership of their
// lifecycles. The provider event stream is subscribed to the session
// listener before Build returns, so a Rehydrate right after sees the
// full pipeline.
func Build(cfg *config.Config, logger *logrus.Logger, pool *pgxpool.Pool, rdb *redis.Client, es *elasticsearch.Client, pub *helpers.RabbitPublisher) *Container {
	c := &Container{
		Cfg:       cfg,
		Logger:    logger,
		PGPool:    pool,
		Redis:     rdb,
		ES:        es,
		RabbitPub: pub,
	}

	c.Verifier = helpers.NewTokenVerifier(cfg.IdentityJWTSecret)
	c.Cookies = helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)

	cache := redisstore.NewSessionCache(rdb)
	c.Provider = identity.NewClient(cfg.IdentityBaseURL, cfg.IdentityAnonKey, cache, cfg.TokenRefreshLeeway, logger)

	c.Profiles = pginfra.NewProfileRepository(pool)
	c.Store = session.NewStore(c.Profiles, logger)
	c.Ledger = notify.NewLedger()

	var pub2 notify.Publisher
	if pub != nil {
		pub2 = pub
	}
	c.Notifier = notify.NewQueueNotifier(pub2, cfg, logger)

	c.Listener = session.NewListener(c.Store, c.Ledger, c.Notifier, logger, cfg.DashboardURL, cfg.SupportURL)

	c.AuthSvc = &application.AuthService{
		Provider:       c.Provider,
		Store:          c.Store,
		Profiles:       c.Profiles,
		Notifier:       c.Notifier,
		Redis:          rdb,
		Logger:         logger,
		SignInTimeout:  cfg.SignInTimeout,
		PersistTimeout: cfg.SessionPersistTimeout,
	}
	c.ProfileSvc = &application.ProfileService{
		Repo:            c.Profiles,
		Store:           c.Store,
		Notifier:        c.Notifier,
		Logger:          logger,
		ES:              es,
		ESProfilesIndex: cfg.ESProfilesIndex,
	}

	c.unsubscribe = c.Provider.Subscribe(func(ev identity.Event) {
		c.Listener.Handle(context.Background(), ev)
	})

	return c
}

// Close detaches the listener from the provider event stream. The
// infrastructure handles are closed by their owner.
func (c *Container) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}
