package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/identity"
	"github.com/prasatya/authflow/pkg/helpers"
)

const sessionKey = "auth:session"

// sessions survive in the cache as long as the provider refresh token
// plausibly lives.
const sessionTTL = 30 * 24 * time.Hour

// SessionCache persists the provider token pair in Redis so a process
// restart rehydrates the session instead of logging the user out. It
// plays the same role local storage plays for a browser client.
type SessionCache struct {
	rdb *redis.Client
}

func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

var _ identity.SessionCache = (*SessionCache)(nil)

type sessionRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (c *SessionCache) Load(ctx context.Context) (*entity.Session, error) {
	var rec sessionRecord
	found, err := helpers.RedisGetJSON(ctx, c.rdb, sessionKey, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &entity.Session{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

func (c *SessionCache) Save(ctx context.Context, s *entity.Session) error {
	rec := sessionRecord{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
	return helpers.RedisSetJSON(ctx, c.rdb, sessionKey, rec, sessionTTL)
}

func (c *SessionCache) Clear(ctx context.Context) error {
	return helpers.RedisDel(ctx, c.rdb, sessionKey)
}
