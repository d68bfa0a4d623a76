package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
)

var (
	// ErrNoSession is returned when an operation needs an active session
	// and none exists.
	ErrNoSession = errors.New("no active session")

	// ErrInvalidCredentials is returned for a rejected password grant.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// SessionCache persists the token pair across process restarts, the way
// a browser client keeps it in local storage. Transient ("don't
// remember me") sessions are never written to it.
type SessionCache interface {
	Load(ctx context.Context) (*entity.Session, error)
	Save(ctx context.Context, s *entity.Session) error
	Clear(ctx context.Context) error
}

// Client talks to a GoTrue-style identity REST API and emits auth
// events to subscribers. It owns the wire-level session (token pair);
// the session store owns the application view derived from events.
type Client struct {
	baseURL string
	anonKey string
	httpc   *http.Client
	cache   SessionCache
	logger  *logrus.Logger

	mu        sync.Mutex
	session   *entity.Session
	identity  *entity.Identity
	transient bool

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	refreshLeeway time.Duration
}

// NewClient creates a provider client. cache may be nil, in which case
// sessions do not survive a restart.
func NewClient(baseURL, anonKey string, cache SessionCache, refreshLeeway time.Duration, logger *logrus.Logger) *Client {
	if refreshLeeway <= 0 {
		refreshLeeway = 5 * time.Minute
	}
	return &Client{
		baseURL:       baseURL,
		anonKey:       anonKey,
		httpc:         &http.Client{},
		cache:         cache,
		logger:        logger,
		subs:          map[int]func(Event){},
		refreshLeeway: refreshLeeway,
	}
}

var _ Provider = (*Client)(nil)

// ---- wire payloads ----

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         userPayload `json:"user"`
}

type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Desc string `json:"error_description"`
}

func (u userPayload) toIdentity() *entity.Identity {
	return &entity.Identity{
		ID:              u.ID,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailConfirmedAt,
		Metadata:        u.UserMetadata,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func (t tokenResponse) toSession() *entity.Session {
	return &entity.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
	}
}

// ---- HTTP plumbing ----

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			if apiErr.Desc != "" {
				return fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Desc)
			}
			return ErrInvalidCredentials
		}
		msg := apiErr.Msg
		if msg == "" {
			msg = apiErr.Desc
		}
		return fmt.Errorf("identity provider: %s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ---- events ----

// Subscribe registers fn and returns an unsubscribe func. Handlers are
// invoked synchronously in emission order.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Client) emit(ev Event) {
	c.subMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// ---- Provider implementation ----

// Rehydrate loads a persisted session from the cache, validates it
// against the provider, and emits SESSION_LOADED exactly once. A
// missing or expired cached session is not an error; an unreachable
// provider is.
func (c *Client) Rehydrate(ctx context.Context) error {
	var sess *entity.Session
	if c.cache != nil {
		loaded, err := c.cache.Load(ctx)
		if err != nil {
			return fmt.Errorf("load cached session: %w", err)
		}
		sess = loaded
	}
	if sess == nil || !sess.Valid() {
		c.emit(Event{Kind: EventSessionLoaded})
		return nil
	}

	var u userPayload
	if err := c.do(ctx, http.MethodGet, "/user", nil, sess.AccessToken, &u); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Stale token pair; treat as logged out rather than fatal.
			if c.cache != nil {
				_ = c.cache.Clear(ctx)
			}
			c.emit(Event{Kind: EventSessionLoaded})
			return nil
		}
		return fmt.Errorf("rehydrate session: %w", err)
	}

	ident := u.toIdentity()
	c.mu.Lock()
	c.session = sess
	c.identity = ident
	c.mu.Unlock()

	c.emit(Event{Kind: EventSessionLoaded, Session: sess, Identity: ident})
	return nil
}

// GetSession returns the current session/identity without emitting.
func (c *Client) GetSession(ctx context.Context) (*entity.Session, *entity.Identity, error) {
	c.mu.Lock()
	sess, ident := c.session, c.identity
	c.mu.Unlock()
	if !sess.Valid() {
		return nil, nil, ErrNoSession
	}
	return sess, ident, nil
}

// SignInWithPassword performs the password grant and emits SIGNED_IN.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
	var tr tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", body, "", &tr); err != nil {
		return nil, nil, err
	}
	sess := tr.toSession()
	ident := tr.User.toIdentity()

	c.mu.Lock()
	c.session = sess
	c.identity = ident
	transient := c.transient
	c.mu.Unlock()

	if c.cache != nil && !transient {
		if err := c.cache.Save(ctx, sess); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("persist session failed")
		}
	}

	c.emit(Event{Kind: EventSignedIn, Session: sess, Identity: ident})
	return sess, ident, nil
}

// SignOut destroys the session locally and on the provider, then emits
// SIGNED_OUT. The provider call is best-effort: the local session is
// gone either way.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.identity = nil
	c.transient = false
	c.mu.Unlock()

	if c.cache != nil {
		_ = c.cache.Clear(ctx)
	}
	if sess != nil {
		if err := c.do(ctx, http.MethodPost, "/logout", nil, sess.AccessToken, nil); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("provider logout failed")
		}
	}
	c.emit(Event{Kind: EventSignedOut})
	return nil
}

// UpdateUser applies a partial update and emits USER_UPDATED.
func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*entity.Identity, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if !sess.Valid() {
		return nil, ErrNoSession
	}
	var u userPayload
	if err := c.do(ctx, http.MethodPut, "/user", attrs, sess.AccessToken, &u); err != nil {
		return nil, err
	}
	ident := u.toIdentity()
	c.mu.Lock()
	c.identity = ident
	c.mu.Unlock()

	c.emit(Event{Kind: EventUserUpdated, Session: sess, Identity: ident})
	return ident, nil
}

// RequestPasswordReset asks the provider to send a recovery email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/recover", map[string]string{"email": email}, "", nil)
}

// SetSessionPersistence marks the current session persistent or
// transient. A transient session is evicted from the cache so it does
// not survive a restart.
func (c *Client) SetSessionPersistence(ctx context.Context, persistent bool) error {
	c.mu.Lock()
	c.transient = !persistent
	sess := c.session
	c.mu.Unlock()

	if c.cache == nil {
		return nil
	}
	if !persistent {
		return c.cache.Clear(ctx)
	}
	if sess.Valid() {
		return c.cache.Save(ctx, sess)
	}
	return nil
}

// StartAutoRefresh rotates the token pair shortly before expiry and
// emits TOKEN_REFRESHED after each rotation. It returns when ctx is
// done. Refresh failures are logged and retried on the next tick; an
// expired session is surfaced as SIGNED_OUT.
func (c *Client) StartAutoRefresh(ctx context.Context) {
	const retryInterval = 30 * time.Second
	for {
		c.mu.Lock()
		sess := c.session
		c.mu.Unlock()

		wait := retryInterval
		if sess != nil {
			until := time.Until(sess.ExpiresAt) - c.refreshLeeway
			if until > wait {
				wait = until
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		c.mu.Lock()
		sess = c.session
		c.mu.Unlock()
		if sess == nil {
			continue
		}
		if err := c.refresh(ctx, sess.RefreshToken); err != nil {
			if c.logger != nil {
				c.logger.WithError(err).Warn("token refresh failed")
			}
			if !sess.Valid() {
				// Could not rotate before expiry: the session is gone.
				_ = c.SignOut(ctx)
			}
		}
	}
}

func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	var tr tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", body, "", &tr); err != nil {
		return err
	}
	sess := tr.toSession()
	ident := tr.User.toIdentity()

	c.mu.Lock()
	c.session = sess
	c.identity = ident
	transient := c.transient
	c.mu.Unlock()

	if c.cache != nil && !transient {
		if err := c.cache.Save(ctx, sess); err != nil && c.logger != nil {
			c.logger.WithError(err).Warn("persist refreshed session failed")
		}
	}
	c.emit(Event{Kind: EventTokenRefreshed, Session: sess, Identity: ident})
	return nil
}
