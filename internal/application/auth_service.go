package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/domain/repository"
	"github.com/prasatya/authflow/internal/identity"
	"github.com/prasatya/authflow/internal/notify"
	"github.com/prasatya/authflow/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSignInTimeout      = errors.New("sign-in timed out")
	ErrNotSignedIn        = errors.New("not signed in")
)

// AuthService owns the sign-in path. The upstream identity provider has
// been observed to hang indefinitely, so the two network calls on this
// path are bounded: the password grant races a fixed timeout with a
// direct session check as fallback, and the session-persistence call
// gets a shorter best-effort bound.
type AuthService struct {
	Provider identity.Provider
	Store    *session.Store
	Profiles repository.ProfileRepository
	Notifier notify.Notifier
	Redis    *redis.Client
	Logger   *logrus.Logger

	SignInTimeout  time.Duration
	PersistTimeout time.Duration

	// NotifyDone, when set, is called after the detached
	// password-changed notice settles. Test hook.
	NotifyDone func(userID string, err error)
}

type SignInInput struct {
	Email    string
	Password string
	Remember bool
}

// SignInResult is the uniform success shape regardless of whether the
// primary call or the timeout fallback resolved first.
type SignInResult struct {
	Session                *entity.Session
	Identity               *entity.Identity
	Profile                *entity.Profile
	RequiresPasswordChange bool
}

func lastLoginKey(userID string) string {
	return "user:lastlogin:" + userID
}

// signInOutcome travels on the race channel; exactly one of the pair
// {sess+ident, err} is meaningful.
type signInOutcome struct {
	sess  *entity.Session
	ident *entity.Identity
	err   error
}

// first runs primary in its own goroutine and waits at most d for it,
// then invokes fallback. First resolution wins; the loser's outcome is
// discarded through the buffered channel, not cancelled: the
// underlying call is not abortable, so its late completion (and any
// event it emits) must stay idempotent and ignorable.
func first(d time.Duration, primary func() signInOutcome, fallback func() signInOutcome) signInOutcome {
	ch := make(chan signInOutcome, 1)
	go func() { ch <- primary() }()
	select {
	case out := <-ch:
		return out
	case <-time.After(d):
		return fallback()
	}
}

// SignIn authenticates with the provider. On timeout it falls back to a
// direct "is there already a valid session" check, so a hung grant call
// never blocks the caller past SignInTimeout. Exactly one of result and
// error is non-nil.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (*SignInResult, error) {
	if !in.Remember {
		s.markTransient(ctx)
	}

	out := first(s.SignInTimeout,
		func() signInOutcome {
			sess, ident, err := s.Provider.SignInWithPassword(ctx, in.Email, in.Password)
			return signInOutcome{sess: sess, ident: ident, err: err}
		},
		func() signInOutcome {
			sess, ident, err := s.Provider.GetSession(ctx)
			if err != nil || !sess.Valid() {
				return signInOutcome{err: ErrSignInTimeout}
			}
			return signInOutcome{sess: sess, ident: ident}
		},
	)
	if out.err != nil {
		if errors.Is(out.err, identity.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, out.err
	}

	res := &SignInResult{Session: out.sess, Identity: out.ident}

	// Profile fetch and last-login stamp are best-effort: a degraded
	// profile store must not fail an otherwise valid sign-in.
	if p, err := s.Profiles.GetByID(ctx, out.ident.ID); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", out.ident.ID).Warn("profile fetch after sign-in failed")
		}
	} else {
		res.Profile = p
		res.RequiresPasswordChange = p.RequiresPasswordChange
	}
	s.recordLastLogin(ctx, out.ident.ID)

	return res, nil
}

// markTransient bounds the "don't remember me" persistence call with
// the short timeout. Failing to mark a session transient is not fatal;
// a timeout here is a logged no-op.
func (s *AuthService) markTransient(ctx context.Context) {
	done := make(chan error, 1)
	go func() { done <- s.Provider.SetSessionPersistence(ctx, false) }()
	select {
	case err := <-done:
		if err != nil && s.Logger != nil {
			s.Logger.WithError(err).Warn("mark session transient failed")
		}
	case <-time.After(s.PersistTimeout):
		if s.Logger != nil {
			s.Logger.Warn("mark session transient timed out")
		}
	}
}

func (s *AuthService) recordLastLogin(ctx context.Context, userID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Set(ctx, lastLoginKey(userID), time.Now().UTC().Format(time.RFC3339Nano), 0).Err(); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("record last login failed")
	}
}

// SignOut destroys the provider session; the SIGNED_OUT event clears
// the store.
func (s *AuthService) SignOut(ctx context.Context) error {
	return s.Provider.SignOut(ctx)
}

// RequestPasswordReset asks the provider to send a recovery link. The
// response is identical whether or not the email exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.Provider.RequestPasswordReset(ctx, email)
}

// ChangePassword completes the forced password-change flow: update the
// credential at the provider, clear the requires-change flag on the
// profile, refresh the store, and fire the security notice. Provider
// and profile persistence failures are surfaced; the notice is not.
func (s *AuthService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if _, err := s.Provider.UpdateUser(ctx, identity.UserAttributes{Password: &newPassword}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	p, err := s.Profiles.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	now := time.Now().UTC()
	p.RequiresPasswordChange = false
	p.PasswordChangedAt = &now
	if err := s.Profiles.Update(ctx, p); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	s.Store.RefreshProfile(ctx)

	if s.Notifier != nil && p.Email != "" {
		req := notify.PasswordChangedRequest{UserID: p.ID, Email: p.Email, Name: p.Name}
		go func() {
			err := s.Notifier.SendPasswordChanged(context.Background(), req)
			if err != nil && s.Logger != nil {
				s.Logger.WithError(err).WithField("user_id", req.UserID).Warn("password-changed notice failed")
			}
			if s.NotifyDone != nil {
				s.NotifyDone(req.UserID, err)
			}
		}()
	}
	return nil
}
