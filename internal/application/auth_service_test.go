package application

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/domain/repository"
	"github.com/prasatya/authflow/internal/identity"
	"github.com/prasatya/authflow/internal/notify"
	"github.com/prasatya/authflow/internal/session"
)

type mockProvider struct {
	rehydrate             func(ctx context.Context) error
	getSession            func(ctx context.Context) (*entity.Session, *entity.Identity, error)
	signInWithPassword    func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error)
	signOut               func(ctx context.Context) error
	updateUser            func(ctx context.Context, attrs identity.UserAttributes) (*entity.Identity, error)
	requestPasswordReset  func(ctx context.Context, email string) error
	setSessionPersistence func(ctx context.Context, persistent bool) error
}

var _ identity.Provider = (*mockProvider)(nil)

func (m *mockProvider) Rehydrate(ctx context.Context) error {
	if m.rehydrate != nil {
		return m.rehydrate(ctx)
	}
	return nil
}

func (m *mockProvider) GetSession(ctx context.Context) (*entity.Session, *entity.Identity, error) {
	if m.getSession != nil {
		return m.getSession(ctx)
	}
	return nil, nil, identity.ErrNoSession
}

func (m *mockProvider) SignInWithPassword(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
	if m.signInWithPassword != nil {
		return m.signInWithPassword(ctx, email, password)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockProvider) SignOut(ctx context.Context) error {
	if m.signOut != nil {
		return m.signOut(ctx)
	}
	return nil
}

func (m *mockProvider) UpdateUser(ctx context.Context, attrs identity.UserAttributes) (*entity.Identity, error) {
	if m.updateUser != nil {
		return m.updateUser(ctx, attrs)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProvider) RequestPasswordReset(ctx context.Context, email string) error {
	if m.requestPasswordReset != nil {
		return m.requestPasswordReset(ctx, email)
	}
	return nil
}

func (m *mockProvider) SetSessionPersistence(ctx context.Context, persistent bool) error {
	if m.setSessionPersistence != nil {
		return m.setSessionPersistence(ctx, persistent)
	}
	return nil
}

func (m *mockProvider) Subscribe(fn func(identity.Event)) func() {
	return func() {}
}

type mockRepo struct {
	getByID func(ctx context.Context, id string) (*entity.Profile, error)
	update  func(ctx context.Context, p *entity.Profile) error
}

var _ repository.ProfileRepository = (*mockRepo)(nil)

func (m *mockRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	if m.getByID != nil {
		return m.getByID(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepo) Update(ctx context.Context, p *entity.Profile) error {
	if m.update != nil {
		return m.update(ctx, p)
	}
	return errors.New("not implemented")
}

type mockNotifier struct {
	sendWelcome         func(ctx context.Context, req notify.WelcomeRequest) error
	sendAccountUpdate   func(ctx context.Context, req notify.AccountUpdateRequest) error
	sendPasswordChanged func(ctx context.Context, req notify.PasswordChangedRequest) error
}

var _ notify.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) SendWelcome(ctx context.Context, req notify.WelcomeRequest) error {
	if m.sendWelcome != nil {
		return m.sendWelcome(ctx, req)
	}
	return nil
}

func (m *mockNotifier) SendAccountUpdate(ctx context.Context, req notify.AccountUpdateRequest) error {
	if m.sendAccountUpdate != nil {
		return m.sendAccountUpdate(ctx, req)
	}
	return nil
}

func (m *mockNotifier) SendPasswordChanged(ctx context.Context, req notify.PasswordChangedRequest) error {
	if m.sendPasswordChanged != nil {
		return m.sendPasswordChanged(ctx, req)
	}
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func liveSession() *entity.Session {
	return &entity.Session{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)}
}

func verifiedIdentity(id, email string) *entity.Identity {
	at := time.Now().Add(-time.Hour)
	return &entity.Identity{ID: id, Email: email, EmailVerifiedAt: &at}
}

func newAuthService(p identity.Provider, repo repository.ProfileRepository) *AuthService {
	return &AuthService{
		Provider:       p,
		Store:          session.NewStore(repo, testLogger()),
		Profiles:       repo,
		Notifier:       &mockNotifier{},
		Logger:         testLogger(),
		SignInTimeout:  50 * time.Millisecond,
		PersistTimeout: 20 * time.Millisecond,
	}
}

func TestSignInPrimarySuccess(t *testing.T) {
	sess := liveSession()
	ident := verifiedIdentity("u1", "u1@example.com")
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			return sess, ident, nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id, Name: "Ada", RequiresPasswordChange: true}, nil
		},
	}
	svc := newAuthService(p, repo)

	res, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw", Remember: true})
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if res.Session != sess || res.Identity != ident {
		t.Fatal("result should carry the provider session and identity")
	}
	if res.Profile == nil || !res.RequiresPasswordChange {
		t.Fatal("profile and forced-change flag should be populated")
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			return nil, nil, identity.ErrInvalidCredentials
		},
	}
	svc := newAuthService(p, &mockRepo{})

	_, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "wrong", Remember: true})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignInHangFallsBackToExistingSession(t *testing.T) {
	sess := liveSession()
	ident := verifiedIdentity("u1", "u1@example.com")
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			time.Sleep(time.Second) // provider hangs past the bound
			return nil, nil, errors.New("too late")
		},
		getSession: func(ctx context.Context) (*entity.Session, *entity.Identity, error) {
			return sess, ident, nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id}, nil
		},
	}
	svc := newAuthService(p, repo)

	start := time.Now()
	res, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw", Remember: true})
	if err != nil {
		t.Fatalf("fallback sign-in failed: %v", err)
	}
	if res.Session != sess {
		t.Fatal("result should carry the fallback session")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("sign-in was not bounded, took %v", elapsed)
	}
}

func TestSignInHangWithoutSessionTimesOut(t *testing.T) {
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			time.Sleep(time.Second)
			return nil, nil, errors.New("too late")
		},
		getSession: func(ctx context.Context) (*entity.Session, *entity.Identity, error) {
			return nil, nil, identity.ErrNoSession
		},
	}
	svc := newAuthService(p, &mockRepo{})

	_, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw", Remember: true})
	if !errors.Is(err, ErrSignInTimeout) {
		t.Fatalf("expected ErrSignInTimeout, got %v", err)
	}
}

func TestSignInExpiredFallbackSessionTimesOut(t *testing.T) {
	expired := &entity.Session{AccessToken: "at", ExpiresAt: time.Now().Add(-time.Minute)}
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			time.Sleep(time.Second)
			return nil, nil, errors.New("too late")
		},
		getSession: func(ctx context.Context) (*entity.Session, *entity.Identity, error) {
			return expired, verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	svc := newAuthService(p, &mockRepo{})

	_, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw", Remember: true})
	if !errors.Is(err, ErrSignInTimeout) {
		t.Fatalf("an expired fallback session must not count, got %v", err)
	}
}

func TestSignInProfileFetchFailureIsNotFatal(t *testing.T) {
	p := &mockProvider{
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			return liveSession(), verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return nil, errors.New("db down")
		},
	}
	svc := newAuthService(p, repo)

	res, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw", Remember: true})
	if err != nil {
		t.Fatalf("sign-in must succeed without a profile: %v", err)
	}
	if res.Profile != nil {
		t.Fatal("profile should be absent when the fetch fails")
	}
}

func TestSignInWithoutRememberMarksTransient(t *testing.T) {
	var marked int32
	p := &mockProvider{
		setSessionPersistence: func(ctx context.Context, persistent bool) error {
			if !persistent {
				atomic.AddInt32(&marked, 1)
			}
			return nil
		},
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			return liveSession(), verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id}, nil
		},
	}
	svc := newAuthService(p, repo)

	if _, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw"}); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if atomic.LoadInt32(&marked) != 1 {
		t.Fatal("session should have been marked transient before the grant")
	}
}

func TestHangingPersistenceCallDoesNotBlockSignIn(t *testing.T) {
	p := &mockProvider{
		setSessionPersistence: func(ctx context.Context, persistent bool) error {
			time.Sleep(time.Second) // provider hangs on this call too
			return nil
		},
		signInWithPassword: func(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error) {
			return liveSession(), verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id}, nil
		},
	}
	svc := newAuthService(p, repo)

	start := time.Now()
	if _, err := svc.SignIn(context.Background(), SignInInput{Email: "u1@example.com", Password: "pw"}); err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("persistence call was not bounded, took %v", elapsed)
	}
}

func TestChangePasswordClearsFlagAndNotifies(t *testing.T) {
	var updated *entity.Profile
	p := &mockProvider{
		updateUser: func(ctx context.Context, attrs identity.UserAttributes) (*entity.Identity, error) {
			if attrs.Password == nil || *attrs.Password == "" {
				t.Fatal("password attribute must be set")
			}
			return verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id, Name: "Ada", Email: "u1@example.com", RequiresPasswordChange: true}, nil
		},
		update: func(ctx context.Context, prof *entity.Profile) error {
			updated = prof
			return nil
		},
	}
	svc := newAuthService(p, repo)

	var got notify.PasswordChangedRequest
	done := make(chan error, 1)
	svc.Notifier = &mockNotifier{
		sendPasswordChanged: func(ctx context.Context, req notify.PasswordChangedRequest) error {
			got = req
			return nil
		},
	}
	svc.NotifyDone = func(userID string, err error) { done <- err }

	if err := svc.ChangePassword(context.Background(), "u1", "newpassword1"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if updated == nil || updated.RequiresPasswordChange {
		t.Fatal("requires_password_change should be cleared and persisted")
	}
	if updated.PasswordChangedAt == nil {
		t.Fatal("password_changed_at should be stamped")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("notice failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the password-changed notice")
	}
	if got.UserID != "u1" || got.Email != "u1@example.com" {
		t.Fatalf("unexpected notice payload: %+v", got)
	}
}

func TestChangePasswordPersistFailureSurfaces(t *testing.T) {
	p := &mockProvider{
		updateUser: func(ctx context.Context, attrs identity.UserAttributes) (*entity.Identity, error) {
			return verifiedIdentity("u1", "u1@example.com"), nil
		},
	}
	var notices int32
	repo := &mockRepo{
		getByID: func(ctx context.Context, id string) (*entity.Profile, error) {
			return &entity.Profile{ID: id, Email: "u1@example.com"}, nil
		},
		update: func(ctx context.Context, prof *entity.Profile) error {
			return errors.New("db down")
		},
	}
	svc := newAuthService(p, repo)
	svc.Notifier = &mockNotifier{
		sendPasswordChanged: func(ctx context.Context, req notify.PasswordChangedRequest) error {
			atomic.AddInt32(&notices, 1)
			return nil
		},
	}

	if err := svc.ChangePassword(context.Background(), "u1", "newpassword1"); err == nil {
		t.Fatal("persist failure must surface")
	}
	if atomic.LoadInt32(&notices) != 0 {
		t.Fatal("no notice may be sent when the change did not persist")
	}
}
