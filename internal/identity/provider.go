package identity

import (
	"context"

	"github.com/prasatya/authflow/internal/domain/entity"
)

// UserAttributes is a partial update of the provider user record. Nil
// fields are left untouched.
type UserAttributes struct {
	Email    *string        `json:"email,omitempty"`
	Password *string        `json:"password,omitempty"`
	Metadata map[string]any `json:"data,omitempty"`
}

// Provider is the boundary with the external identity service. All
// session tokens and credentials live on the provider side; this
// service only observes them.
//
// Implementations emit Events to subscribers as a side effect of the
// calls below (and of background token refresh). Subscribers are
// invoked synchronously, one event at a time, so a handler observes
// events in emission order.
type Provider interface {
	// Rehydrate fetches the current session once at startup and emits
	// SESSION_LOADED (with nil session/identity when nobody is logged
	// in). An error here means the provider is unreachable, which is
	// fatal for session-dependent parts of the application.
	Rehydrate(ctx context.Context) error

	// GetSession returns the current session and identity without
	// emitting an event. Used as the fallback arm of the bounded
	// sign-in call.
	GetSession(ctx context.Context) (*entity.Session, *entity.Identity, error)

	// SignInWithPassword performs the password grant and emits
	// SIGNED_IN on success.
	SignInWithPassword(ctx context.Context, email, password string) (*entity.Session, *entity.Identity, error)

	// SignOut destroys the session and emits SIGNED_OUT.
	SignOut(ctx context.Context) error

	// UpdateUser applies a partial update to the provider user record
	// and emits USER_UPDATED with the refreshed identity.
	UpdateUser(ctx context.Context, attrs UserAttributes) (*entity.Identity, error)

	// RequestPasswordReset asks the provider to email a recovery link.
	RequestPasswordReset(ctx context.Context, email string) error

	// SetSessionPersistence marks the current session persistent or
	// transient. Best-effort; callers bound it with a short timeout.
	SetSessionPersistence(ctx context.Context, persistent bool) error

	// Subscribe registers an event handler and returns an unsubscribe
	// function.
	Subscribe(fn func(Event)) (unsubscribe func())
}
