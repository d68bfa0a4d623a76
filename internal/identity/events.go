package identity

import "github.com/prasatya/authflow/internal/domain/entity"

// EventKind is the closed set of auth events emitted by the provider
// client. Handlers switch exhaustively on it; an unknown kind is a bug
// in this package, not something to ignore silently.
type EventKind int

const (
	// EventSessionLoaded fires once at startup with the rehydrated
	// session, if any.
	EventSessionLoaded EventKind = iota
	// EventSignedIn fires after a successful interactive sign-in.
	EventSignedIn
	// EventSignedOut fires when the session is destroyed.
	EventSignedOut
	// EventUserUpdated fires when the provider user record changes
	// (email verification included).
	EventUserUpdated
	// EventTokenRefreshed fires on background token rotation. Hourly in
	// practice; carries no new information about the user.
	EventTokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventSessionLoaded:
		return "SESSION_LOADED"
	case EventSignedIn:
		return "SIGNED_IN"
	case EventSignedOut:
		return "SIGNED_OUT"
	case EventUserUpdated:
		return "USER_UPDATED"
	case EventTokenRefreshed:
		return "TOKEN_REFRESHED"
	}
	return "UNKNOWN"
}

// Event is a single auth-state change. Session and Identity are nil for
// signed-out states.
type Event struct {
	Kind     EventKind
	Session  *entity.Session
	Identity *entity.Identity
}
