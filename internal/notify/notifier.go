package notify

import "context"

// WelcomeRequest is the immutable payload for a one-shot welcome
// notification, constructed once per dispatch attempt.
type WelcomeRequest struct {
	UserID       string
	Email        string
	Name         string
	DashboardURL string
	SupportURL   string
}

// AccountUpdateRequest carries the list of profile fields that changed.
type AccountUpdateRequest struct {
	UserID        string
	Email         string
	Name          string
	ChangedFields []string
}

// PasswordChangedRequest is the security notice sent after a password
// change completes.
type PasswordChangedRequest struct {
	UserID string
	Email  string
	Name   string
}

// Notifier delivers transactional notifications. Sends are best-effort
// from the caller's perspective: failures are reported as errors to the
// dispatching goroutine and logged, never surfaced to end users.
type Notifier interface {
	SendWelcome(ctx context.Context, req WelcomeRequest) error
	SendAccountUpdate(ctx context.Context, req AccountUpdateRequest) error
	SendPasswordChanged(ctx context.Context, req PasswordChangedRequest) error
}
