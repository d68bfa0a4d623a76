package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/identity"
	"github.com/prasatya/authflow/internal/notify"
)

// Listener drives store transitions and welcome-notification dispatch
// from provider auth events. Subscribe Handle to the provider client.
type Listener struct {
	Store    *Store
	Ledger   *notify.Ledger
	Notifier notify.Notifier
	Logger   *logrus.Logger

	DashboardURL string
	SupportURL   string

	// DispatchDone, when set, is called after a detached welcome
	// dispatch has settled the ledger. Production leaves it nil; tests
	// use it to wait for detached sends instead of sleeping.
	DispatchDone func(userID string, err error)
}

func NewListener(store *Store, ledger *notify.Ledger, notifier notify.Notifier, logger *logrus.Logger, dashboardURL, supportURL string) *Listener {
	return &Listener{
		Store:        store,
		Ledger:       ledger,
		Notifier:     notifier,
		Logger:       logger,
		DashboardURL: dashboardURL,
		SupportURL:   supportURL,
	}
}

// Handle applies one auth event. Any failure fetching the profile is
// absorbed inside the store (profile stays absent); nothing here
// propagates an error back into the event stream.
func (l *Listener) Handle(ctx context.Context, ev identity.Event) {
	switch ev.Kind {
	case identity.EventSessionLoaded:
		l.Store.ApplyEvent(ev)
		if ev.Identity != nil {
			l.Store.RefreshProfile(ctx)
		}
		// Initial load is the sign-in-equivalent path: a rehydrated
		// verified identity may still be owed its welcome.
		l.maybeSendWelcome(ev.Identity)

	case identity.EventSignedIn:
		l.Store.ApplyEvent(ev)
		if ev.Identity != nil {
			l.Store.RefreshProfile(ctx)
		}
		// No eligibility check here: the initial session load already
		// evaluated this session, and re-checking before the ledger
		// settles could dispatch twice.

	case identity.EventUserUpdated:
		l.Store.ApplyEvent(ev)
		if ev.Identity != nil {
			l.Store.RefreshProfile(ctx)
		}
		// Primary path for "email just got verified".
		l.maybeSendWelcome(ev.Identity)

	case identity.EventTokenRefreshed:
		// Fires hourly; never evaluated for notifications.
		l.Store.ApplyEvent(ev)

	case identity.EventSignedOut:
		l.Store.ApplyEvent(ev)

	default:
		if l.Logger != nil {
			l.Logger.WithField("kind", ev.Kind).Warn("unhandled auth event kind")
		}
	}
}

// maybeSendWelcome evaluates eligibility and, when eligible, marks the
// user in flight and starts a detached dispatch. The check and the
// in-flight mark are a single synchronous step (Ledger.Begin) with no
// suspension point between them, which is what prevents two handlers
// racing the same user id from both dispatching.
func (l *Listener) maybeSendWelcome(ident *entity.Identity) {
	if ident == nil || !ident.EmailVerified() || ident.Email == "" {
		return
	}
	if !l.Ledger.Begin(ident.ID) {
		return
	}
	req := notify.WelcomeRequest{
		UserID:       ident.ID,
		Email:        ident.Email,
		Name:         l.displayName(ident),
		DashboardURL: l.DashboardURL,
		SupportURL:   l.SupportURL,
	}
	go l.dispatchWelcome(req)
}

// dispatchWelcome runs detached from the triggering event handler: its
// completion talks to the world only through the ledger. It uses a
// fresh context on purpose: the dispatch must be allowed to finish
// (and settle the ledger) even after the triggering handler returned.
func (l *Listener) dispatchWelcome(req notify.WelcomeRequest) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("welcome dispatch panic: %v", r)
		}
		l.Ledger.Finish(req.UserID, err == nil)
		if l.Logger != nil {
			entry := l.Logger.WithField("user_id", req.UserID)
			if err != nil {
				entry.WithError(err).Warn("welcome notification failed")
			} else {
				entry.Info("welcome notification sent")
			}
		}
		if l.DispatchDone != nil {
			l.DispatchDone(req.UserID, err)
		}
	}()
	err = l.Notifier.SendWelcome(context.Background(), req)
}

func (l *Listener) displayName(ident *entity.Identity) string {
	if p := l.Store.Snapshot().Profile; p != nil && p.Name != "" {
		return p.Name
	}
	if ident.Metadata != nil {
		if name, ok := ident.Metadata["name"].(string); ok && name != "" {
			return name
		}
	}
	return ident.Email
}
