package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/internal/domain/entity"
	"github.com/prasatya/authflow/internal/domain/repository"
	"github.com/prasatya/authflow/internal/identity"
)

// State is a point-in-time view of the authenticated session. Loading
// is true from process start until the first auth event of any kind has
// been applied, success or failure.
type State struct {
	Session  *entity.Session
	Identity *entity.Identity
	Profile  *entity.Profile
	Loading  bool
}

// Store is the single source of truth for "who is logged in and are we
// still figuring that out". All fields change together under one lock,
// so no reader ever observes a half-updated state.
//
// Invariant: Profile is non-nil only when Identity is non-nil.
type Store struct {
	profiles repository.ProfileRepository
	logger   *logrus.Logger

	mu    sync.Mutex
	state State
}

func NewStore(profiles repository.ProfileRepository, logger *logrus.Logger) *Store {
	return &Store{
		profiles: profiles,
		logger:   logger,
		state:    State{Loading: true},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ApplyEvent applies an auth event atomically: session and identity are
// assigned in a single critical section, loading flips to false, and
// the profile is dropped whenever the identity is gone.
func (s *Store) ApplyEvent(ev identity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Session = ev.Session
	s.state.Identity = ev.Identity
	s.state.Loading = false
	if ev.Identity == nil {
		s.state.Profile = nil
	}
}

// RefreshProfile re-fetches the profile for the current identity. A
// fetch failure is logged and leaves the profile absent; it is never an
// error for the caller. The UI stays usable without a profile.
//
// The fetch runs outside the lock, so the identity may change while it
// is in flight; a stale result for a different identity is discarded.
func (s *Store) RefreshProfile(ctx context.Context) {
	s.mu.Lock()
	ident := s.state.Identity
	s.mu.Unlock()

	if ident == nil {
		s.setProfile("", nil)
		return
	}

	p, err := s.profiles.GetByID(ctx, ident.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).WithField("user_id", ident.ID).Warn("profile fetch failed")
		}
		s.setProfile(ident.ID, nil)
		return
	}
	s.setProfile(ident.ID, p)
}

// setProfile assigns the profile only if the identity it was fetched
// for is still current. forID=="" clears unconditionally.
func (s *Store) setProfile(forID string, p *entity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if forID == "" {
		s.state.Profile = nil
		return
	}
	if s.state.Identity == nil || s.state.Identity.ID != forID {
		return
	}
	s.state.Profile = p
}
