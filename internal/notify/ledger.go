package notify

import "sync"

// Ledger tracks which user ids have a welcome notification in flight or
// already sent, for the lifetime of this process. It is intentionally
// not persisted: a restart permits a resend, which is an accepted
// tradeoff for a best-effort notification.
//
// A user id is in at most one of the two sets at any time. The only
// mutations are Begin and Finish; no other code may touch the sets.
type Ledger struct {
	mu       sync.Mutex
	sent     map[string]struct{}
	inFlight map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		sent:     map[string]struct{}{},
		inFlight: map[string]struct{}{},
	}
}

// Begin atomically checks eligibility and marks the user id in flight.
// It returns false when a dispatch for this id is already in flight or
// has already succeeded. The check and the mark happen under one lock
// acquisition: two callers racing on the same id can never both get
// true.
func (l *Ledger) Begin(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sent[userID]; ok {
		return false
	}
	if _, ok := l.inFlight[userID]; ok {
		return false
	}
	l.inFlight[userID] = struct{}{}
	return true
}

// Finish settles an in-flight dispatch. Delivered moves the id to sent;
// failure returns it to untracked so a later eligible event can retry.
func (l *Ledger) Finish(userID string, delivered bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, userID)
	if delivered {
		l.sent[userID] = struct{}{}
	}
}

// Sent reports whether a dispatch for the user id has succeeded.
func (l *Ledger) Sent(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[userID]
	return ok
}

// InFlight reports whether a dispatch for the user id is running.
func (l *Ledger) InFlight(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inFlight[userID]
	return ok
}
