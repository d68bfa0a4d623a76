package entity

import "time"

// Session is the opaque provider session: a token pair plus expiry.
// Created on sign-in or page-load rehydration, destroyed on sign-out
// or expiry. Owned exclusively by the session store.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid tells if this session has not expired yet.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.ExpiresAt.After(time.Now())
}
