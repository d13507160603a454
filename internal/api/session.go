package api

import (
	"fmt"
	"sync"
)

// Account types sent in the Account-Type header.
const (
	AccountTypeManager = "manager"
	AccountTypeViewer  = "viewer"
)

// Session is the bearer token and account type of a logged-in caller.
type Session struct {
	Token       string
	AccountType string
}

// String redacts the token so sessions are safe to log.
func (s Session) String() string {
	return fmt.Sprintf("Session{AccountType: %q, Token: [redacted]}", s.AccountType)
}

// GoString redacts the token for %#v.
func (s Session) GoString() string {
	return s.String()
}

// sessionStore holds zero or one Session shared by every call on a Client.
type sessionStore struct {
	mu      sync.RWMutex
	current *Session
}

// read returns a copy of the current session.
func (s *sessionStore) read() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// write replaces the slot. A nil session clears it.
func (s *sessionStore) write(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.current = nil
		return
	}
	cp := *session
	s.current = &cp
}

// replaceToken swaps the token and keeps the account type.
// It does nothing when no session is stored.
func (s *sessionStore) replaceToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.Token = token
}
