package attendance

import (
	"context"
	"time"
)

// Session is the authenticated state produced by a successful login.
// Cookie values stay in the transport's jar; only their names are kept here.
type Session struct {
	SessKey       string // Moodle anti-forgery key for state-changing requests
	Cookies       []string
	Authenticated bool
	EstablishedAt time.Time
	LandingURL    string
}

// Usable reports whether every token needed downstream is present.
func (s *Session) Usable() bool {
	return s != nil && s.Authenticated && s.SessKey != "" && len(s.Cookies) > 0
}

// Reauthenticate logs in again and returns the fresh session. The submitter
// receives one per run and may call it at most once.
type Reauthenticate func(ctx context.Context) (*Session, error)
