package domain

import "time"

// Session is an authenticated end-user browser session. It carries two
// deadlines: the idle deadline slides forward on activity, the absolute
// deadline never moves. Crossing either one ends the session.
type Session struct {
	ID               string
	UserID           string
	AMR              []string
	AuthTime         time.Time
	IdleDeadline     time.Time
	AbsoluteDeadline time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.IdleDeadline) && now.Before(s.AbsoluteDeadline)
}
