package domain

import "time"

// Consent records that a user granted a client a scope set. A new request is
// covered when its scopes are a subset of an unexpired consent; otherwise
// the consent prompt runs again and the accepted set replaces this record.
type Consent struct {
	ID        string
	UserID    string
	ClientID  string
	Scopes    []string
	GrantedAt time.Time
	ExpiresAt *time.Time // nil means no expiry
}

// Covers reports whether the consent includes every requested scope and has
// not lapsed.
func (c *Consent) Covers(scopes []string, now time.Time) bool {
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return false
	}
	have := make(map[string]struct{}, len(c.Scopes))
	for _, s := range c.Scopes {
		have[s] = struct{}{}
	}
	for _, s := range scopes {
		if _, ok := have[s]; !ok {
			return false
		}
	}
	return true
}
