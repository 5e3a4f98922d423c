package domain

import "time"

// User is an end user who can authenticate through the authorization flow.
type User struct {
	ID            string
	Username      string
	PreferredName string
	PasswordHash  string     // argon2 encoded
	TOTPEnabled   *time.Time // when the second factor was enrolled, nil if none
	TOTPSecret    *string    // base32 TOTP secret, sealed at rest by the store
	Disabled      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
