package domain

import "time"

// PKCE challenge methods per RFC 7636.
const (
	CodeChallengeS256  = "S256"
	CodeChallengePlain = "plain"
)

// AuthorizationCode is a single-use code issued by a finished authorization
// flow. The code value itself is never stored, only its fingerprint.
type AuthorizationCode struct {
	ID                  string
	UserID              string
	ClientID            string
	CodeHash            string // base64url SHA-256 fingerprint
	RedirectURI         string
	Scopes              []string
	SessionID           string
	AMR                 []string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	AuthTime            time.Time
	ExpiresAt           time.Time
	UsedAt              *time.Time
	CreatedAt           time.Time
}
