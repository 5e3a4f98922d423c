package domain

import "time"

// Flow states. A flow starts pending authentication, may pass through
// pending consent, and ends completed, denied or expired. Completed flows
// carry the issued code's ID for audit.
const (
	FlowPendingAuthentication = "pending_authentication"
	FlowPendingConsent        = "pending_consent"
	FlowCompleted             = "completed"
	FlowDenied                = "denied"
	FlowExpired               = "expired"
)

// Flow is a suspended authorization request. The server-issued flow ID is
// the only correlation handle given out; all request parameters stay
// server-side so nothing can be tampered with between interactions.
type Flow struct {
	ID                  string
	State               string
	ClientID            string
	ResponseType        string // "code" or "token"
	RedirectURI         string
	Scopes              []string
	ClientState         string // the client's state parameter, echoed back
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Set once authentication completed.
	UserID    string
	SessionID string

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the flow's interaction window lapsed.
func (f *Flow) Expired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}
