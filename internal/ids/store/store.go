package store

import (
	"context"
	"errors"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrCodeAlreadyUsed means the authorization code was redeemed before.
	// The second redemption of a race loser reports this, never success.
	ErrCodeAlreadyUsed = errors.New("store: authorization code already used")

	// ErrCodeExpired means the code lapsed before anyone redeemed it.
	ErrCodeExpired = errors.New("store: authorization code expired")

	// ErrRefreshReused means a rotated refresh token was presented again.
	// The caller must revoke the whole family.
	ErrRefreshReused = errors.New("store: refresh token reused")

	// ErrStateConflict means a conditional update found the row in a
	// different state than expected, e.g. two requests driving one flow.
	ErrStateConflict = errors.New("store: state conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite)
// implement it. Sub-repositories keep concerns separated, and transactional
// work goes through WithTx so nested transactions cannot happen by accident.
type Store interface {
	Users() Users
	Clients() Clients
	Resources() Resources
	RefreshTokens() RefreshTokens
	AuthorizationCodes() AuthorizationCodes
	Consents() Consents
	Sessions() Sessions
	Flows() Flows
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn inside a transaction, committing on nil and
	// rolling back on error. Preferred over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the authorization flow login step.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is a ULID supplied by the app).
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// SetTOTP stores the sealed secret and the enrolment timestamp.
	SetTOTP(ctx context.Context, userID string, sealedSecret string, enabledAt time.Time) error

	// ClearTOTP removes the second factor.
	ClearTOTP(ctx context.Context, userID string) error

	SetDisabled(ctx context.Context, userID string, disabled bool) error

	// DeleteUser cascades to sessions, consents and refresh tokens.
	DeleteUser(ctx context.Context, userID string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by creation date, newest
	// first.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client. SecretHash is empty for public
	// clients.
	CreateClient(ctx context.Context, c domain.Client) error

	// UpdateClient replaces the mutable registration fields: name,
	// redirect URIs, grant types, scopes, PKCE requirement and TTL
	// overrides.
	UpdateClient(ctx context.Context, c domain.Client) error

	UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error

	// DeleteClient refuses protected clients and cascades to grants.
	DeleteClient(ctx context.Context, clientID string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Resources interface {
	GetResourceByName(ctx context.Context, name string) (domain.Resource, error)

	// ListResources returns the whole scope catalog.
	ListResources(ctx context.Context) ([]domain.Resource, error)

	CreateResource(ctx context.Context, r domain.Resource) error

	UpdateResourceScopes(ctx context.Context, resourceID string, scopes []string) error

	DeleteResource(ctx context.Context, resourceID string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// MarkRotated stamps rotated_at on an unrotated, unrevoked token.
	// When the row was already rotated or revoked it returns
	// ErrRefreshReused so concurrent rotations of the same token cannot
	// both succeed.
	MarkRotated(ctx context.Context, id string, at time.Time) error

	// RevokeRefreshToken flips revoked on a single token.
	RevokeRefreshToken(ctx context.Context, id string) error

	// RevokeFamily revokes every token descended from one grant. Used
	// when reuse is detected and on logout.
	RevokeFamily(ctx context.Context, familyID string) error

	// RevokeAllForSession revokes tokens bound to an ended session.
	RevokeAllForSession(ctx context.Context, sessionID string) error

	RevokeAllForUserClient(ctx context.Context, userID, clientID string) error

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error
}

type AuthorizationCodes interface {
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// ConsumeAuthorizationCode redeems a code by fingerprint, atomically.
	// Exactly one concurrent caller wins; the rest see ErrCodeAlreadyUsed
	// together with the stored record, so replay handling can revoke what
	// the winner was granted. An unredeemed code past its expiry reports
	// ErrCodeExpired and an unknown fingerprint ErrNotFound.
	ConsumeAuthorizationCode(ctx context.Context, hash string, now time.Time) (domain.AuthorizationCode, error)

	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) error
}

type Consents interface {
	// GetConsent returns the consent a user granted a client.
	GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error)

	// UpsertConsent records or replaces the granted scope set.
	UpsertConsent(ctx context.Context, c domain.Consent) error

	// DeleteConsent withdraws a grant, forcing the prompt on next use.
	DeleteConsent(ctx context.Context, userID, clientID string) error

	// DeleteConsentsForClient withdraws every grant for a client, used when
	// the client's allowed scope set changes.
	DeleteConsentsForClient(ctx context.Context, clientID string) error

	DeleteExpiredConsents(ctx context.Context, now time.Time) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	GetSession(ctx context.Context, id string) (domain.Session, error)

	// TouchSession slides the idle deadline forward. The absolute deadline
	// never moves.
	TouchSession(ctx context.Context, id string, idleDeadline time.Time) error

	RevokeSession(ctx context.Context, id string, at time.Time) error

	RevokeAllUserSessions(ctx context.Context, userID string, at time.Time) error

	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

type Flows interface {
	CreateFlow(ctx context.Context, f domain.Flow) error

	GetFlow(ctx context.Context, id string) (domain.Flow, error)

	// TransitionFlow updates a flow only while it is still in fromState.
	// A row found in any other state reports ErrStateConflict, so two
	// requests cannot drive the same flow past one interaction.
	TransitionFlow(ctx context.Context, f domain.Flow, fromState string) error

	DeleteExpiredFlows(ctx context.Context, now time.Time) error
}

type SigningKeys interface {
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListAllSigningKeys returns every stored key, newest first, expired
	// and retired ones included.
	ListAllSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// RetireSigningKey stops a key from signing while leaving it
	// verifiable until its window lapses.
	RetireSigningKey(ctx context.Context, kid string, at time.Time) error

	DeleteSigningKeyByKid(ctx context.Context, kid string) error

	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) error
}
