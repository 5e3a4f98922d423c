package service

import (
	"slices"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/pkg/jwtx"
)

// Keyring is the signing surface the issuer needs. Both the ephemeral and
// the persistent key manager satisfy it.
type Keyring interface {
	ActiveSigner() (jwtx.Signer, error)
	Verifier() jwtx.Verifier
	KeySet() *jwtx.KeySet
	Algorithm() string
}

// TokenPolicy is the global lifetime policy. Per-client overrides apply on
// top but are always clamped by the ceilings.
type TokenPolicy struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration

	// Ceilings cap per-client overrides. Zero means the default TTL is
	// also the ceiling.
	MaxAccessTokenTTL  time.Duration
	MaxRefreshTokenTTL time.Duration
}

// AccessTTL returns the effective access-token lifetime for a client.
func (p TokenPolicy) AccessTTL(client domain.Client) time.Duration {
	return clampTTL(client.AccessTokenTTL, p.AccessTokenTTL, p.MaxAccessTokenTTL)
}

// RefreshTTL returns the effective refresh-token lifetime for a client.
func (p TokenPolicy) RefreshTTL(client domain.Client) time.Duration {
	return clampTTL(client.RefreshTokenTTL, p.RefreshTokenTTL, p.MaxRefreshTokenTTL)
}

// IDTTL returns the effective ID-token lifetime for a client.
func (p TokenPolicy) IDTTL(client domain.Client) time.Duration {
	return clampTTL(client.IDTokenTTL, p.IDTokenTTL, 0)
}

func clampTTL(override, fallback, ceiling time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = jwtx.DefaultAccessTokenTTL
	}
	if ceiling <= 0 {
		ceiling = fallback
	}
	ttl := override
	if ttl <= 0 {
		ttl = fallback
	}
	return min(ttl, ceiling)
}

// DefaultTokenPolicy returns the stock lifetimes: access 15m, refresh 7d,
// ID 15m, with ceilings of 1h and 30d on per-client overrides.
func DefaultTokenPolicy() TokenPolicy {
	return TokenPolicy{
		AccessTokenTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTokenTTL:    jwtx.DefaultRefreshTokenTTL,
		IDTokenTTL:         jwtx.DefaultIDTokenTTL,
		MaxAccessTokenTTL:  time.Hour,
		MaxRefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

// Issuer mints signed tokens. It never touches the grant store; callers
// persist whatever opaque counterparts a grant needs.
type Issuer struct {
	Keyring Keyring
	Issuer  string
	Policy  TokenPolicy
}

// IssueRequest captures everything the issuer signs into a token set.
type IssueRequest struct {
	Subject   string
	Client    domain.Client
	SessionID string
	Scopes    []string
	AMR       []string

	// ID-token fields, used when the "openid" scope was granted.
	Nonce    string
	AuthTime time.Time
}

// IssueAccessToken signs an access token for the request.
func (i *Issuer) IssueAccessToken(req IssueRequest, now time.Time) (string, error) {
	signer, err := i.Keyring.ActiveSigner()
	if err != nil {
		return "", err
	}
	claims := jwtx.NewAccessClaims(
		req.Subject,
		req.SessionID,
		req.Scopes,
		req.AMR,
		i.Policy.AccessTTL(req.Client),
		i.Issuer,
		[]string{req.Client.ID},
		now,
	)
	return signer.Sign(claims)
}

// IssueIDToken signs an OpenID Connect ID token. Returns the empty string
// without error when the grant does not include the "openid" scope.
func (i *Issuer) IssueIDToken(req IssueRequest, now time.Time) (string, error) {
	if !slices.Contains(req.Scopes, "openid") {
		return "", nil
	}
	signer, err := i.Keyring.ActiveSigner()
	if err != nil {
		return "", err
	}
	claims := jwtx.NewIDClaims(
		req.Subject,
		req.SessionID,
		req.Nonce,
		req.AuthTime,
		i.Policy.IDTTL(req.Client),
		i.Issuer,
		[]string{req.Client.ID},
		now,
	)
	return signer.Sign(claims)
}
