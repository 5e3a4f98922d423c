package service

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// ErrSessionInvalid means the session is unknown, revoked or past a
// deadline. Callers treat it as "log in again".
var ErrSessionInvalid = errors.New("session invalid")

// sessionCacheTTL bounds how stale a cached session may be. Revocations
// delete the cache entry directly, so this only covers cross-instance skew.
const sessionCacheTTL = 30 * time.Second

// SessionService manages end-user sessions and recorded consent. Reads go
// through a small TTL cache so the hot ResolveSession path stays off the
// database.
type SessionService struct {
	Store store.Store

	// IdleTTL slides forward on every resolve. AbsoluteTTL is fixed at
	// session creation and never moves.
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration

	// ConsentTTL bounds recorded consent. Zero means consent never expires.
	ConsentTTL time.Duration

	cache *ttlcache.Cache[string, domain.Session]
}

// NewSessionService builds a session manager and starts its cache janitor.
// Call Stop when shutting down.
func NewSessionService(st store.Store, idleTTL, absoluteTTL, consentTTL time.Duration) *SessionService {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if absoluteTTL <= 0 {
		absoluteTTL = 12 * time.Hour
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, domain.Session](sessionCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, domain.Session](),
	)
	go cache.Start()

	return &SessionService{
		Store:       st,
		IdleTTL:     idleTTL,
		AbsoluteTTL: absoluteTTL,
		ConsentTTL:  consentTTL,
		cache:       cache,
	}
}

// Stop halts the cache janitor.
func (s *SessionService) Stop() {
	s.cache.Stop()
}

// CreateSession starts a session for an authenticated user.
func (s *SessionService) CreateSession(ctx context.Context, userID string, amr []string, authTime time.Time) (domain.Session, error) {
	now := time.Now().UTC()
	session := domain.Session{
		ID:               idx.New().String(),
		UserID:           userID,
		AMR:              dedupe(amr),
		AuthTime:         authTime.UTC(),
		IdleDeadline:     now.Add(s.IdleTTL),
		AbsoluteDeadline: now.Add(s.AbsoluteTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Store.Sessions().CreateSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.cache.Set(session.ID, session, ttlcache.DefaultTTL)
	return session, nil
}

// ResolveSession returns an active session and slides its idle deadline.
// Anything not resolvable to an active session reports ErrSessionInvalid.
func (s *SessionService) ResolveSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, ErrSessionInvalid
	}
	now := time.Now().UTC()

	if item := s.cache.Get(sessionID); item != nil {
		session := item.Value()
		if session.Active(now) {
			return session, nil
		}
		s.cache.Delete(sessionID)
	}

	session, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionInvalid
		}
		return domain.Session{}, err
	}
	if !session.Active(now) {
		return domain.Session{}, ErrSessionInvalid
	}

	session.IdleDeadline = now.Add(s.IdleTTL)
	if err := s.Store.Sessions().TouchSession(ctx, sessionID, session.IdleDeadline); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionInvalid
		}
		return domain.Session{}, err
	}

	s.cache.Set(sessionID, session, ttlcache.DefaultTTL)
	return session, nil
}

// RevokeSession ends a session and every refresh token bound to it.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().RevokeSession(ctx, sessionID, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllForSession(ctx, sessionID)
	})
	if err != nil {
		return err
	}

	s.cache.Delete(sessionID)
	l.Info("session revoked", "session_id", sessionID)
	return nil
}

// RevokeAllUserSessions ends every session a user holds, e.g. on account
// compromise.
func (s *SessionService) RevokeAllUserSessions(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	if err := s.Store.Sessions().RevokeAllUserSessions(ctx, userID, now); err != nil {
		return err
	}
	s.cache.DeleteAll()
	return nil
}

// HasValidConsent reports whether the user's recorded consent for the
// client still covers every requested scope.
func (s *SessionService) HasValidConsent(ctx context.Context, userID, clientID string, scopes []string) (bool, error) {
	consent, err := s.Store.Consents().GetConsent(ctx, userID, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return consent.Covers(scopes, time.Now().UTC()), nil
}

// RecordConsent stores the accepted scope set, replacing any prior grant.
func (s *SessionService) RecordConsent(ctx context.Context, userID, clientID string, scopes []string) error {
	now := time.Now().UTC()
	consent := domain.Consent{
		ID:        idx.New().String(),
		UserID:    userID,
		ClientID:  clientID,
		Scopes:    dedupe(scopes),
		GrantedAt: now,
	}
	if s.ConsentTTL > 0 {
		expires := now.Add(s.ConsentTTL)
		consent.ExpiresAt = &expires
	}
	return s.Store.Consents().UpsertConsent(ctx, consent)
}

// RevokeConsent withdraws a user's grant for a client.
func (s *SessionService) RevokeConsent(ctx context.Context, userID, clientID string) error {
	err := s.Store.Consents().DeleteConsent(ctx, userID, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
