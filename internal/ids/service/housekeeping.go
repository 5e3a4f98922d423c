package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nobcorp/nobids/internal/ids/store"
)

// KeyPruner removes signing keys whose verification window lapsed. The
// persistent key manager implements it; ephemeral deployments pass nil.
type KeyPruner interface {
	PruneExpired(ctx context.Context, now time.Time) ([]string, error)
}

// HousekeepingService periodically deletes expired records: authorization
// codes, refresh tokens, flows, sessions, consents and signing keys. Each
// sweep runs independently so one failure never blocks the others, and no
// sweep holds a lock a foreground request needs.
type HousekeepingService struct {
	Store    store.Store
	Keys     KeyPruner
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService builds the cleanup worker. A non-positive interval
// defaults to 5 minutes.
func NewHousekeepingService(st store.Store, keys KeyPruner, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HousekeepingService{
		Store:    st,
		Keys:     keys,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down, waiting for an in-progress sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	sweeps := []struct {
		name string
		fn   func(context.Context, time.Time) error
	}{
		{"authorization_codes", s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes},
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
		{"flows", s.Store.Flows().DeleteExpiredFlows},
		{"sessions", s.Store.Sessions().DeleteExpiredSessions},
		{"consents", s.Store.Consents().DeleteExpiredConsents},
	}

	for _, sw := range sweeps {
		if err := sw.fn(ctx, now); err != nil {
			s.Logger.Error("housekeeping sweep failed", "sweep", sw.name, "error", err)
		}
	}

	if s.Keys != nil {
		pruned, err := s.Keys.PruneExpired(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping sweep failed", "sweep", "signing_keys", "error", err)
		} else if len(pruned) > 0 {
			s.Logger.Info("pruned expired signing keys", "kids", pruned)
		}
	}

	s.Logger.Debug("housekeeping sweep completed")
}
