// Package blacklist answers "is this identity currently suspended" over
// time-bounded ban entries. Bans are keyed by whichever identity
// moderation captured: a display name, a device id, or both.
package blacklist

import (
	"context"
	"log/slog"
	"time"

	"github.com/neversayno/match-backend/internal/cache"
	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/repository"
)

type Service struct {
	repo  *repository.BlacklistRepository
	cache *cache.RedisCache
	log   *slog.Logger
	now   func() time.Time
}

func NewService(repo *repository.BlacklistRepository, rc *cache.RedisCache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: rc, log: log, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ActiveIdentities returns every identity string with an active ban:
// reported user names and device ids mixed in one list, the shape the
// selector consumes. Cache-first with a short TTL so expiring bans lift
// promptly.
func (s *Service) ActiveIdentities(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		if ids, found, err := s.cache.GetActiveBlacklist(ctx); err == nil && found {
			return ids, nil
		}
	}

	entries, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		if e.DeviceID != "" {
			ids = append(ids, e.DeviceID)
		}
		if e.ReportedUserName != "" {
			ids = append(ids, e.ReportedUserName)
		}
	}

	if s.cache != nil {
		if err := s.cache.SetActiveBlacklist(ctx, ids); err != nil {
			s.log.Debug("blacklist cache set failed", "err", err)
		}
	}
	return ids, nil
}

// IdentitySet returns the active identities as a lookup set.
func (s *Service) IdentitySet(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.ActiveIdentities(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// IsBanned checks candidate identity strings (typically display name and
// device id) against active bans and returns the first match.
func (s *Service) IsBanned(ctx context.Context, candidates []string) (bool, string, error) {
	set, err := s.IdentitySet(ctx)
	if err != nil {
		return false, "", err
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := set[c]; ok {
			return true, c, nil
		}
	}
	return false, "", nil
}

// ExpiryFor returns the active ban expiry for an identity, for the
// client's countdown display. Always reads the store: the countdown must
// not lag behind the cache TTL.
func (s *Service) ExpiryFor(ctx context.Context, identity string) (time.Time, bool, error) {
	return s.repo.ActiveExpiry(ctx, identity, s.now())
}

// Ban suspends a subject for the given duration and invalidates the
// cached identity list so the ban takes effect immediately.
func (s *Service) Ban(ctx context.Context, reportedUserName, deviceID, reason string, duration time.Duration) (*db.BlacklistEntry, error) {
	entry := &db.BlacklistEntry{
		ReportedUserName: reportedUserName,
		DeviceID:         deviceID,
		Reason:           reason,
		ExpiresAt:        s.now().Add(duration),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateBlacklist(ctx); err != nil {
			s.log.Debug("blacklist cache invalidate failed", "err", err)
		}
	}
	s.log.Info("banned subject", "name", reportedUserName, "device", deviceID, "expires_at", entry.ExpiresAt)
	return entry, nil
}
