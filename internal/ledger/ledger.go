// Package ledger tracks per-user diamond balances. The in-process value
// is the source of truth for the session; every mutation is mirrored
// best-effort to the record store and the balance cache.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neversayno/match-backend/internal/identity"
)

// Store is the persistence mirror for balances.
type Store interface {
	Get(ctx context.Context, userID, loginType string) (int64, bool, error)
	Set(ctx context.Context, userID, loginType string, diamonds int64) error
}

// Cache is the balance cache, consulted before the store on first load
// and updated on every mutation. Optional.
type Cache interface {
	GetBalance(ctx context.Context, userID, loginType string) (int64, bool, error)
	UpdateBalance(ctx context.Context, userID, loginType string, diamonds int64) error
}

type entry struct {
	mu       sync.Mutex
	loaded   bool
	diamonds int64
}

// Ledger holds balances keyed by (userID, loginType). Debit is
// check-then-act atomic per key: concurrent attempts against the same
// identity serialize on the entry lock, so a double-tap can never spend
// the same diamond twice.
type Ledger struct {
	store Store
	cache Cache
	log   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func New(store Store, cache Cache, log *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		cache:   cache,
		log:     log,
		entries: make(map[string]*entry),
	}
}

func key(userID string, loginType identity.LoginType) string {
	return loginType.String() + "|" + userID
}

func (l *Ledger) entryFor(k string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		e = &entry{}
		l.entries[k] = e
	}
	return e
}

// load populates the entry on first touch, cache first, then the store.
// A user known to neither starts at zero. Cache errors fall through to
// the store.
func (l *Ledger) load(ctx context.Context, e *entry, userID string, loginType identity.LoginType) error {
	if e.loaded {
		return nil
	}
	lt := loginType.String()
	if l.cache != nil {
		if diamonds, found, err := l.cache.GetBalance(ctx, userID, lt); err == nil && found {
			e.diamonds = diamonds
			e.loaded = true
			return nil
		}
	}
	diamonds, found, err := l.store.Get(ctx, userID, lt)
	if err != nil {
		return err
	}
	if found {
		e.diamonds = diamonds
	}
	e.loaded = true
	return nil
}

// mirror pushes the new balance to the store and cache, best effort.
func (l *Ledger) mirror(ctx context.Context, userID string, loginType identity.LoginType, diamonds int64) {
	lt := loginType.String()
	if err := l.store.Set(ctx, userID, lt, diamonds); err != nil {
		l.log.Warn("balance mirror failed", "user", userID, "login_type", lt, "err", err)
	}
	if l.cache != nil {
		if err := l.cache.UpdateBalance(ctx, userID, lt, diamonds); err != nil {
			l.log.Debug("balance cache update failed", "user", userID, "err", err)
		}
	}
}

// Balance returns the current balance, lazily initializing to the stored
// value (or zero) on first query.
func (l *Ledger) Balance(ctx context.Context, userID string, loginType identity.LoginType) (int64, error) {
	e := l.entryFor(key(userID, loginType))
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := l.load(ctx, e, userID, loginType); err != nil {
		return 0, err
	}
	return e.diamonds, nil
}

// Debit removes amount iff the balance covers it. Returns ok=false and
// leaves the balance untouched when funds are insufficient.
func (l *Ledger) Debit(ctx context.Context, userID string, loginType identity.LoginType, amount int64) (bool, error) {
	e := l.entryFor(key(userID, loginType))
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := l.load(ctx, e, userID, loginType); err != nil {
		return false, err
	}
	if e.diamonds < amount {
		return false, nil
	}
	e.diamonds -= amount
	l.mirror(ctx, userID, loginType, e.diamonds)
	return true, nil
}

// Credit adds amount unconditionally (recharge) and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, userID string, loginType identity.LoginType, amount int64) (int64, error) {
	e := l.entryFor(key(userID, loginType))
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := l.load(ctx, e, userID, loginType); err != nil {
		return 0, err
	}
	e.diamonds += amount
	l.mirror(ctx, userID, loginType, e.diamonds)
	return e.diamonds, nil
}
