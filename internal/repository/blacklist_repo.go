package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/db"
)

// BlacklistRepository reads and writes time-bounded suspensions. Expired
// rows are never deleted here; "active" is always a read-time comparison
// against expires_at.
type BlacklistRepository struct {
	db *gorm.DB
}

func NewBlacklistRepository(database *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: database}
}

// ListActive returns entries whose expiry is still in the future.
func (r *BlacklistRepository) ListActive(ctx context.Context, now time.Time) ([]db.BlacklistEntry, error) {
	var entries []db.BlacklistEntry
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", now).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Insert stores a new suspension.
func (r *BlacklistRepository) Insert(ctx context.Context, entry *db.BlacklistEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ActiveExpiry returns the expiry of the newest active ban matching the
// given identity (display name or device id), or found=false.
func (r *BlacklistRepository) ActiveExpiry(ctx context.Context, identity string, now time.Time) (time.Time, bool, error) {
	var entry db.BlacklistEntry
	err := r.db.WithContext(ctx).
		Where("(reported_user_name = ? OR device_id = ?) AND expires_at > ?", identity, identity, now).
		Order("expires_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return entry.ExpiresAt, true, nil
}
