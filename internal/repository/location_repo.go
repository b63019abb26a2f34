package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/db"
)

// Records fetched per selection snapshot. Matches the page size the
// backing store served to the original client.
const locationFetchLimit = 1000

// LocationRepository provides data access for location check-ins.
// Records are append-only; there is no update path.
type LocationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new repository bound to the given DB connection.
func NewLocationRepository(database *gorm.DB) *LocationRepository {
	return &LocationRepository{db: database}
}

// Insert stores a new check-in and assigns its id.
func (r *LocationRepository) Insert(ctx context.Context, rec *db.LocationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ListAll returns the newest check-ins, most recent submission first.
// The result is the snapshot the candidate selector runs over.
func (r *LocationRepository) ListAll(ctx context.Context) ([]db.LocationRecord, error) {
	var records []db.LocationRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(locationFetchLimit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteAll wipes every check-in (maintenance bulk wipe).
func (r *LocationRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&db.LocationRecord{})
	return res.RowsAffected, res.Error
}
