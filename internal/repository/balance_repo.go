package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/neversayno/match-backend/internal/db"
)

// BalanceRepository persists diamond balances keyed by (user, login type).
// The in-process ledger is authoritative for the current session; rows
// here are the eventually consistent mirror.
type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(database *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: database}
}

// Get returns the stored balance, or found=false if the user has none yet.
func (r *BalanceRepository) Get(ctx context.Context, userID, loginType string) (int64, bool, error) {
	var row db.DiamondBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND login_type = ?", userID, loginType).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.Diamonds, true, nil
}

// Set upserts the balance for (userID, loginType).
func (r *BalanceRepository) Set(ctx context.Context, userID, loginType string, diamonds int64) error {
	row := db.DiamondBalance{
		UserID:    userID,
		LoginType: loginType,
		Diamonds:  diamonds,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "login_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"diamonds", "updated_at"}),
		}).
		Create(&row).Error
}
