package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/db"
)

// AccountRepository reads internal account credentials.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

func (r *AccountRepository) GetInternalAccount(ctx context.Context, username string) (*db.InternalAccount, error) {
	var acc db.InternalAccount
	if err := r.db.WithContext(ctx).First(&acc, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}
