package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/db"
)

// HistoryRepository stores per-requester match history. Entries are
// newest-first and capped; the oldest rows are dropped on append.
type HistoryRepository struct {
	db    *gorm.DB
	limit int
}

func NewHistoryRepository(database *gorm.DB, limit int) *HistoryRepository {
	if limit <= 0 {
		limit = 50
	}
	return &HistoryRepository{db: database, limit: limit}
}

// ListByKey returns the requester's history, newest match first.
func (r *HistoryRepository) ListByKey(ctx context.Context, requesterKey string) ([]db.MatchHistoryEntry, error) {
	var entries []db.MatchHistoryEntry
	err := r.db.WithContext(ctx).
		Where("requester_key = ?", requesterKey).
		Order("matched_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// PartnerUserIDs returns the distinct partner ids ever matched by this
// requester, the hard exclusion set for selection.
func (r *HistoryRepository) PartnerUserIDs(ctx context.Context, requesterKey string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.MatchHistoryEntry{}).
		Where("requester_key = ?", requesterKey).
		Distinct().
		Pluck("partner_user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Append inserts a new entry and truncates the requester's history to the
// cap, dropping the oldest rows.
func (r *HistoryRepository) Append(ctx context.Context, entry *db.MatchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	// Collect ids past the cap and delete them. Two statements are fine:
	// appends are serialized per requester by the match orchestration.
	var overflow []string
	err := r.db.WithContext(ctx).
		Model(&db.MatchHistoryEntry{}).
		Where("requester_key = ?", entry.RequesterKey).
		Order("matched_at DESC, id DESC").
		Offset(r.limit).
		Limit(r.limit).
		Pluck("id", &overflow).Error
	if err != nil {
		return err
	}
	if len(overflow) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", overflow).
		Delete(&db.MatchHistoryEntry{}).Error
}

// Remove deletes a single entry belonging to the requester.
func (r *HistoryRepository) Remove(ctx context.Context, requesterKey, entryID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("requester_key = ? AND id = ?", requesterKey, entryID).
		Delete(&db.MatchHistoryEntry{})
	return res.RowsAffected > 0, res.Error
}

// Clear wipes the requester's entire history.
func (r *HistoryRepository) Clear(ctx context.Context, requesterKey string) error {
	return r.db.WithContext(ctx).
		Where("requester_key = ?", requesterKey).
		Delete(&db.MatchHistoryEntry{}).Error
}
