package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/utils/pagination"
)

// ReportRepository stores abuse reports and their moderation outcome.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

// Insert stores a new report and assigns its id.
func (r *ReportRepository) Insert(ctx context.Context, rec *db.ReportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// HasReported checks whether reporter already reported this user, used to
// reject duplicate reports.
func (r *ReportRepository) HasReported(ctx context.Context, reporterUserID, reportedUserID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.ReportRecord{}).
		Where("reporter_user_id = ? AND reported_user_id = ?", reporterUserID, reportedUserID).
		Count(&count).Error
	return count > 0, err
}

// ListByReporter returns all reports filed by one user, newest first.
func (r *ReportRepository) ListByReporter(ctx context.Context, reporterUserID string) ([]db.ReportRecord, error) {
	var records []db.ReportRecord
	err := r.db.WithContext(ctx).
		Where("reporter_user_id = ?", reporterUserID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get fetches one report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*db.ReportRecord, error) {
	var rec db.ReportRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListUnprocessed returns the open moderation queue with cursor-based
// pagination, oldest report first so the queue drains in order.
func (r *ReportRepository) ListUnprocessed(
	ctx context.Context,
	paginationToken *string,
	limit int,
) ([]db.ReportRecord, *string, error) {
	var records []db.ReportRecord

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	if cursor.ReportID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.ReportID,
		)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(records) > limit {
		last := records[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ReportID:    last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		records = records[:limit]
	}

	return records, nextToken, nil
}

// MarkProcessed records the moderation outcome on the report row.
func (r *ReportRepository) MarkProcessed(ctx context.Context, id, action string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.ReportRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":        true,
			"processed_action": action,
			"processed_at":     at,
		}).Error
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
