// Package history keeps the requester-scoped record of past matches.
// Its only algorithmic role is exclusion: a partner matched once is never
// offered again until the requester clears history.
package history

import (
	"context"

	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/geo"
	"github.com/neversayno/match-backend/internal/repository"
)

type Service struct {
	repo *repository.HistoryRepository
}

func NewService(repo *repository.HistoryRepository) *Service {
	return &Service{repo: repo}
}

// ExclusionSet returns every partner user id this requester has ever
// matched (within the history cap).
func (s *Service) ExclusionSet(ctx context.Context, requesterKey string) (map[string]struct{}, error) {
	ids, err := s.repo.PartnerUserIDs(ctx, requesterKey)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Append records a successful match: an embedded snapshot of the partner
// record plus the requester's own position at match time. Oldest entries
// beyond the cap are dropped by the repository.
func (s *Service) Append(ctx context.Context, requesterKey string, partner db.LocationRecord, recordNumber int, requesterAt *geo.Coordinate) (*db.MatchHistoryEntry, error) {
	entry := &db.MatchHistoryEntry{
		RequesterKey: requesterKey,
		RecordNumber: recordNumber,

		PartnerRecordID:  partner.ID,
		PartnerUserID:    partner.UserID,
		PartnerUserName:  partner.UserName,
		PartnerUserEmail: partner.UserEmail,
		PartnerAvatar:    partner.UserAvatar,
		PartnerLoginType: partner.LoginType,
		PartnerDeviceID:  partner.DeviceID,
		PartnerLatitude:  partner.Latitude,
		PartnerLongitude: partner.Longitude,
		PartnerAccuracy:  partner.Accuracy,
		PartnerTimezone:  partner.TimezoneID,
		PartnerTime:      partner.DeviceTime,
	}
	if requesterAt != nil {
		lat, lon := requesterAt.Latitude, requesterAt.Longitude
		entry.RequesterLatitude = &lat
		entry.RequesterLongitude = &lon
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns the requester's history, newest first.
func (s *Service) List(ctx context.Context, requesterKey string) ([]db.MatchHistoryEntry, error) {
	return s.repo.ListByKey(ctx, requesterKey)
}

// Remove deletes one entry; reports whether it existed.
func (s *Service) Remove(ctx context.Context, requesterKey, entryID string) (bool, error) {
	return s.repo.Remove(ctx, requesterKey, entryID)
}

// Clear wipes the requester's history, reopening all past partners.
func (s *Service) Clear(ctx context.Context, requesterKey string) error {
	return s.repo.Clear(ctx, requesterKey)
}
