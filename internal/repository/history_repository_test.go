package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/repository"
)

func historyEntry(key, partnerID string, at time.Time) *db.MatchHistoryEntry {
	return &db.MatchHistoryEntry{
		RequesterKey:  key,
		PartnerUserID: partnerID,
		MatchedAt:     at,
	}
}

func TestHistoryAppendCapsOldest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewHistoryRepository(setupTestDB(t), 3)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := repo.Append(ctx, historyEntry("apple_a@x.com", fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute)))
		assert.NoError(t, err)
	}

	entries, err := repo.ListByKey(ctx, "apple_a@x.com")
	assert.NoError(t, err)
	assert.Len(t, entries, 3)
	// Newest first; the two oldest were dropped.
	assert.Equal(t, "p4", entries[0].PartnerUserID)
	assert.Equal(t, "p3", entries[1].PartnerUserID)
	assert.Equal(t, "p2", entries[2].PartnerUserID)
}

func TestHistoryScopedByRequester(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewHistoryRepository(setupTestDB(t), 50)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, repo.Append(ctx, historyEntry("apple_a@x.com", "p1", at)))
	assert.NoError(t, repo.Append(ctx, historyEntry("internal_demo", "p2", at)))

	ids, err := repo.PartnerUserIDs(ctx, "apple_a@x.com")
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestHistoryPartnerIDsDistinct(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewHistoryRepository(setupTestDB(t), 50)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, repo.Append(ctx, historyEntry("k", "p1", at)))
	assert.NoError(t, repo.Append(ctx, historyEntry("k", "p1", at.Add(time.Minute))))

	ids, err := repo.PartnerUserIDs(ctx, "k")
	assert.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestHistoryRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewHistoryRepository(setupTestDB(t), 50)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	e1 := historyEntry("k", "p1", at)
	e2 := historyEntry("k", "p2", at.Add(time.Minute))
	assert.NoError(t, repo.Append(ctx, e1))
	assert.NoError(t, repo.Append(ctx, e2))

	// Removing under the wrong requester key must not touch the row.
	removed, err := repo.Remove(ctx, "other", e1.ID)
	assert.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.Remove(ctx, "k", e1.ID)
	assert.NoError(t, err)
	assert.True(t, removed)

	assert.NoError(t, repo.Clear(ctx, "k"))
	entries, err := repo.ListByKey(ctx, "k")
	assert.NoError(t, err)
	assert.Empty(t, entries)
}
