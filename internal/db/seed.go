package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with demo check-ins
// clustered around central Manhattan, plus balances, one active ban and a
// pair of reports.
//
// Behavior:
//  1. Clears all domain tables.
//  2. Creates 10 matchable users (apple/internal) with check-ins spread
//     across the three match tiers relative to (40.7580, -73.9855),
//     plus a guest check-in that must never be selectable.
//  3. Gives every user a starting balance of 5 diamonds.
//  4. Adds an expired and an active blacklist entry and two open reports.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{
		"location_records", "diamond_balances", "blacklist_entries",
		"match_history_entries", "report_records", "internal_accounts",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	center := struct{ lat, lon float64 }{40.7580, -73.9855}
	now := time.Now().UTC()

	// Internal demo account, hashed like any real credential.
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := db.Create(&InternalAccount{Username: "demo", PasswordHash: string(hash)}).Error; err != nil {
		return fmt.Errorf("failed to seed internal account: %w", err)
	}

	for i := 1; i <= 10; i++ {
		loginType := "apple"
		if i%3 == 0 {
			loginType = "internal"
		}
		email := fmt.Sprintf("user%d@example.com", i)

		// spread users across tiers: near+fresh, near+stale, far+fresh, far+stale
		latOffset, lonOffset := 0.005, 0.005 // ~700 m
		age := time.Duration(r.Intn(20)) * time.Minute
		switch i % 4 {
		case 1:
			age = time.Duration(60+r.Intn(120)) * time.Minute
		case 2:
			latOffset, lonOffset = 0.08, 0.08 // ~10 km
		case 3:
			latOffset, lonOffset = 0.08, 0.08
			age = time.Duration(60+r.Intn(120)) * time.Minute
		}

		rec := LocationRecord{
			ID:         uuid.NewString(),
			UserID:     fmt.Sprintf("seed-user-%d", i),
			UserName:   fmt.Sprintf("user%d", i),
			UserEmail:  &email,
			LoginType:  loginType,
			DeviceID:   fmt.Sprintf("seed-device-%02d", i),
			Latitude:   center.lat + latOffset*(r.Float64()-0.5)*2,
			Longitude:  center.lon + lonOffset*(r.Float64()-0.5)*2,
			Accuracy:   5 + r.Float64()*20,
			TimezoneID: "America/New_York",
			DeviceTime: now.Add(-age).Format(time.RFC3339Nano),
		}
		if err := db.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to seed location record: %w", err)
		}

		balance := DiamondBalance{
			UserID:    rec.UserID,
			LoginType: loginType,
			Diamonds:  5,
		}
		if err := db.Create(&balance).Error; err != nil {
			return fmt.Errorf("failed to seed balance: %w", err)
		}
	}

	// A guest check-in: requestable identity, never a candidate.
	guest := LocationRecord{
		ID:         uuid.NewString(),
		UserID:     "guest_seed0001",
		UserName:   "guest visitor",
		LoginType:  "guest",
		DeviceID:   "seed0001-device",
		Latitude:   center.lat,
		Longitude:  center.lon,
		Accuracy:   10,
		TimezoneID: "America/New_York",
		DeviceTime: now.Format(time.RFC3339Nano),
	}
	if err := db.Create(&guest).Error; err != nil {
		return fmt.Errorf("failed to seed guest record: %w", err)
	}

	bans := []BlacklistEntry{
		{ReportedUserName: "user9", DeviceID: "seed-device-09", Reason: "harassment", ExpiresAt: now.Add(72 * time.Hour)},
		{ReportedUserName: "olduser", DeviceID: "expired-device", Reason: "spam", ExpiresAt: now.Add(-24 * time.Hour)},
	}
	if err := db.Create(&bans).Error; err != nil {
		return fmt.Errorf("failed to seed blacklist: %w", err)
	}

	reporterName := "user1"
	reportedName := "user2"
	reports := []ReportRecord{
		{
			ID:               uuid.NewString(),
			ReporterUserID:   "seed-user-1",
			ReporterUserName: reporterName,
			ReportedUserID:   "seed-user-2",
			ReportedUserName: &reportedName,
			Reason:           "inappropriate profile",
		},
		{
			ID:               uuid.NewString(),
			ReporterUserID:   "seed-user-4",
			ReporterUserName: "user4",
			ReportedUserID:   "seed-user-7",
			Reason:           "spam messages",
		},
	}
	if err := db.Create(&reports).Error; err != nil {
		return fmt.Errorf("failed to seed reports: %w", err)
	}

	log.Println("Seeded 11 check-ins, 10 balances, 2 bans, 2 reports.")
	return nil
}
