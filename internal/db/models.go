package db

import (
	"time"
)

// LocationRecord is a single location check-in. Records are append-only:
// one row per submission, never edited in place, at most bulk-wiped.
//
// DeviceTime is the submission timestamp as reported by the client and is
// authoritative for recency comparisons. It is stored verbatim because old
// clients sent a bare local pattern instead of ISO-8601; parsing happens
// at selection time with a "treat as now" fallback.
type LocationRecord struct {
	ID         string  `gorm:"primaryKey;size:36"`
	UserID     string  `gorm:"size:128;not null;index:idx_location_user"`
	UserName   string  `gorm:"size:128"`
	UserEmail  *string `gorm:"size:128"`
	UserAvatar *string `gorm:"size:64"`
	LoginType  string  `gorm:"size:16;not null"`
	DeviceID   string  `gorm:"size:64;not null;index:idx_location_device"`
	Latitude   float64 `gorm:"not null"`
	Longitude  float64 `gorm:"not null"`
	Accuracy   float64
	TimezoneID string    `gorm:"size:64"`
	DeviceTime string    `gorm:"size:48"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_location_created,sort:desc"`
}

// DiamondBalance tracks the virtual currency per (user, login type).
// The same underlying person signed in two ways holds two balances.
type DiamondBalance struct {
	UserID    string    `gorm:"primaryKey;size:128"`
	LoginType string    `gorm:"primaryKey;size:16"`
	Diamonds  int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// BlacklistEntry is a time-bounded suspension. A subject is identified by
// whichever identity moderation captured at report time: display name,
// device id, or both. Expiry is a read-time comparison; rows are never
// updated once written.
type BlacklistEntry struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	ReportedUserName string    `gorm:"size:128;index:idx_blacklist_name"`
	DeviceID         string    `gorm:"size:64;index:idx_blacklist_device"`
	Reason           string    `gorm:"size:255"`
	ExpiresAt        time.Time `gorm:"not null;index:idx_blacklist_expires"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

// MatchHistoryEntry embeds a snapshot of the matched partner's record at
// match time plus the requester's own coordinates. The snapshot is a copy,
// not a reference: later check-ins by the partner don't rewrite history.
//
// RequesterKey is the identity-derived storage key (see identity.StorageKey).
type MatchHistoryEntry struct {
	ID           string `gorm:"primaryKey;size:36"`
	RequesterKey string `gorm:"size:160;not null;index:idx_history_requester,priority:1"`
	RecordNumber int

	PartnerRecordID  string  `gorm:"size:36"`
	PartnerUserID    string  `gorm:"size:128;not null"`
	PartnerUserName  string  `gorm:"size:128"`
	PartnerUserEmail *string `gorm:"size:128"`
	PartnerAvatar    *string `gorm:"size:64"`
	PartnerLoginType string  `gorm:"size:16"`
	PartnerDeviceID  string  `gorm:"size:64"`
	PartnerLatitude  float64
	PartnerLongitude float64
	PartnerAccuracy  float64
	PartnerTimezone  string `gorm:"size:64"`
	PartnerTime      string `gorm:"size:48"`

	RequesterLatitude  *float64
	RequesterLongitude *float64

	MatchedAt time.Time `gorm:"autoCreateTime;index:idx_history_requester,priority:2,sort:desc"`
}

// ReportRecord captures one abuse report. Duplicate reports of the same
// partner by the same reporter are rejected. Processed rows keep the
// moderation outcome instead of being copied to a second table.
type ReportRecord struct {
	ID                string `gorm:"primaryKey;size:36"`
	ReporterUserID    string `gorm:"size:128;not null;index:idx_report_reporter"`
	ReporterUserName  string `gorm:"size:128"`
	ReportedUserID    string  `gorm:"size:128;not null"`
	ReportedUserName  *string `gorm:"size:128"`
	ReportedUserEmail *string `gorm:"size:128"`
	ReportedDeviceID  *string `gorm:"size:64"`
	ReportedLoginType *string `gorm:"size:16"`
	Reason            string  `gorm:"size:512;not null"`

	Processed       bool `gorm:"not null;default:false;index:idx_report_processed"`
	ProcessedAction *string
	ProcessedAt     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// InternalAccount backs the internal username/password login.
type InternalAccount struct {
	Username     string    `gorm:"primaryKey;size:64"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
