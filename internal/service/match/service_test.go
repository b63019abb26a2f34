package match_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/neversayno/match-backend/internal/app"
	"github.com/neversayno/match-backend/internal/cache"
	"github.com/neversayno/match-backend/internal/config"
	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/matcher"
	"github.com/neversayno/match-backend/internal/server"
	"github.com/neversayno/match-backend/internal/service/match"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	originLat = 40.7580
	originLon = -73.9855
)

type env struct {
	svc    *match.Service
	router http.Handler
	db     *gorm.DB
	cfg    *config.Config
}

func setup(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	mr := miniredis.RunT(t)
	rc := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	cfg := &config.Config{}
	cfg.App.ENV = "development"
	cfg.Match.Cost = 1
	cfg.Match.BanDuration = 72 * time.Hour
	cfg.Match.HistoryLimit = 50

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := app.New(cfg, gdb, rc, log)

	sel := matcher.New(
		matcher.WithRand(rand.New(rand.NewSource(42))),
		matcher.WithNow(func() time.Time { return testNow }),
	)
	svc := match.NewServiceWith(appCtx, sel)
	svc.Blacklist().WithNow(func() time.Time { return testNow })

	return &env{
		svc:    svc,
		router: server.NewRouter(cfg, svc),
		db:     gdb,
		cfg:    cfg,
	}
}

func (e *env) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	parsed := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func (e *env) seedRecord(t *testing.T, userID, userName, loginType, deviceID string, lat, lon float64, at time.Time) {
	t.Helper()
	rec := db.LocationRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		UserName:   userName,
		LoginType:  loginType,
		DeviceID:   deviceID,
		Latitude:   lat,
		Longitude:  lon,
		Accuracy:   5,
		TimezoneID: "America/New_York",
		DeviceTime: at.Format(time.RFC3339Nano),
	}
	require.NoError(t, e.db.Create(&rec).Error)
}

func (e *env) seedBalance(t *testing.T, userID, loginType string, diamonds int64) {
	t.Helper()
	require.NoError(t, e.db.Create(&db.DiamondBalance{
		UserID:    userID,
		LoginType: loginType,
		Diamonds:  diamonds,
	}).Error)
}

func checkInBody(userID, email string, lat, lon float64) map[string]any {
	return map[string]any{
		"user_id":     userID,
		"user_name":   "Requester",
		"user_email":  email,
		"login_type":  "apple",
		"device_id":   "REQDEVICE01",
		"latitude":    lat,
		"longitude":   lon,
		"accuracy":    5.0,
		"timezone":    "America/New_York",
		"device_time": testNow.Format(time.RFC3339Nano),
	}
}

func TestCheckInMatchesNearbyPartner(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))
	e.seedBalance(t, "req-1", "apple", 1)

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, true, resp["matched"])
	assert.Equal(t, "A", resp["tier"])
	assert.Equal(t, float64(0), resp["diamonds"])
	assert.GreaterOrEqual(t, resp["record_number"], float64(1))
	assert.NotEmpty(t, resp["checkin_id"])
	assert.Contains(t, resp, "distance_meters")
	assert.Contains(t, resp, "bearing_degrees")

	partner, ok := resp["partner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "partner-1", partner["user_id"])

	// History now holds the partner snapshot.
	w, resp = e.do(t, http.MethodGet, "/v1/history?login_type=apple&user_id=req-1&email=req@example.com&device_id=REQDEVICE01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries, ok := resp["history"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestRecordNumberFromSeededSource(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))
	e.seedBalance(t, "req-1", "apple", 1)

	// The pool is {partner, own check-in}: selection draws once from the
	// single-candidate tier pool, then the display ordinal draws from the
	// same source over the full record count.
	want := rand.New(rand.NewSource(42))
	_ = want.Intn(1)
	expected := float64(want.Intn(2) + 1)

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["matched"])
	assert.Equal(t, expected, resp["record_number"])
}

func TestMatchedPartnerNeverRepeats(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))
	e.seedBalance(t, "req-1", "apple", 5)

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["matched"])

	// The only other user is now in history; the requester's own check-in
	// is excluded as self. History is the reported reason.
	body := map[string]any{
		"user_id":    "req-1",
		"user_name":  "Requester",
		"user_email": "req@example.com",
		"login_type": "apple",
		"device_id":  "REQDEVICE01",
		"latitude":   originLat,
		"longitude":  originLon,
	}
	w, resp = e.do(t, http.MethodPost, "/v1/matches", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["matched"])
	assert.Equal(t, "all_excluded_by_history", resp["reason"])

	// No-match attempts are free: one diamond spent in total.
	w, resp = e.do(t, http.MethodGet, "/v1/balance?login_type=apple&user_id=req-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), resp["diamonds"])
}

func TestMatchRequiresDiamonds(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, float64(0), resp["diamonds"])

	// Affordability is checked before selection, so nothing was charged
	// and no history was written.
	w, resp = e.do(t, http.MethodGet, "/v1/history?login_type=apple&user_id=req-1&email=req@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["history"])
}

func TestRechargeThenMatch(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))

	w, resp := e.do(t, http.MethodPost, "/v1/balance/recharge", map[string]any{
		"user_id": "req-1", "login_type": "apple", "amount": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), resp["diamonds"])

	w, resp = e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["matched"])
	assert.Equal(t, float64(2), resp["diamonds"])
}

func TestGuestOnlyPoolHasNoCandidates(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "guest-1", "Guest", "guest", "GUESTDEV01", originLat, originLon, testNow.Add(-2*time.Minute))
	e.seedBalance(t, "req-1", "apple", 1)

	w, resp := e.do(t, http.MethodPost, "/v1/matches", map[string]any{
		"user_id":    "req-1",
		"user_name":  "Requester",
		"login_type": "apple",
		"device_id":  "REQDEVICE01",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["matched"])
	assert.Equal(t, "no_non_guest_records", resp["reason"])
}

func TestBannedRequesterIsRejected(t *testing.T) {
	e := setup(t)
	e.seedBalance(t, "req-1", "apple", 5)
	require.NoError(t, e.db.Create(&db.BlacklistEntry{
		ReportedUserName: "Requester",
		DeviceID:         "REQDEVICE01",
		Reason:           "abuse",
		ExpiresAt:        testNow.Add(24 * time.Hour),
	}).Error)

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, resp, "expires_at")

	// The suspension check runs first, so nothing was charged.
	w, resp = e.do(t, http.MethodGet, "/v1/balance?login_type=apple&user_id=req-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), resp["diamonds"])
}

func TestBanStatusEndpoint(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.db.Create(&db.BlacklistEntry{
		ReportedUserName: "Troll",
		DeviceID:         "TROLLDEV",
		Reason:           "spam",
		ExpiresAt:        testNow.Add(48 * time.Hour),
	}).Error)

	w, resp := e.do(t, http.MethodGet, "/v1/ban-status?name=Troll", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["banned"])
	assert.Equal(t, "Troll", resp["matched_identity"])
	assert.Equal(t, testNow.Add(48*time.Hour).Format(time.RFC3339), resp["expires_at"])

	w, resp = e.do(t, http.MethodGet, "/v1/ban-status?name=Innocent&device_id=CLEANDEV", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["banned"])
}

func TestReportLifecycle(t *testing.T) {
	e := setup(t)

	report := map[string]any{
		"reporter_user_id":   "req-1",
		"reporter_user_name": "Requester",
		"reported_user_id":   "partner-1",
		"reported_user_name": "Partner",
		"reported_device_id": "PARTNERDEV",
		"reason":             "inappropriate profile",
	}
	w, resp := e.do(t, http.MethodPost, "/v1/reports", report)
	require.Equal(t, http.StatusCreated, w.Code)
	reportID, _ := resp["id"].(string)
	require.NotEmpty(t, reportID)

	// Same reporter, same target: rejected.
	w, _ = e.do(t, http.MethodPost, "/v1/reports", report)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = e.do(t, http.MethodGet, "/v1/reports?reporter_id=req-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	reports, ok := resp["reports"].([]any)
	require.True(t, ok)
	require.Len(t, reports, 1)

	// Moderation queue sees it, processing with "ban" suspends the target.
	w, resp = e.do(t, http.MethodGet, "/v1/moderation/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue, ok := resp["reports"].([]any)
	require.True(t, ok)
	require.Len(t, queue, 1)

	w, resp = e.do(t, http.MethodPost, "/v1/moderation/reports/"+reportID, map[string]any{"action": "ban"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, testNow.Add(e.cfg.Match.BanDuration).Format(time.RFC3339), resp["expires_at"])

	// Processing twice is rejected, and the queue drains.
	w, _ = e.do(t, http.MethodPost, "/v1/moderation/reports/"+reportID, map[string]any{"action": "warn"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = e.do(t, http.MethodGet, "/v1/moderation/reports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["reports"])

	w, resp = e.do(t, http.MethodGet, "/v1/ban-status?name=Partner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["banned"])
}

func TestModerationQueuePagination(t *testing.T) {
	e := setup(t)
	for i := 0; i < 5; i++ {
		rec := db.ReportRecord{
			ReporterUserID: fmt.Sprintf("reporter-%d", i),
			ReportedUserID: fmt.Sprintf("target-%d", i),
			Reason:         "spam",
			CreatedAt:      testNow.Add(time.Duration(i) * time.Minute),
		}
		rec.ID = uuid.NewString()
		require.NoError(t, e.db.Create(&rec).Error)
	}

	w, resp := e.do(t, http.MethodGet, "/v1/moderation/reports?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page, _ := resp["reports"].([]any)
	require.Len(t, page, 2)
	token, _ := resp["next_token"].(string)
	require.NotEmpty(t, token)

	seen := map[string]bool{}
	for _, item := range page {
		seen[item.(map[string]any)["reported_user_id"].(string)] = true
	}

	for token != "" {
		w, resp = e.do(t, http.MethodGet, "/v1/moderation/reports?limit=2&token="+token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		page, _ = resp["reports"].([]any)
		for _, item := range page {
			id := item.(map[string]any)["reported_user_id"].(string)
			assert.False(t, seen[id], "report %s returned twice", id)
			seen[id] = true
		}
		token, _ = resp["next_token"].(string)
	}
	assert.Len(t, seen, 5)
}

func TestHistoryDeleteAndClear(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "partner-1", "Partner", "internal", "PARTNERDEV", originLat, originLon, testNow.Add(-5*time.Minute))
	e.seedBalance(t, "req-1", "apple", 5)

	w, resp := e.do(t, http.MethodPost, "/v1/checkins", checkInBody("req-1", "req@example.com", originLat, originLon))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["matched"])
	entryID, _ := resp["history_entry_id"].(string)
	require.NotEmpty(t, entryID)

	q := "?login_type=apple&user_id=req-1&email=req@example.com&device_id=REQDEVICE01"

	w, _ = e.do(t, http.MethodDelete, "/v1/history/"+entryID+q, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodDelete, "/v1/history/"+entryID+q, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// With history gone the partner is matchable again.
	w, resp = e.do(t, http.MethodPost, "/v1/matches", map[string]any{
		"user_id":    "req-1",
		"user_name":  "Requester",
		"user_email": "req@example.com",
		"login_type": "apple",
		"device_id":  "REQDEVICE01",
		"latitude":   originLat,
		"longitude":  originLon,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["matched"])

	w, _ = e.do(t, http.MethodDelete, "/v1/history"+q, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = e.do(t, http.MethodGet, "/v1/history"+q, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp["history"])
}

func TestWipeCheckIns(t *testing.T) {
	e := setup(t)
	e.seedRecord(t, "u1", "One", "internal", "DEV1", originLat, originLon, testNow)
	e.seedRecord(t, "u2", "Two", "internal", "DEV2", originLat, originLon, testNow)

	w, resp := e.do(t, http.MethodDelete, "/v1/checkins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["deleted"])

	var count int64
	require.NoError(t, e.db.Model(&db.LocationRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInternalLogin(t *testing.T) {
	e := setup(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&db.InternalAccount{
		Username:     "demo",
		PasswordHash: string(hash),
	}).Error)

	w, resp := e.do(t, http.MethodPost, "/v1/internal/login", map[string]any{
		"username": "demo", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "demo", resp["user_id"])
	assert.Equal(t, "internal", resp["login_type"])

	w, _ = e.do(t, http.MethodPost, "/v1/internal/login", map[string]any{
		"username": "demo", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = e.do(t, http.MethodPost, "/v1/internal/login", map[string]any{
		"username": "ghost", "password": "hunter2",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidLoginTypeRejected(t *testing.T) {
	e := setup(t)
	body := checkInBody("req-1", "req@example.com", originLat, originLon)
	body["login_type"] = "facebook"

	w, _ := e.do(t, http.MethodPost, "/v1/checkins", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
