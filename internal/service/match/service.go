package match

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/neversayno/match-backend/internal/app"
	"github.com/neversayno/match-backend/internal/blacklist"
	"github.com/neversayno/match-backend/internal/db"
	svcErr "github.com/neversayno/match-backend/internal/errors"
	"github.com/neversayno/match-backend/internal/geo"
	"github.com/neversayno/match-backend/internal/history"
	"github.com/neversayno/match-backend/internal/identity"
	"github.com/neversayno/match-backend/internal/ledger"
	"github.com/neversayno/match-backend/internal/matcher"
	"github.com/neversayno/match-backend/internal/repository"
)

// Per-request budget for record store access. Attempts that blow this
// budget surface as "temporarily unavailable" with no ledger change.
const storeTimeout = 10 * time.Second

// Service implements the match HTTP API: check-in + match orchestration,
// diamond balance, match history, reports and moderation.
type Service struct {
	appCtx    *app.AppContext
	locations *repository.LocationRepository
	reports   *repository.ReportRepository
	accounts  *repository.AccountRepository
	ledger    *ledger.Ledger
	blacklist *blacklist.Service
	history   *history.Service
	selector  *matcher.Selector
}

// NewService wires the service from AppContext with a default selector.
func NewService(appCtx *app.AppContext) *Service {
	return NewServiceWith(appCtx, matcher.New())
}

// NewServiceWith accepts an explicit selector so tests can inject a
// seeded random source and a fixed clock.
func NewServiceWith(appCtx *app.AppContext, sel *matcher.Selector) *Service {
	balances := repository.NewBalanceRepository(appCtx.DB)
	var balanceCache ledger.Cache
	if appCtx.RedisCache != nil {
		balanceCache = appCtx.RedisCache
	}
	return &Service{
		appCtx:    appCtx,
		locations: repository.NewLocationRepository(appCtx.DB),
		reports:   repository.NewReportRepository(appCtx.DB),
		accounts:  repository.NewAccountRepository(appCtx.DB),
		ledger:    ledger.New(balances, balanceCache, appCtx.Logger),
		blacklist: blacklist.NewService(repository.NewBlacklistRepository(appCtx.DB), appCtx.RedisCache, appCtx.Logger),
		history:   history.NewService(repository.NewHistoryRepository(appCtx.DB, appCtx.Cfg.Match.HistoryLimit)),
		selector:  sel,
	}
}

// Blacklist exposes the blacklist service for wiring moderation tests.
func (s *Service) Blacklist() *blacklist.Service { return s.blacklist }

//
// --- check-in and match ---
//

type checkInRequest struct {
	UserID     string   `json:"user_id" binding:"required"`
	UserName   string   `json:"user_name"`
	UserEmail  *string  `json:"user_email"`
	UserAvatar *string  `json:"user_avatar"`
	LoginType  string   `json:"login_type" binding:"required"`
	DeviceID   string   `json:"device_id" binding:"required"`
	Latitude   *float64 `json:"latitude" binding:"required"`
	Longitude  *float64 `json:"longitude" binding:"required"`
	Accuracy   float64  `json:"accuracy"`
	Timezone   string   `json:"timezone"`
	DeviceTime string   `json:"device_time"`
}

type matchRequest struct {
	UserID    string   `json:"user_id" binding:"required"`
	UserName  string   `json:"user_name"`
	UserEmail *string  `json:"user_email"`
	LoginType string   `json:"login_type" binding:"required"`
	DeviceID  string   `json:"device_id" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CheckIn appends a location record and immediately runs a match attempt
// from it.
//
// Behavior:
//   - Rejects banned requesters outright (the find action is disabled).
//   - Requires an affordable balance before selection runs; selection
//     itself never charges.
//   - Inserts the check-in (append-only), snapshots records + blacklist +
//     history, and selects a partner.
//   - On success debits one match cost and appends to history; a failed
//     history write refunds the debit so the pair of effects stays atomic.
func (s *Service) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid check-in payload: " + err.Error()})
		return
	}

	loginType, err := identity.ParseLoginType(req.LoginType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if s.rejectIfBanned(c, ctx, req.UserName, req.DeviceID) {
		return
	}
	if s.rejectIfUnaffordable(c, ctx, req.UserID, loginType) {
		return
	}

	deviceTime := req.DeviceTime
	if deviceTime == "" {
		deviceTime = time.Now().UTC().Format(time.RFC3339Nano)
	}
	rec := db.LocationRecord{
		UserID:     req.UserID,
		UserName:   req.UserName,
		UserEmail:  req.UserEmail,
		UserAvatar: req.UserAvatar,
		LoginType:  loginType.String(),
		DeviceID:   req.DeviceID,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Accuracy:   req.Accuracy,
		TimezoneID: req.Timezone,
		DeviceTime: deviceTime,
	}
	if _, err := s.locations.Insert(ctx, &rec); err != nil {
		s.appCtx.Logger.Error("check-in insert failed", "user", req.UserID, "err", err)
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	coord := &geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	s.attemptMatch(c, ctx, matchIdentity{
		userID:    req.UserID,
		userName:  req.UserName,
		userEmail: req.UserEmail,
		loginType: loginType,
		deviceID:  req.DeviceID,
	}, coord, rec.ID)
}

// Match runs a match attempt without submitting a new check-in. The
// coordinate is optional: without one, selection falls back to a uniform
// random pick over the eligible pool.
func (s *Service) Match(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match payload: " + err.Error()})
		return
	}

	loginType, err := identity.ParseLoginType(req.LoginType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if s.rejectIfBanned(c, ctx, req.UserName, req.DeviceID) {
		return
	}
	if s.rejectIfUnaffordable(c, ctx, req.UserID, loginType) {
		return
	}

	var coord *geo.Coordinate
	if req.Latitude != nil && req.Longitude != nil {
		coord = &geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}
	s.attemptMatch(c, ctx, matchIdentity{
		userID:    req.UserID,
		userName:  req.UserName,
		userEmail: req.UserEmail,
		loginType: loginType,
		deviceID:  req.DeviceID,
	}, coord, "")
}

type matchIdentity struct {
	userID    string
	userName  string
	userEmail *string
	loginType identity.LoginType
	deviceID  string
}

func (id matchIdentity) email() string {
	if id.userEmail != nil {
		return *id.userEmail
	}
	return ""
}

func (id matchIdentity) storageKey() string {
	return identity.StorageKey(id.loginType, id.userID, id.email(), id.deviceID)
}

// rejectIfBanned writes a 403 with the ban expiry when the requester's
// display name or device id is actively suspended.
func (s *Service) rejectIfBanned(c *gin.Context, ctx context.Context, userName, deviceID string) bool {
	banned, matched, err := s.blacklist.IsBanned(ctx, []string{userName, deviceID})
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return true
	}
	if !banned {
		return false
	}

	resp := gin.H{"error": "account suspended", "matched_identity": matched}
	if expiry, found, err := s.blacklist.ExpiryFor(ctx, matched); err == nil && found {
		resp["expires_at"] = expiry.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusForbidden, resp)
	return true
}

// rejectIfUnaffordable enforces the "check balance before selecting"
// contract so a free match is impossible.
func (s *Service) rejectIfUnaffordable(c *gin.Context, ctx context.Context, userID string, loginType identity.LoginType) bool {
	balance, err := s.ledger.Balance(ctx, userID, loginType)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return true
	}
	if balance >= s.appCtx.Cfg.Match.Cost {
		return false
	}
	c.JSON(http.StatusPaymentRequired, gin.H{
		"error":    "insufficient diamonds",
		"diamonds": balance,
		"required": s.appCtx.Cfg.Match.Cost,
	})
	return true
}

func (s *Service) attemptMatch(c *gin.Context, ctx context.Context, id matchIdentity, coord *geo.Coordinate, checkinID string) {
	log := s.appCtx.Logger

	records, err := s.locations.ListAll(ctx)
	if err != nil {
		log.Error("location snapshot failed", "err", err)
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	bannedSet, err := s.blacklist.IdentitySet(ctx)
	if err != nil {
		log.Error("blacklist snapshot failed", "err", err)
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	requesterKey := id.storageKey()
	exclusion, err := s.history.ExclusionSet(ctx, requesterKey)
	if err != nil {
		log.Error("history snapshot failed", "requester", requesterKey, "err", err)
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	out := s.selector.Select(matcher.Input{
		Records:               records,
		CurrentUserID:         id.userID,
		Current:               coord,
		ExcludedUserIDs:       exclusion,
		BlacklistedIdentities: bannedSet,
	})

	if !out.Matched() {
		log.Debug("no candidate",
			"requester", requesterKey,
			"reason", out.Reason,
			"total", out.Stats.Total,
			"self_excluded", out.Stats.SelfExcluded,
			"blacklist_excluded", out.Stats.BlacklistExcluded,
			"history_excluded", out.Stats.HistoryExcluded,
		)
		c.JSON(http.StatusOK, gin.H{
			"matched":    false,
			"checkin_id": checkinID,
			"reason":     string(out.Reason),
			"stats":      statsBody(out.Stats),
		})
		return
	}

	// Charge only after a candidate was found. A concurrent attempt may
	// have raced the earlier affordability check, so debit can still fail.
	ok, err := s.ledger.Debit(ctx, id.userID, id.loginType, s.appCtx.Cfg.Match.Cost)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if !ok {
		balance, _ := s.ledger.Balance(ctx, id.userID, id.loginType)
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    "insufficient diamonds",
			"diamonds": balance,
			"required": s.appCtx.Cfg.Match.Cost,
		})
		return
	}

	// Display ordinal 1..total, as shown on the match card. Drawn from
	// the selector's source so it is reproducible under a seeded rand.
	recordNumber := 1
	if out.Stats.Total > 1 {
		recordNumber = s.selector.Intn(out.Stats.Total) + 1
	}

	entry, err := s.history.Append(ctx, requesterKey, *out.Record, recordNumber, coord)
	if err != nil {
		// Debit and history append must land together; refund on failure.
		if _, crErr := s.ledger.Credit(ctx, id.userID, id.loginType, s.appCtx.Cfg.Match.Cost); crErr != nil {
			log.Error("refund after history failure also failed", "requester", requesterKey, "err", crErr)
		}
		log.Error("history append failed", "requester", requesterKey, "err", err)
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	balance, err := s.ledger.Balance(ctx, id.userID, id.loginType)
	if err != nil {
		balance = 0
	}

	resp := gin.H{
		"matched":          true,
		"checkin_id":       checkinID,
		"partner":          partnerBody(*out.Record),
		"tier":             out.Tier.String(),
		"record_number":    recordNumber,
		"history_entry_id": entry.ID,
		"diamonds":         balance,
	}
	if coord != nil {
		resp["distance_meters"] = out.DistanceMeters
		resp["time_diff_minutes"] = out.TimeDiffMinutes
		resp["bearing_degrees"] = geo.BearingDegrees(*coord, geo.Coordinate{
			Latitude:  out.Record.Latitude,
			Longitude: out.Record.Longitude,
		})
	}

	log.Info("match found",
		"requester", requesterKey,
		"partner", out.Record.UserID,
		"tier", out.Tier.String(),
	)
	c.JSON(http.StatusOK, resp)
}

func statsBody(st matcher.FilterStats) gin.H {
	return gin.H{
		"total":              st.Total,
		"guests":             st.Guests,
		"self_excluded":      st.SelfExcluded,
		"blacklist_excluded": st.BlacklistExcluded,
		"history_excluded":   st.HistoryExcluded,
		"candidates":         st.Candidates,
	}
}

func partnerBody(rec db.LocationRecord) gin.H {
	return gin.H{
		"record_id":   rec.ID,
		"user_id":     rec.UserID,
		"user_name":   rec.UserName,
		"user_email":  rec.UserEmail,
		"user_avatar": rec.UserAvatar,
		"login_type":  rec.LoginType,
		"device_id":   rec.DeviceID,
		"latitude":    rec.Latitude,
		"longitude":   rec.Longitude,
		"accuracy":    rec.Accuracy,
		"timezone":    rec.TimezoneID,
		"device_time": rec.DeviceTime,
	}
}

// WipeCheckIns deletes every stored check-in (maintenance).
func (s *Service) WipeCheckIns(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	deleted, err := s.locations.DeleteAll(ctx)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

//
// --- balance ---
//

// GetBalance returns the requester's diamond balance, creating it lazily
// at zero on first query.
func (s *Service) GetBalance(c *gin.Context) {
	loginType, ok := parseLoginTypeQuery(c)
	if !ok {
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	balance, err := s.ledger.Balance(ctx, userID, loginType)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"diamonds": balance})
}

type rechargeRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	LoginType string `json:"login_type" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
}

// Recharge credits diamonds after a purchase. The purchase flow itself is
// a client concern; the server only applies the amount.
func (s *Service) Recharge(c *gin.Context) {
	var req rechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recharge payload: " + err.Error()})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	loginType, err := identity.ParseLoginType(req.LoginType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	balance, err := s.ledger.Credit(ctx, req.UserID, loginType, req.Amount)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"diamonds": balance})
}

//
// --- history ---
//

// requesterKeyFromQuery rebuilds the identity storage key from query
// parameters (user_id, login_type, email, device_id).
func (s *Service) requesterKeyFromQuery(c *gin.Context) (string, bool) {
	loginType, ok := parseLoginTypeQuery(c)
	if !ok {
		return "", false
	}
	key := identity.StorageKey(loginType, c.Query("user_id"), c.Query("email"), c.Query("device_id"))
	return key, true
}

// ListHistory returns the requester's match history, newest first.
func (s *Service) ListHistory(c *gin.Context) {
	key, ok := s.requesterKeyFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	entries, err := s.history.List(ctx, key)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}

	body := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		item := gin.H{
			"id":            e.ID,
			"record_number": e.RecordNumber,
			"matched_at":    e.MatchedAt.UTC().Format(time.RFC3339),
			"partner": gin.H{
				"record_id":   e.PartnerRecordID,
				"user_id":     e.PartnerUserID,
				"user_name":   e.PartnerUserName,
				"user_email":  e.PartnerUserEmail,
				"user_avatar": e.PartnerAvatar,
				"login_type":  e.PartnerLoginType,
				"device_id":   e.PartnerDeviceID,
				"latitude":    e.PartnerLatitude,
				"longitude":   e.PartnerLongitude,
				"accuracy":    e.PartnerAccuracy,
				"timezone":    e.PartnerTimezone,
				"device_time": e.PartnerTime,
			},
		}
		if e.RequesterLatitude != nil && e.RequesterLongitude != nil {
			item["requester_latitude"] = *e.RequesterLatitude
			item["requester_longitude"] = *e.RequesterLongitude
		}
		body = append(body, item)
	}
	c.JSON(http.StatusOK, gin.H{"history": body})
}

// ClearHistory wipes the requester's history, reopening past partners.
func (s *Service) ClearHistory(c *gin.Context) {
	key, ok := s.requesterKeyFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := s.history.Clear(ctx, key); err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// DeleteHistoryEntry removes a single history entry.
func (s *Service) DeleteHistoryEntry(c *gin.Context) {
	key, ok := s.requesterKeyFromQuery(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	removed, err := s.history.Remove(ctx, key, c.Param("id"))
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

//
// --- reports and moderation ---
//

type reportRequest struct {
	ReporterUserID    string  `json:"reporter_user_id" binding:"required"`
	ReporterUserName  string  `json:"reporter_user_name"`
	ReportedUserID    string  `json:"reported_user_id" binding:"required"`
	ReportedUserName  *string `json:"reported_user_name"`
	ReportedUserEmail *string `json:"reported_user_email"`
	ReportedDeviceID  *string `json:"reported_device_id"`
	ReportedLoginType *string `json:"reported_login_type"`
	Reason            string  `json:"reason" binding:"required"`
}

// CreateReport files an abuse report. Reporting the same partner twice is
// rejected.
func (s *Service) CreateReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	already, err := s.reports.HasReported(ctx, req.ReporterUserID, req.ReportedUserID)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if already {
		c.JSON(http.StatusConflict, gin.H{"error": "user already reported"})
		return
	}

	rec := db.ReportRecord{
		ReporterUserID:    req.ReporterUserID,
		ReporterUserName:  req.ReporterUserName,
		ReportedUserID:    req.ReportedUserID,
		ReportedUserName:  req.ReportedUserName,
		ReportedUserEmail: req.ReportedUserEmail,
		ReportedDeviceID:  req.ReportedDeviceID,
		ReportedLoginType: req.ReportedLoginType,
		Reason:            req.Reason,
	}
	if err := s.reports.Insert(ctx, &rec); err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
}

// ListReports returns reports filed by one reporter.
func (s *Service) ListReports(c *gin.Context) {
	reporterID := c.Query("reporter_id")
	if reporterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reporter_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	records, err := s.reports.ListByReporter(ctx, reporterID)
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reportListBody(records)})
}

// ModerationQueue pages through unprocessed reports, oldest first.
func (s *Service) ModerationQueue(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	var token *string
	if raw := c.Query("token"); raw != "" {
		token = &raw
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	records, nextToken, err := s.reports.ListUnprocessed(ctx, token, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"reports": reportListBody(records)}
	if nextToken != nil {
		resp["next_token"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

type processRequest struct {
	Action string `json:"action" binding:"required"`
}

// ProcessReport applies a moderation decision to one report.
//
// Actions:
//   - reject: close the report with no effect
//   - warn:   close the report, warning delivery is a client concern
//   - ban:    suspend the reported party (name and device id) for the
//     configured duration, then close the report
func (s *Service) ProcessReport(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid process payload: " + err.Error()})
		return
	}
	switch req.Action {
	case "reject", "warn", "ban":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be one of reject, warn, ban"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	report, err := s.reports.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if report.Processed {
		c.JSON(http.StatusConflict, gin.H{"error": "report already processed"})
		return
	}

	resp := gin.H{"id": report.ID, "action": req.Action}
	if req.Action == "ban" {
		name, device := "", ""
		if report.ReportedUserName != nil {
			name = *report.ReportedUserName
		}
		if report.ReportedDeviceID != nil {
			device = *report.ReportedDeviceID
		}
		entry, err := s.blacklist.Ban(ctx, name, device, report.Reason, s.appCtx.Cfg.Match.BanDuration)
		if err != nil {
			c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
			return
		}
		resp["expires_at"] = entry.ExpiresAt.UTC().Format(time.RFC3339)
	}

	if err := s.reports.MarkProcessed(ctx, report.ID, req.Action, time.Now().UTC()); err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func reportListBody(records []db.ReportRecord) []gin.H {
	body := make([]gin.H, 0, len(records))
	for _, r := range records {
		item := gin.H{
			"id":                 r.ID,
			"reporter_user_id":   r.ReporterUserID,
			"reporter_user_name": r.ReporterUserName,
			"reported_user_id":   r.ReportedUserID,
			"reason":             r.Reason,
			"processed":          r.Processed,
			"created_at":         r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.ReportedUserName != nil {
			item["reported_user_name"] = *r.ReportedUserName
		}
		if r.ReportedDeviceID != nil {
			item["reported_device_id"] = *r.ReportedDeviceID
		}
		if r.ProcessedAction != nil {
			item["processed_action"] = *r.ProcessedAction
		}
		body = append(body, item)
	}
	return body
}

//
// --- ban status ---
//

// BanStatus reports whether an identity pair is currently suspended and
// when the suspension lifts. Polled by the client for its countdown.
func (s *Service) BanStatus(c *gin.Context) {
	name := c.Query("name")
	deviceID := c.Query("device_id")
	if name == "" && deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name or device_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	banned, matched, err := s.blacklist.IsBanned(ctx, []string{name, deviceID})
	if err != nil {
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if !banned {
		c.JSON(http.StatusOK, gin.H{"banned": false})
		return
	}

	resp := gin.H{"banned": true, "matched_identity": matched}
	if expiry, found, err := s.blacklist.ExpiryFor(ctx, matched); err == nil && found {
		resp["expires_at"] = expiry.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

//
// --- internal accounts ---
//

type internalLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// InternalLogin verifies internal account credentials.
func (s *Service) InternalLogin(c *gin.Context) {
	var req internalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	acc, err := s.accounts.GetInternalAccount(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		c.JSON(svcErr.Status(err), gin.H{"error": svcErr.Message(err)})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": acc.Username, "login_type": identity.LoginInternal.String()})
}

func parseLoginTypeQuery(c *gin.Context) (identity.LoginType, bool) {
	loginType, err := identity.ParseLoginType(c.Query("login_type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	return loginType, true
}
