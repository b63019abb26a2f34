// Package matcher implements the tiered candidate selection at the heart
// of the "find someone" feature: filter the check-in snapshot down to
// eligible partners, collapse to the latest record per user, then prefer
// candidates that are both recently active and nearby.
package matcher

import (
	"math/rand"
	"sync"
	"time"

	"github.com/neversayno/match-backend/internal/db"
	"github.com/neversayno/match-backend/internal/geo"
)

// Tier thresholds. A candidate is "recent" within half an hour of
// adjusted device time and "nearby" within two kilometers.
const (
	tierTimeLimitMinutes    = 30.0
	tierDistanceLimitMeters = 2000.0
)

// Tier classifies how well a candidate met the recency+proximity policy.
type Tier int

const (
	// TierNone is reported when no requester coordinate was available
	// and selection fell back to a plain uniform pick.
	TierNone Tier = iota
	TierA         // recent and nearby
	TierB         // recent or nearby, not both
	TierC         // neither
)

func (t Tier) String() string {
	switch t {
	case TierA:
		return "A"
	case TierB:
		return "B"
	case TierC:
		return "C"
	}
	return "none"
}

// NoMatchReason explains an empty selection. Absence of a match is an
// expected outcome the client renders, not a fault.
type NoMatchReason string

const (
	ReasonNone                   NoMatchReason = ""
	ReasonNoRecordsAtAll         NoMatchReason = "no_records_at_all"
	ReasonNoNonGuestRecords      NoMatchReason = "no_non_guest_records"
	ReasonAllExcludedBySelf      NoMatchReason = "all_excluded_by_self"
	ReasonAllExcludedByBlacklist NoMatchReason = "all_excluded_by_blacklist"
	ReasonAllExcludedByHistory   NoMatchReason = "all_excluded_by_history"
)

// FilterStats counts how many records each eligibility stage removed.
// The client uses these to build its "why no match" message.
type FilterStats struct {
	Total             int
	Guests            int
	SelfExcluded      int
	BlacklistExcluded int
	HistoryExcluded   int
	Candidates        int
}

// Input is one immutable selection snapshot.
type Input struct {
	Records       []db.LocationRecord
	CurrentUserID string
	// Current is the requester's coordinate; nil when the device could
	// not provide a location, which switches selection to uniform random.
	Current *geo.Coordinate
	// ExcludedUserIDs are partner ids already in the requester's history.
	ExcludedUserIDs map[string]struct{}
	// BlacklistedIdentities holds active ban subjects (display names and
	// device ids mixed together).
	BlacklistedIdentities map[string]struct{}
}

// Outcome is either a matched record with its tier info or a typed
// no-candidate reason with per-stage diagnostics.
type Outcome struct {
	Record          *db.LocationRecord
	DistanceMeters  float64
	TimeDiffMinutes float64
	Tier            Tier
	Reason          NoMatchReason
	Stats           FilterStats
}

func (o Outcome) Matched() bool { return o.Record != nil }

// Selector performs candidate selection. It holds no request state;
// the rand source and clock are injectable for reproducible tests.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

type Option func(*Selector)

// WithRand replaces the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) { s.rng = r }
}

// WithNow replaces the clock.
func WithNow(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

func New(opts ...Option) *Selector {
	s := &Selector{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// Intn draws a uniform value in [0,n) from the selector's random source.
// Callers that need extra draws tied to a selection (the display record
// number) use this instead of a second source.
func (s *Selector) Intn(n int) int {
	return s.intn(n)
}

// Select runs the full pipeline over one snapshot:
//
//  1. drop guest records (guests request but are never matched),
//  2. drop the requester's own records,
//  3. drop records whose device id or user id is actively banned,
//  4. drop partners already in the requester's history (permanent,
//     by user id, regardless of elapsed time),
//  5. keep only the latest record per remaining user,
//  6. pick uniformly within the best non-empty tier, or uniformly over
//     everything when no requester coordinate is available.
func (s *Selector) Select(in Input) Outcome {
	out := Outcome{Tier: TierNone}
	out.Stats.Total = len(in.Records)

	if len(in.Records) == 0 {
		out.Reason = ReasonNoRecordsAtAll
		return out
	}

	nonGuest := make([]db.LocationRecord, 0, len(in.Records))
	for _, rec := range in.Records {
		if rec.LoginType == "guest" {
			continue
		}
		nonGuest = append(nonGuest, rec)
	}
	out.Stats.Guests = out.Stats.Total - len(nonGuest)
	if len(nonGuest) == 0 {
		out.Reason = ReasonNoNonGuestRecords
		return out
	}

	afterSelf := nonGuest[:0:0]
	for _, rec := range nonGuest {
		if in.CurrentUserID != "" && rec.UserID == in.CurrentUserID {
			continue
		}
		afterSelf = append(afterSelf, rec)
	}
	out.Stats.SelfExcluded = len(nonGuest) - len(afterSelf)

	afterBlacklist := afterSelf[:0:0]
	for _, rec := range afterSelf {
		if _, banned := in.BlacklistedIdentities[rec.DeviceID]; banned {
			continue
		}
		if _, banned := in.BlacklistedIdentities[rec.UserID]; banned {
			continue
		}
		afterBlacklist = append(afterBlacklist, rec)
	}
	out.Stats.BlacklistExcluded = len(afterSelf) - len(afterBlacklist)

	available := afterBlacklist[:0:0]
	for _, rec := range afterBlacklist {
		if _, matched := in.ExcludedUserIDs[rec.UserID]; matched {
			continue
		}
		available = append(available, rec)
	}
	out.Stats.HistoryExcluded = len(afterBlacklist) - len(available)

	candidates := s.collapseLatest(available)
	out.Stats.Candidates = len(candidates)

	if len(candidates) == 0 {
		// Report the most specific exclusion stage that fired; history
		// beats blacklist beats self so "you already matched everyone"
		// wins over "your own records were skipped".
		switch {
		case out.Stats.HistoryExcluded > 0:
			out.Reason = ReasonAllExcludedByHistory
		case out.Stats.BlacklistExcluded > 0:
			out.Reason = ReasonAllExcludedByBlacklist
		default:
			out.Reason = ReasonAllExcludedBySelf
		}
		return out
	}

	if in.Current == nil {
		picked := candidates[s.intn(len(candidates))]
		out.Record = &picked
		return out
	}

	return s.pickTiered(candidates, *in.Current, out)
}

// collapseLatest keeps the single freshest record per user id, compared
// by parsed device time. An unparseable device time counts as "now", so
// such a record beats any parseable older one. A record already held
// whose time cannot be parsed is always replaced.
func (s *Selector) collapseLatest(records []db.LocationRecord) []db.LocationRecord {
	latest := make(map[string]db.LocationRecord, len(records))
	times := make(map[string]time.Time, len(records))

	for _, rec := range records {
		t, ok := parseDeviceTime(rec.DeviceTime)
		if !ok {
			t = s.now()
		}

		existing, seen := latest[rec.UserID]
		if !seen {
			latest[rec.UserID] = rec
			times[rec.UserID] = t
			continue
		}
		if _, existingOK := parseDeviceTime(existing.DeviceTime); !existingOK {
			latest[rec.UserID] = rec
			times[rec.UserID] = t
			continue
		}
		if t.After(times[rec.UserID]) {
			latest[rec.UserID] = rec
			times[rec.UserID] = t
		}
	}

	out := make([]db.LocationRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	return out
}

type scored struct {
	rec      db.LocationRecord
	distance float64
	timeDiff float64
}

func (s *Selector) pickTiered(candidates []db.LocationRecord, current geo.Coordinate, out Outcome) Outcome {
	now := s.now()

	var tierA, tierB, tierC []scored
	for _, rec := range candidates {
		distance := geo.DistanceMeters(current, geo.Coordinate{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
		})

		recTime, ok := parseDeviceTime(rec.DeviceTime)
		if !ok {
			recTime = now
		}
		timeDiff := geo.AdjustedTimeDifferenceMinutes(recTime, rec.Longitude, now, current.Longitude)

		sc := scored{rec: rec, distance: distance, timeDiff: timeDiff}
		recent := timeDiff <= tierTimeLimitMinutes
		nearby := distance <= tierDistanceLimitMeters
		switch {
		case recent && nearby:
			tierA = append(tierA, sc)
		case recent || nearby:
			tierB = append(tierB, sc)
		default:
			tierC = append(tierC, sc)
		}
	}

	var pool []scored
	switch {
	case len(tierA) > 0:
		pool, out.Tier = tierA, TierA
	case len(tierB) > 0:
		pool, out.Tier = tierB, TierB
	default:
		pool, out.Tier = tierC, TierC
	}

	picked := pool[s.intn(len(pool))]
	out.Record = &picked.rec
	out.DistanceMeters = picked.distance
	out.TimeDiffMinutes = picked.timeDiff
	return out
}
