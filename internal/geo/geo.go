// Package geo holds the pure location math the matcher is built on:
// spherical distance, initial bearing, and the longitude-derived timezone
// approximation used for recency comparisons.
package geo

import (
	"math"
	"time"
)

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between a and b using
// the haversine formula on a spherical earth model.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BearingDegrees returns the initial bearing from `from` to `to`,
// normalized to [0, 360).
func BearingDegrees(from, to Coordinate) float64 {
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLon := (to.Longitude - from.Longitude) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// TimezoneOffsetHours estimates a UTC offset from longitude alone:
// round(longitude / 15), clamped to [-12, 14]. Display/fallback use only.
func TimezoneOffsetHours(longitude float64) int {
	offset := int(math.Round(longitude / 15))
	if offset < -12 {
		offset = -12
	}
	if offset > 14 {
		offset = 14
	}
	return offset
}

// AdjustedTimeDifferenceMinutes compares a record's device time against the
// current time after shifting the record time by the difference of the two
// longitude-derived offsets. Downstream tier thresholds are tuned to this
// longitude-only approximation; it intentionally does not consult a real
// timezone database.
func AdjustedTimeDifferenceMinutes(recordTime time.Time, recordLongitude float64, currentTime time.Time, currentLongitude float64) float64 {
	recordOffset := TimezoneOffsetHours(recordLongitude)
	currentOffset := TimezoneOffsetHours(currentLongitude)

	shift := time.Duration(recordOffset-currentOffset) * time.Hour
	adjusted := recordTime.Add(shift)

	return math.Abs(currentTime.Sub(adjusted).Minutes())
}
