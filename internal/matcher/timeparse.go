package matcher

import "time"

// Old clients submitted device time in a bare local pattern before the
// switch to ISO-8601; both still appear in stored records.
const legacyTimeLayout = "2006-01-02 15:04:05"

// parseDeviceTime parses a record's device_time string. ISO-8601 with
// optional fractional seconds is tried first, then the legacy local
// pattern. ok=false means the caller must treat the record as "now".
//
// The legacy layout carries no zone and is read as UTC. Old clients
// wrote device-local time, so a legacy record from a non-UTC device
// reads offset by its zone and looks less recent than it was.
func parseDeviceTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(legacyTimeLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
