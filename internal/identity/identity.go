// Package identity models the three ways a user can be signed in and the
// storage key that scopes per-user state (match history, report records).
package identity

import "fmt"

// LoginType is a closed enumeration of the supported auth methods.
type LoginType int

const (
	// LoginGuest users are identified by their device only. They can
	// request matches but are never matchable candidates.
	LoginGuest LoginType = iota
	// LoginApple users signed in with a platform account (keyed by email).
	LoginApple
	// LoginInternal users hold an internal account (keyed by user id).
	LoginInternal
)

func (t LoginType) String() string {
	switch t {
	case LoginApple:
		return "apple"
	case LoginInternal:
		return "internal"
	default:
		return "guest"
	}
}

// ParseLoginType maps the wire value to a LoginType.
func ParseLoginType(s string) (LoginType, error) {
	switch s {
	case "guest":
		return LoginGuest, nil
	case "apple":
		return LoginApple, nil
	case "internal":
		return LoginInternal, nil
	}
	return LoginGuest, fmt.Errorf("unknown login type %q", s)
}

// StorageKey derives the per-identity key under which match history and
// report records are stored.
//
// Apple accounts key by email (the stable identity across devices),
// internal accounts by user id, and guests by a shortened device id;
// for guests the device IS the identity.
func StorageKey(t LoginType, userID, email, deviceID string) string {
	switch t {
	case LoginApple:
		if email == "" {
			email = "unknown"
		}
		return "apple_" + email
	case LoginInternal:
		return "internal_" + userID
	default:
		short := deviceID
		if len(short) > 8 {
			short = short[:8]
		}
		return "guest_" + short
	}
}
