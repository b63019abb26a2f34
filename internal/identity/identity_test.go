package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neversayno/match-backend/internal/identity"
)

func TestParseLoginType(t *testing.T) {
	for s, want := range map[string]identity.LoginType{
		"guest":    identity.LoginGuest,
		"apple":    identity.LoginApple,
		"internal": identity.LoginInternal,
	} {
		got, err := identity.ParseLoginType(s)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, s, got.String())
	}

	_, err := identity.ParseLoginType("facebook")
	assert.Error(t, err)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "apple_a@b.com",
		identity.StorageKey(identity.LoginApple, "u1", "a@b.com", "dev"))

	// missing email falls back to the literal "unknown"
	assert.Equal(t, "apple_unknown",
		identity.StorageKey(identity.LoginApple, "u1", "", "dev"))

	assert.Equal(t, "internal_u42",
		identity.StorageKey(identity.LoginInternal, "u42", "a@b.com", "dev"))

	// guests key by the first 8 chars of the device id
	assert.Equal(t, "guest_ABCDEFGH",
		identity.StorageKey(identity.LoginGuest, "u1", "", "ABCDEFGH-1234"))

	// short device ids are used whole
	assert.Equal(t, "guest_dev",
		identity.StorageKey(identity.LoginGuest, "u1", "", "dev"))
}
