package handoff

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinterRequiresSecret(t *testing.T) {
	_, err := NewMinter(nil)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = NewMinter([]byte{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestMintVerifyRoundTrip(t *testing.T) {
	m, err := NewMinter([]byte("topsecret"))
	require.NoError(t, err)

	token, err := m.Mint("user-1", "team-9")
	require.NoError(t, err)
	assert.Contains(t, token, ".")

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "team-9", claims.TeamID)
	assert.Equal(t, Purpose, claims.Purpose)
	assert.Equal(t, int64(DefaultTTL/time.Second), claims.Expires-claims.IssuedAt)
}

func TestMintRequiresIdentity(t *testing.T) {
	m, err := NewMinter([]byte("topsecret"))
	require.NoError(t, err)

	_, err = m.Mint("", "team-9")
	assert.Error(t, err)

	_, err = m.Mint("user-1", "  ")
	assert.Error(t, err)
}

func TestVerifyExpiryWindow(t *testing.T) {
	issued := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clock := issued
	m, err := NewMinter([]byte("topsecret"), WithClock(func() time.Time { return clock }))
	require.NoError(t, err)

	token, err := m.Mint("user-1", "team-9")
	require.NoError(t, err)

	clock = issued.Add(29 * time.Minute)
	_, err = m.Verify(token)
	assert.NoError(t, err, "credential must be accepted inside the 30m window")

	clock = issued.Add(31 * time.Minute)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTampering(t *testing.T) {
	m, err := NewMinter([]byte("topsecret"))
	require.NoError(t, err)

	token, err := m.Mint("user-1", "team-9")
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(token, ".")

	t.Run("modified payload", func(t *testing.T) {
		tampered := payload[:len(payload)-1] + "A" + "." + sig
		_, err := m.Verify(tampered)
		assert.Error(t, err)
	})

	t.Run("modified signature", func(t *testing.T) {
		flipped := "0"
		if sig[0] == '0' {
			flipped = "1"
		}
		_, err := m.Verify(payload + "." + flipped + sig[1:])
		assert.ErrorIs(t, err, ErrBadSignature)
	})

	t.Run("different secret", func(t *testing.T) {
		other, err := NewMinter([]byte("othersecret"))
		require.NoError(t, err)
		_, err = other.Verify(token)
		assert.ErrorIs(t, err, ErrBadSignature)
	})
}

func TestVerifyRejectsMalformedTokens(t *testing.T) {
	m, err := NewMinter([]byte("topsecret"))
	require.NoError(t, err)

	for _, token := range []string{"", "no-dot", ".", "a.", ".b"} {
		_, err := m.Verify(token)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", token)
	}
}
