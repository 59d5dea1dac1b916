// Package handoff mints and verifies the scoped, short-lived credential
// that accompanies prepared form data across the page/helper-agent
// boundary.
//
// The token is stateless: validity is proven purely by its HMAC-SHA256
// signature and its expiry claim, so verification needs only the shared
// secret and a clock. There is no store and no revocation list; the
// 30-minute window bounds replay exposure.
package handoff

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Purpose is the single use this credential is scoped to. Verifiers must
// reject any other value.
const Purpose = "e-filing-extension"

// DefaultTTL is the fixed credential lifetime.
const DefaultTTL = 30 * time.Minute

var (
	// ErrNoSecret indicates the signing secret is absent from
	// configuration. This is a startup-class misconfiguration, not a
	// per-request error.
	ErrNoSecret = errors.New("handoff: signing secret is not configured")

	// ErrMalformed indicates the token does not have the expected
	// payload.signature shape.
	ErrMalformed = errors.New("handoff: malformed token")

	// ErrBadSignature indicates the signature does not match the payload.
	ErrBadSignature = errors.New("handoff: signature mismatch")

	// ErrExpired indicates the credential is past its expiry.
	ErrExpired = errors.New("handoff: credential expired")

	// ErrWrongPurpose indicates the credential was minted for a
	// different use.
	ErrWrongPurpose = errors.New("handoff: wrong purpose")
)

// Claims is the signed claim set carried by a handoff credential.
type Claims struct {
	UserID   string `json:"user_id"`
	TeamID   string `json:"team_id"`
	Purpose  string `json:"purpose"`
	IssuedAt int64  `json:"iat"`
	Expires  int64  `json:"exp"`
}

// Minter mints and verifies handoff credentials with a server-held secret.
//
// Minter is stateless and safe for concurrent use.
type Minter struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option adjusts Minter construction. Only tests should need these.
type Option func(*Minter)

// WithTTL overrides the credential lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Minter) { m.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Minter) { m.now = now }
}

// NewMinter creates a Minter. An empty secret returns ErrNoSecret so the
// misconfiguration surfaces at startup rather than on first use.
func NewMinter(secret []byte, opts ...Option) (*Minter, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	m := &Minter{secret: secret, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mint issues a compact signed token binding userID and teamID to the
// handoff purpose for the fixed lifetime.
//
// Token shape: base64url(JSON claims) + "." + hex(HMAC-SHA256(payload)).
func (m *Minter) Mint(userID, teamID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("handoff: user id is required")
	}
	if strings.TrimSpace(teamID) == "" {
		return "", fmt.Errorf("handoff: team id is required")
	}

	now := m.now().UTC()
	claims := Claims{
		UserID:   userID,
		TeamID:   teamID,
		Purpose:  Purpose,
		IssuedAt: now.Unix(),
		Expires:  now.Add(m.ttl).Unix(),
	}

	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(body)
	return payload + "." + m.sign(payload), nil
}

// Verify checks the token's signature, purpose, and expiry and returns
// the embedded claims. Signature is checked before anything is decoded
// from the payload.
func (m *Minter) Verify(token string) (*Claims, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return nil, ErrMalformed
	}

	expected := m.sign(payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, ErrBadSignature
	}

	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrMalformed
	}

	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, ErrMalformed
	}

	if claims.Purpose != Purpose {
		return nil, ErrWrongPurpose
	}
	if m.now().UTC().Unix() >= claims.Expires {
		return nil, ErrExpired
	}
	return &claims, nil
}

// sign returns the hex HMAC-SHA256 signature for payload.
func (m *Minter) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
