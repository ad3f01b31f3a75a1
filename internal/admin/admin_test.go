package admin

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sitefreelance/backend/internal/config"
	apierrors "github.com/sitefreelance/backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestGate(t testing.TB, ttl time.Duration) *Gate {
	t.Helper()
	g, err := NewGate(&config.AdminConfig{
		Password:      "correct horse",
		SessionSecret: "test-session-secret",
		SessionTTL:    ttl,
	})
	require.NoError(t, err)
	return g
}

func TestGate_LoginAndVerify(t *testing.T) {
	g := newTestGate(t, time.Hour)

	session, err := g.Login("correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.False(t, session.ExpiresAt.IsZero())

	assert.NoError(t, g.Verify(session.Token))
	assert.NoError(t, g.Verify("correct horse"))
}

func TestGate_WrongPassword(t *testing.T) {
	g := newTestGate(t, time.Hour)

	_, err := g.Login("wrong")
	assert.ErrorIs(t, err, apierrors.ErrAuth)
	assert.ErrorIs(t, err, ErrBadCredential)

	assert.ErrorIs(t, g.Verify("wrong"), apierrors.ErrAuth)
	assert.ErrorIs(t, g.Verify(""), apierrors.ErrAuth)
}

func TestGate_Disabled(t *testing.T) {
	g, err := NewGate(&config.AdminConfig{})
	require.NoError(t, err)
	assert.False(t, g.Enabled())

	_, err = g.Login("")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, g.Verify("anything"), apierrors.ErrAuth)
}

func TestGate_PasswordHashTakesPrecedence(t *testing.T) {
	hash, err := argon2id.CreateHash("from-hash", argon2id.DefaultParams)
	require.NoError(t, err)

	g, err := NewGate(&config.AdminConfig{Password: "plain", PasswordHash: hash})
	require.NoError(t, err)

	assert.NoError(t, g.Verify("from-hash"))
	assert.Error(t, g.Verify("plain"))
}

func TestGate_InvalidHashRejected(t *testing.T) {
	_, err := NewGate(&config.AdminConfig{PasswordHash: "not-a-hash"})
	assert.Error(t, err)
}

func TestGate_SessionExpiry(t *testing.T) {
	g := newTestGate(t, time.Minute)
	start := time.Now()
	g.now = func() time.Time { return start }

	session, err := g.Login("correct horse")
	require.NoError(t, err)
	assert.False(t, session.Expired(start))

	g.now = func() time.Time { return start.Add(2 * time.Minute) }
	assert.True(t, session.Expired(g.now()))

	err = g.Verify(session.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, apierrors.ErrAuth)
}

func TestGate_ZeroTTLNeverExpires(t *testing.T) {
	g := newTestGate(t, 0)
	session, err := g.Login("correct horse")
	require.NoError(t, err)
	assert.True(t, session.ExpiresAt.IsZero())
	assert.False(t, session.Expired(time.Now().Add(100*365*24*time.Hour)))

	g.now = func() time.Time { return time.Now().Add(10 * 365 * 24 * time.Hour) }
	assert.NoError(t, g.Verify(session.Token))
}

func TestGate_RejectsForeignTokens(t *testing.T) {
	g := newTestGate(t, time.Hour)

	other := newTestGate(t, time.Hour)
	other.secret = []byte("some-other-secret")
	foreign, err := other.Login("correct horse")
	require.NoError(t, err)
	assert.ErrorIs(t, g.Verify(foreign.Token), ErrBadCredential)

	// Right key, wrong subject
	claims := jwt.RegisteredClaims{Subject: "visitor", IssuedAt: jwt.NewNumericDate(time.Now())}
	wrongSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Verify(wrongSubject), ErrBadCredential)

	// Unsigned tokens are never accepted
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: sessionSubject}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Verify(none), ErrBadCredential)
}

func TestGate_SessionsAreUnique(t *testing.T) {
	g := newTestGate(t, 0)
	a, err := g.Login("correct horse")
	require.NoError(t, err)
	b, err := g.Login("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

// Any credential other than the password or an issued token is refused
func TestProperty_GateRejectsArbitraryCredentials(t *testing.T) {
	g := newTestGate(t, time.Hour)

	rapid.Check(t, func(rt *rapid.T) {
		cred := rapid.String().Draw(rt, "credential")
		if strings.TrimSpace(cred) == "correct horse" {
			rt.Skip("drew the password")
		}
		err := g.Verify(cred)
		if !errors.Is(err, apierrors.ErrAuth) {
			rt.Fatalf("Expected auth error for %q, got %v", cred, err)
		}
	})
}

func TestGate_PasswordChecksAreCapped(t *testing.T) {
	g := newTestGate(t, time.Hour)
	g.wait = 20 * time.Millisecond

	// Occupy every slot
	for i := 0; i < cap(g.checks); i++ {
		g.checks <- struct{}{}
	}

	err := g.Verify("correct horse")
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, apierrors.ErrAuth)

	_, err = g.Login("correct horse")
	assert.ErrorIs(t, err, ErrBusy)

	for i := 0; i < cap(g.checks); i++ {
		<-g.checks
	}
	assert.NoError(t, g.Verify("correct horse"))
	assert.Zero(t, len(g.checks), "a finished check must release its slot")
}

func TestGate_OversizedCredentialSkipsHashing(t *testing.T) {
	g := newTestGate(t, time.Hour)
	g.wait = 0

	// Slots full and no wait: only a check that never hashes can answer ErrBadCredential
	for i := 0; i < cap(g.checks); i++ {
		g.checks <- struct{}{}
	}
	err := g.Verify(strings.Repeat("x", maxCredentialLen+1))
	assert.ErrorIs(t, err, ErrBadCredential)
}
