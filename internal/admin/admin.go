package admin

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/sitefreelance/backend/internal/config"
	apierrors "github.com/sitefreelance/backend/internal/errors"
)

// sessionSubject marks tokens issued by Login
const sessionSubject = "admin"

// Password checks run argon2id, which holds 64 MiB while it works. At most
// maxPasswordChecks run at once; callers wait up to passwordCheckWait.
const (
	maxPasswordChecks = 2
	passwordCheckWait = 2 * time.Second
	maxCredentialLen  = 1024
)

// Gate errors. All unwrap to apierrors.ErrAuth.
var (
	ErrDisabled       = errors.New("admin access is not configured")
	ErrBadCredential  = errors.New("invalid admin credential")
	ErrSessionExpired = errors.New("admin session has expired")
	ErrBusy           = errors.New("too many admin password checks in flight")
)

// Session is the credential handed out by Login. It is as powerful as the
// password itself until it expires.
type Session struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session is past its expiry. A zero expiry never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Claims carried by a session token
type Claims struct {
	jwt.RegisteredClaims
}

// Gate verifies the shared admin secret and the sessions derived from it
type Gate struct {
	hash   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	checks chan struct{}
	wait   time.Duration
}

// NewGate builds a gate from configuration. An argon2id hash takes precedence
// over the plain password; with neither the gate rejects everything.
func NewGate(cfg *config.AdminConfig) (*Gate, error) {
	g := &Gate{
		ttl:    cfg.SessionTTL,
		now:    time.Now,
		checks: make(chan struct{}, maxPasswordChecks),
		wait:   passwordCheckWait,
	}

	switch {
	case cfg.PasswordHash != "":
		if _, _, _, err := argon2id.DecodeHash(cfg.PasswordHash); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_PASSWORD_HASH: %w", err)
		}
		g.hash = cfg.PasswordHash
	case cfg.Password != "":
		hash, err := argon2id.CreateHash(cfg.Password, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		g.hash = hash
	default:
		log.Warn().Msg("No admin secret configured, admin routes are disabled")
	}

	if cfg.SessionSecret != "" {
		g.secret = []byte(cfg.SessionSecret)
	} else {
		// Sessions then do not survive a restart
		g.secret = randomBytes(32)
	}

	return g, nil
}

// Enabled reports whether an admin secret is configured
func (g *Gate) Enabled() bool {
	return g.hash != ""
}

// Login checks the password and issues a session token
func (g *Gate) Login(password string) (*Session, error) {
	if err := g.checkPassword(password); err != nil {
		return nil, err
	}

	now := g.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sessionSubject,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       generateJTI(),
		},
	}
	session := &Session{IssuedAt: now.Truncate(time.Second)}
	if g.ttl > 0 {
		session.ExpiresAt = now.Add(g.ttl).Truncate(time.Second)
		claims.ExpiresAt = jwt.NewNumericDate(session.ExpiresAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign admin session: %w", err)
	}
	session.Token = token

	return session, nil
}

// Verify accepts either the raw admin password or a live session token.
// Every privileged operation calls it; nothing is remembered between calls.
func (g *Gate) Verify(credential string) error {
	if !g.Enabled() {
		return authError(ErrDisabled)
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return authError(ErrBadCredential)
	}

	if looksLikeToken(credential) {
		err := g.verifyToken(credential)
		if err == nil || errors.Is(err, ErrSessionExpired) {
			return err
		}
	}
	return g.checkPassword(credential)
}

func (g *Gate) checkPassword(password string) error {
	if !g.Enabled() {
		return authError(ErrDisabled)
	}
	if password == "" || len(password) > maxCredentialLen {
		return authError(ErrBadCredential)
	}

	timer := time.NewTimer(g.wait)
	defer timer.Stop()
	select {
	case g.checks <- struct{}{}:
		defer func() { <-g.checks }()
	case <-timer.C:
		log.Warn().Msg("Admin password checks saturated, rejecting credential")
		return authError(ErrBusy)
	}

	match, err := argon2id.ComparePasswordAndHash(password, g.hash)
	if err != nil {
		return fmt.Errorf("failed to verify admin password: %w", err)
	}
	if !match {
		return authError(ErrBadCredential)
	}
	return nil
}

func (g *Gate) verifyToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithSubject(sessionSubject), jwt.WithIssuedAt())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return authError(ErrSessionExpired)
		}
		return authError(ErrBadCredential)
	}
	if !token.Valid {
		return authError(ErrBadCredential)
	}
	return nil
}

func authError(reason error) error {
	return fmt.Errorf("%w: %w", apierrors.ErrAuth, reason)
}

// looksLikeToken reports whether s has the three-segment JWT shape
func looksLikeToken(s string) bool {
	return strings.Count(s, ".") == 2
}

// generateJTI generates a unique JWT ID
func generateJTI() string {
	return base64.RawURLEncoding.EncodeToString(randomBytes(16))
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return b
}
