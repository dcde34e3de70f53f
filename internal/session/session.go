// Package session resolves who a request acts as: a Supabase user from a
// bearer token, a guest from X-Session-ID, or nobody.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/naijastore/naijastore-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// HeaderSessionID carries the guest session id.
const HeaderSessionID = "X-Session-ID"

var guestIDFormat = regexp.MustCompile(`^guest_[0-9a-f]{16}_[0-9a-f]{16}$`)

// Claims are the Supabase access token claims the API reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues guest sessions and validates Supabase access tokens.
type Manager struct {
	jwtSecret []byte
	audience  string
}

// NewManager creates a Manager for the project's JWT secret.
func NewManager(jwtSecret string) *Manager {
	return &Manager{jwtSecret: []byte(jwtSecret), audience: "authenticated"}
}

// Issue derives a guest session id from the browser fingerprint. The hash
// groups requests from one browser; the random suffix keeps two browsers
// with identical fingerprints apart.
func (m *Manager) Issue(fp domain.Fingerprint) (*domain.GuestSession, error) {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		fp.UserAgent,
		fp.AcceptLanguage,
		fp.Platform,
		fp.Timezone,
		fp.Screen,
		strconv.Itoa(fp.ColorDepth),
		fp.UABrands,
		fp.UAPlatform,
		fp.UAMobile,
	}, "|")))

	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate session nonce: %w", err)
	}

	id := "guest_" + hex.EncodeToString(sum[:8]) + "_" + hex.EncodeToString(nonce)
	return &domain.GuestSession{SessionID: id, Header: HeaderSessionID}, nil
}

// ValidGuestID reports whether id has the guest session format.
func ValidGuestID(id string) bool {
	return guestIDFormat.MatchString(id)
}

// ValidateToken parses a Supabase access token.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	if len(m.jwtSecret) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "token validation is not configured"}
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	}, jwt.WithAudience(m.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

// Resolve builds the identity for r. A valid bearer token wins over the
// guest header, but the guest id is kept so its cart can be merged. An
// invalid bearer token is reported alongside the guest-only identity.
func (m *Manager) Resolve(r *http.Request) (domain.Identity, error) {
	var id domain.Identity
	if sid := strings.TrimSpace(r.Header.Get(HeaderSessionID)); ValidGuestID(sid) {
		id.SessionID = sid
	}

	token := bearerToken(r)
	if token == "" {
		return id, nil
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		return id, err
	}
	id.UserID = claims.Subject
	id.Email = claims.Email
	id.Token = token
	return id, nil
}

// Headers returns the request headers a storefront client should send for
// the identity.
func Headers(id domain.Identity) http.Header {
	h := http.Header{}
	if id.Token != "" {
		h.Set("Authorization", "Bearer "+id.Token)
	}
	if id.SessionID != "" {
		h.Set(HeaderSessionID, id.SessionID)
	}
	return h
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
