// Package identity verifies session tokens issued by the identity provider
// and carries the caller's identity through request contexts.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	svcErr "github.com/oggyb/campus-match/internal/errors"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	UserID        string
	Email         string
	EmailVerified bool
	Role          string
	SID           string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// EmailHash is the only form in which an email address is stored.
func (i Identity) EmailHash() string { return HashEmail(i.Email) }

// HashEmail returns hex(sha256(lower(trim(email)))).
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

type tokenClaims struct {
	SID           string `json:"sid"`
	Role          string `json:"role"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Verifier parses and (for dev tooling and tests) issues HS256 session tokens.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewVerifier(secret, issuer string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for id. Returns the token and its expiry.
func (v *Verifier) Issue(id Identity) (string, time.Time, error) {
	if len(v.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if strings.TrimSpace(id.UserID) == "" {
		return "", time.Time{}, fmt.Errorf("invalid token payload")
	}
	if id.Role == "" {
		id.Role = RoleUser
	}

	now := v.now().UTC()
	expiresAt := now.Add(v.ttl)
	claims := tokenClaims{
		SID:           id.SID,
		Role:          id.Role,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates raw and returns the identity it carries.
func (v *Verifier) Parse(raw string) (Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return Identity{}, svcErr.Unauthenticated("missing session token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || token == nil || !token.Valid {
		return Identity{}, svcErr.Unauthenticated("invalid or expired session")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, svcErr.Unauthenticated("invalid or expired session")
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          role,
		SID:           claims.SID,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

type ctxKey int

const (
	identityKey ctxKey = iota
	clientIPKey
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Require returns the caller or an Unauthenticated error.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok || id.UserID == "" {
		return Identity{}, svcErr.Unauthenticated("sign in required")
	}
	return id, nil
}

// RequireAdmin returns the caller if they hold the admin role.
func RequireAdmin(ctx context.Context) (Identity, error) {
	id, err := Require(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin() {
		return Identity{}, svcErr.PermissionDenied("admin role required")
	}
	return id, nil
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
