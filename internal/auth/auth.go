// Package auth turns request credentials into an application.Principal.
//
// Two modes are supported. With a JWT secret, callers present an HS256
// bearer token whose claims carry user_id and role. Without one, the service
// sits behind a gateway and trusts its x-user-id and x-user-role headers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zulfie1003/InternTrack/internal/application"
)

const (
	HeaderAuthorization = "authorization"
	HeaderUserID        = "x-user-id"
	HeaderUserRole      = "x-user-role"
)

// Claims are the JWT claims understood by the tracker.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Credentials are the raw identity values of one request, whatever the
// transport.
type Credentials struct {
	Authorization string
	UserID        string
	Role          string
}

// Resolver validates credentials.
type Resolver struct {
	secret []byte
}

// NewResolver returns a Resolver. An empty secret selects gateway header
// mode.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

// HeaderMode reports whether identity is taken from gateway headers.
func (r *Resolver) HeaderMode() bool { return len(r.secret) == 0 }

// Resolve returns the principal behind c. Every failure wraps
// application.ErrUnauthenticated.
func (r *Resolver) Resolve(c Credentials) (application.Principal, error) {
	if r.HeaderMode() {
		id := strings.TrimSpace(c.UserID)
		if id == "" {
			return application.Principal{}, fmt.Errorf("%w: missing %s", application.ErrUnauthenticated, HeaderUserID)
		}
		return application.Principal{UserID: id, Role: parseRole(c.Role)}, nil
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(c.Authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return application.Principal{}, fmt.Errorf("%w: missing bearer token", application.ErrUnauthenticated)
	}

	claims, err := r.parse(token)
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", application.ErrUnauthenticated, err)
	}
	return application.Principal{UserID: claims.UserID, Role: parseRole(claims.Role)}, nil
}

func (r *Resolver) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user_id")
	}
	return claims, nil
}

// Issue signs a token for userID. It backs local tooling and tests; tokens
// in production come from the auth service.
func (r *Resolver) Issue(userID string, role application.Role, ttl time.Duration) (string, error) {
	if r.HeaderMode() {
		return "", errors.New("no JWT secret configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}

func parseRole(s string) application.Role {
	if strings.EqualFold(strings.TrimSpace(s), string(application.RoleAdmin)) {
		return application.RoleAdmin
	}
	return application.RoleUser
}

// ─── Context ─────────────────────────────────────────────────────────────────

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p application.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal. The zero
// Principal is returned when none is present; core operations reject it.
func FromContext(ctx context.Context) application.Principal {
	p, _ := ctx.Value(ctxKey{}).(application.Principal)
	return p
}
