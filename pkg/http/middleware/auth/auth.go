// Package auth authenticates requests with HMAC-signed JWTs issued by the
// identity provider. The subject claim is the actor id and the role claim its
// role.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey struct{}

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator validates tokens.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewAuthenticator creates an Authenticator. Empty issuer or audience
// disables the respective check.
func NewAuthenticator(secret []byte, issuer, audience string) *Authenticator {
	return &Authenticator{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
	}
}

// Parse validates raw and returns the actor it identifies.
func (a *Authenticator) Parse(raw string) (actor.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return actor.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if claims.Subject == "" {
		return actor.Actor{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	role, err := actor.ParseRole(claims.Role)
	if err != nil {
		return actor.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return actor.Actor{ID: claims.Subject, Role: role}, nil
}

// Sign issues a token for a. Used by tests and local tooling.
func (a *Authenticator) Sign(act actor.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: act.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   act.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// TokenFromRequest reads the bearer token from the Authorization header, or
// from the token query parameter for websocket handshakes that cannot set
// headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}

	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and stores the actor in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := TokenFromRequest(r)
		if raw == "" {
			unauthorized(w, "missing bearer token")

			return
		}

		act, err := a.Parse(raw)
		if err != nil {
			unauthorized(w, err.Error())

			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), act)))
	})
}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a actor.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFromContext returns the authenticated actor.
func ActorFromContext(ctx context.Context) (actor.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(actor.Actor)

	return a, ok
}

func unauthorized(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated", "message": desc})
}
