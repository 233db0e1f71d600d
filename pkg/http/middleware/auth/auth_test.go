package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestAuthenticator_Parse(t *testing.T) {
	a := NewAuthenticator(secret, "idp", "marketplace")
	buyer := actor.Actor{ID: "buyer-1", Role: actor.RoleBuyer}

	valid, err := a.Sign(buyer, time.Minute)
	require.NoError(t, err)

	expired, err := a.Sign(buyer, -time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewAuthenticator(secret, "someone-else", "marketplace").Sign(buyer, time.Minute)
	require.NoError(t, err)

	wrongSecret, err := NewAuthenticator([]byte("other"), "idp", "marketplace").Sign(buyer, time.Minute)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "x",
			Issuer:   "idp",
			Audience: jwt.ClaimStrings{"marketplace"},
		},
	}).SignedString(secret)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "idp"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    actor.Actor
		wantErr bool
	}{
		{name: "valid", token: valid, want: buyer},
		{name: "expired", token: expired, wantErr: true},
		{name: "wrong issuer", token: otherIssuer, wantErr: true},
		{name: "wrong secret", token: wrongSecret, wantErr: true},
		{name: "unknown role", token: badRole, wantErr: true},
		{name: "unsigned", token: noneAlg, wantErr: true},
		{name: "garbage", token: "not-a-jwt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Parse(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnauthenticated)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	a := NewAuthenticator(secret, "", "")
	admin := actor.Actor{ID: "admin-1", Role: actor.RoleAdmin}

	token, err := a.Sign(admin, time.Minute)
	require.NoError(t, err)

	var seen actor.Actor
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "query token", query: "?token=" + token, wantStatus: http.StatusNoContent},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = actor.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/orders"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, admin, seen)
			} else {
				assert.Equal(t, actor.Actor{}, seen)
			}
		})
	}
}
