package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medislot/pkg/model"
)

const testSecret = "test-secret-0123456789"

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret)
	want := model.Actor{ID: "p1", Role: model.RolePatient, Name: "Ada"}

	tok, err := v.Sign(want, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier(testSecret)
	actor := model.Actor{ID: "d1", Role: model.RoleDoctor}

	expired, err := v.Sign(actor, -time.Hour)
	require.NoError(t, err)

	other, err := NewVerifier("another-secret-9876543210").Sign(actor, time.Minute)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "x", Role: "doctor"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           "x",
		Role:             "nurse",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-jwt", ErrBadToken},
		{"expired", expired, ErrBadToken},
		{"wrong secret", other, ErrBadToken},
		{"no expiry", noExp, ErrBadToken},
		{"unknown role", badRole, ErrBadClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClaims_SubjectFallback(t *testing.T) {
	c := &Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "a1"}}
	actor, err := c.Actor()
	require.NoError(t, err)
	assert.Equal(t, "a1", actor.ID)
	assert.True(t, actor.IsAdmin())
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?token=q", nil)
	assert.Empty(t, TokenFromRequest(r), "query token must be ignored outside websocket upgrades")

	r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "c"})
	assert.Equal(t, "c", TokenFromRequest(r))

	r.Header.Set(AuthorizationHeader, "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	ws := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=q", nil)
	ws.Header.Set("Upgrade", "websocket")
	assert.Equal(t, "q", TokenFromRequest(ws))
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), model.Actor{ID: "u", Role: model.RoleAdmin})
	actor, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", actor.ID)
}
