// Package auth verifies bearer tokens issued by the external identity service
// and carries the resulting actor through request contexts.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "medislot/pkg/errors"
	"medislot/pkg/model"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	TokenCookie         = "authToken"
	TokenQueryParam     = "token"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrBadToken     = errors.New("invalid token")
	ErrBadClaims    = errors.New("token claims missing id or role")
)

// Claims mirrors what the identity service puts in its tokens. Older tokens
// carry the user id under "id"; newer ones use the registered "sub".
type Claims struct {
	UserID string `json:"id,omitempty"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() (model.Actor, error) {
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	role, ok := model.ParseRole(c.Role)
	if id == "" || !ok {
		return model.Actor{}, ErrBadClaims
	}
	return model.Actor{ID: id, Role: role, Name: c.Name}, nil
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Verify(raw string) (model.Actor, error) {
	if raw == "" {
		return model.Actor{}, ErrMissingToken
	}
	claims := &Claims{}
	tok, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return model.Actor{}, ErrBadToken
	}
	return claims.Actor()
}

// Sign issues a token for the given actor. Production tokens come from the
// identity service; this exists for local tooling and tests.
func (v *Verifier) Sign(actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: actor.ID,
		Role:   string(actor.Role),
		Name:   actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
}

// TokenFromRequest looks for a token in the Authorization header, then the
// auth cookie. The query parameter is honoured only on websocket upgrades,
// since browsers cannot set headers on those.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(AuthorizationHeader); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if isWebsocketUpgrade(r) {
		return r.URL.Query().Get(TokenQueryParam)
	}
	return ""
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}

// RequireActor returns the authenticated actor or an Unauthorized AppError.
func RequireActor(ctx context.Context) (model.Actor, error) {
	actor, ok := ActorFrom(ctx)
	if !ok || actor.ID == "" {
		return model.Actor{}, apperrors.Unauthorized("Authentication required")
	}
	return actor, nil
}
