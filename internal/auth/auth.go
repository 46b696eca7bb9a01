// Package auth resolves the calling actor from a bearer token or trusted
// gateway headers and carries it in the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aslmarket/aslmatch/internal/config"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/pkg/httputil"
)

// Gateway headers set by the upstream identity proxy.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims is the JWT payload of an ASL Market session.
type Claims struct {
	ActorID string           `json:"actor_id"`
	Role    domain.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

// Manager validates credentials and resolves actors.
type Manager struct {
	secret       []byte
	trustHeaders bool
	now          func() time.Time
}

// NewManager creates a Manager from the auth config.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		secret:       []byte(cfg.JWTSecret),
		trustHeaders: cfg.TrustGatewayHeaders,
		now:          time.Now,
	}
}

// Issue signs an HS256 token for actor. Used by tests and local tooling;
// production tokens come from the account service.
func (m *Manager) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := m.now()
	claims := &Claims{
		ActorID: actor.ID,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse verifies tokenString and returns the actor it names.
func (m *Manager) Parse(tokenString string) (domain.Actor, error) {
	if len(m.secret) == 0 {
		return domain.Actor{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	id := claims.ActorID
	if id == "" {
		id = claims.Subject
	}
	actor := domain.Actor{ID: id, Role: claims.Role}
	if actor.ID == "" || !actor.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: missing actor id or role", ErrInvalidToken)
	}
	return actor, nil
}

// Resolve extracts the actor of r: a bearer token wins, gateway headers are
// consulted only when trusted.
func (m *Manager) Resolve(r *http.Request) (domain.Actor, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return domain.Actor{}, ErrInvalidToken
		}
		return m.Parse(strings.TrimSpace(token))
	}
	if m.trustHeaders {
		actor := domain.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: domain.ActorRole(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
		}
		if actor.ID != "" && actor.Role.Valid() {
			return actor, nil
		}
	}
	return domain.Actor{}, ErrMissingCredentials
}

// RequireAuth rejects requests without a resolvable actor and stores the
// actor in the context otherwise.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.Resolve(r)
		if err != nil {
			httputil.Unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFrom returns the actor stored by RequireAuth.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(domain.Actor)
	return a, ok
}
