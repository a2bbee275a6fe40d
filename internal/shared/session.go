package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore resolves opaque session tokens to principals. Tokens are
// issued by the login flow of the portal; this side only reads them, apart
// from Put which seeds tokens for tooling and tests.
type SessionStore struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, cookieName string, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, cookieName: cookieName, ttl: ttl}
}

// Resolve loads the principal bound to token.
func (s *SessionStore) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNoPrincipal
	}
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, ErrSessionNotFound
		}
		return Principal{}, err
	}
	var p Principal
	if err := json.Unmarshal(payload, &p); err != nil {
		return Principal{}, err
	}
	if p.UserID == "" || !p.Business.Valid() {
		return Principal{}, ErrSessionNotFound
	}
	return p, nil
}

// Put stores a principal under a fresh token and returns the token.
func (s *SessionStore) Put(ctx context.Context, p Principal) (string, error) {
	token := uuid.NewString()
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.redisKey(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func (s *SessionStore) TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// CookieName returns the cookie identifier used for sessions.
func (s *SessionStore) CookieName() string {
	return s.cookieName
}

func (s *SessionStore) redisKey(token string) string {
	return "session:" + token
}
