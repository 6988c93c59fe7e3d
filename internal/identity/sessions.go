package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlouiLouai/educ/internal/security"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "sessions:"
)

// SessionStore issues signed session tokens backed by a revocable Redis record.
type SessionStore struct {
	client *redis.Client
	secret string
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, secret string, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, secret: secret, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, identityID string) (string, error) {
	sessionID, err := security.RandomToken(24)
	if err != nil {
		return "", err
	}

	token, err := security.GenerateSessionToken(s.secret, identityID, sessionID, s.ttl)
	if err != nil {
		return "", err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKeyPrefix+sessionID, identityID, s.ttl)
		pipe.SAdd(ctx, userSessionKeyPrefix+identityID, sessionID)
		pipe.Expire(ctx, userSessionKeyPrefix+identityID, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Resolve returns the identity id a live session token belongs to.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := security.ParseSessionToken(token, s.secret)
	if err != nil {
		return "", ErrSessionNotFound
	}

	identityID, err := s.client.Get(ctx, sessionKeyPrefix+claims.SessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("load session: %w", err)
	}
	if identityID != claims.IdentityID {
		return "", ErrSessionNotFound
	}
	return identityID, nil
}

// Revoke ends one session. Unparseable tokens have nothing to revoke.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	claims, err := security.ParseSessionToken(token, s.secret)
	if err != nil {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeyPrefix+claims.SessionID)
		pipe.SRem(ctx, userSessionKeyPrefix+claims.IdentityID, claims.SessionID)
		return nil
	})
	return err
}

func (s *SessionStore) RevokeAll(ctx context.Context, identityID string) error {
	setKey := userSessionKeyPrefix + identityID
	sessionIDs, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, setKey)

	return s.client.Del(ctx, keys...).Err()
}
