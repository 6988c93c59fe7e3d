package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlouiLouai/educ/internal/security"
)

var ErrInvalidState = errors.New("invalid oauth state")

const stateKeyPrefix = "oauth:state:"

// Hints travel through the provider round-trip alongside the state value.
type Hints struct {
	Next string `json:"next,omitempty"`
	Role string `json:"role,omitempty"`
	Mode string `json:"mode,omitempty"`
}

type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Issue(ctx context.Context, hints Hints) (string, error) {
	state, err := security.RandomToken(32)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(hints)
	if err != nil {
		return "", fmt.Errorf("encode hints: %w", err)
	}

	if err := s.client.Set(ctx, stateKeyPrefix+state, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return state, nil
}

// Consume returns the hints for state and deletes it, so a state can be used once.
func (s *StateStore) Consume(ctx context.Context, state string) (Hints, error) {
	if state == "" {
		return Hints{}, ErrInvalidState
	}

	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Hints{}, ErrInvalidState
		}
		return Hints{}, fmt.Errorf("load state: %w", err)
	}

	var hints Hints
	if err := json.Unmarshal(raw, &hints); err != nil {
		return Hints{}, fmt.Errorf("decode hints: %w", err)
	}
	return hints, nil
}
