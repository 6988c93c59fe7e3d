package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/AlouiLouai/educ/internal/models"
)

// IdentityStore persists identity records. Satisfied by repository.IdentityRepository.
type IdentityStore interface {
	UpsertFromProvider(ctx context.Context, user models.ProviderUser) (models.Identity, bool, error)
	GetByID(ctx context.Context, id string) (models.Identity, error)
	UpdateAppMetadata(ctx context.Context, id string, meta models.AppMetadata) error
	Delete(ctx context.Context, id string) error
}

type Session struct {
	Token    string
	Identity models.Identity
	// Created is true when the identity row was inserted by this exchange.
	Created bool
}

// Service plays the part of a hosted auth backend: it runs the OAuth exchange,
// owns identity records and issues sessions.
type Service struct {
	provider   Provider
	identities IdentityStore
	sessions   *SessionStore
	states     *StateStore
	log        zerolog.Logger
}

func NewService(provider Provider, identities IdentityStore, sessions *SessionStore, states *StateStore, log zerolog.Logger) *Service {
	return &Service{
		provider:   provider,
		identities: identities,
		sessions:   sessions,
		states:     states,
		log:        log,
	}
}

func (s *Service) LoginURL(ctx context.Context, hints Hints) (string, error) {
	state, err := s.states.Issue(ctx, hints)
	if err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(state), nil
}

func (s *Service) ConsumeState(ctx context.Context, state string) (Hints, error) {
	return s.states.Consume(ctx, state)
}

func (s *Service) ExchangeCodeForSession(ctx context.Context, code string) (Session, error) {
	user, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return Session{}, err
	}

	identity, created, err := s.identities.UpsertFromProvider(ctx, user)
	if err != nil {
		return Session{}, fmt.Errorf("record identity: %w", err)
	}

	token, err := s.sessions.Create(ctx, identity.ID)
	if err != nil {
		return Session{}, err
	}

	s.log.Debug().
		Str("user_id", identity.ID).
		Bool("created", created).
		Msg("session issued")

	return Session{Token: token, Identity: identity, Created: created}, nil
}

func (s *Service) GetUser(ctx context.Context, token string) (models.Identity, error) {
	identityID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("load identity: %w", err)
	}
	return identity, nil
}

func (s *Service) UpdateAppMetadata(ctx context.Context, identityID string, meta models.AppMetadata) error {
	return s.identities.UpdateAppMetadata(ctx, identityID, meta)
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// AdminDeleteUser removes the identity and every session it holds. Only the
// account deletion flow, the orphan sweep and the CLI call it.
func (s *Service) AdminDeleteUser(ctx context.Context, identityID string) error {
	if err := s.identities.Delete(ctx, identityID); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if err := s.sessions.RevokeAll(ctx, identityID); err != nil {
		s.log.Warn().Err(err).Str("user_id", identityID).Msg("revoke sessions after delete failed")
	}
	return nil
}

func IsSessionMissing(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
