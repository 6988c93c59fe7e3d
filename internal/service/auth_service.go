package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/AlouiLouai/educ/internal/identity"
	"github.com/AlouiLouai/educ/internal/metrics"
	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/repository"
	"github.com/AlouiLouai/educ/internal/tasks"
)

var ErrDeleteFailed = errors.New("account deletion failed")

const (
	ModeSignIn = "signin"
	ModeSignUp = "signup"
)

// IdentityProvider is satisfied by identity.Service.
type IdentityProvider interface {
	ConsumeState(ctx context.Context, state string) (identity.Hints, error)
	ExchangeCodeForSession(ctx context.Context, code string) (identity.Session, error)
	GetUser(ctx context.Context, token string) (models.Identity, error)
	UpdateAppMetadata(ctx context.Context, identityID string, meta models.AppMetadata) error
	SignOut(ctx context.Context, token string) error
	AdminDeleteUser(ctx context.Context, identityID string) error
}

type ProfileStore interface {
	GetByID(ctx context.Context, id string) (models.Profile, error)
	CreateIfAbsent(ctx context.Context, profile models.Profile) (models.Profile, bool, error)
	Delete(ctx context.Context, id string) error
}

type RoleCache interface {
	Set(ctx context.Context, identityID string, role models.Role) error
	Delete(ctx context.Context, identityID string) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, task tasks.Task) error
}

type AuthOptions struct {
	RequireState bool
	OrphanWindow time.Duration
}

type AuthService struct {
	provider IdentityProvider
	profiles ProfileStore
	roles    RoleCache
	queue    TaskQueue
	opts     AuthOptions
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(provider IdentityProvider, profiles ProfileStore, roles RoleCache, queue TaskQueue, opts AuthOptions, log zerolog.Logger) *AuthService {
	return &AuthService{
		provider: provider,
		profiles: profiles,
		roles:    roles,
		queue:    queue,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
}

type CallbackInput struct {
	Code          string
	State         string
	Next          string
	RequestedRole string
	Mode          string
}

// AuthCookies are the client-readable helper cookies written after a
// successful callback.
type AuthCookies struct {
	Role          models.Role
	ProfileExists bool
}

type CallbackResult struct {
	Redirect     string
	Cookies      *AuthCookies
	SessionToken string
	// ClearSession asks the caller to expire the session and helper cookies.
	ClearSession bool
	Outcome      string
}

const (
	outcomeNoCode          = "no_code"
	outcomeAuthFailed      = "auth_failed"
	outcomeAccountNotFound = "account_not_found"
	outcomeAccountExists   = "account_exists"
	outcomeSignedUp        = "signed_up"
	outcomeSignedIn        = "signed_in"
)

func (s *AuthService) Callback(ctx context.Context, in CallbackInput) CallbackResult {
	res := s.callback(ctx, in)
	metrics.CallbackOutcomes.WithLabelValues(res.Outcome).Inc()
	return res
}

func (s *AuthService) callback(ctx context.Context, in CallbackInput) CallbackResult {
	if in.Code == "" {
		return CallbackResult{Redirect: "/", Outcome: outcomeNoCode}
	}

	in, ok := s.applyStateHints(ctx, in)
	if !ok {
		return authFailed()
	}

	mode := normalizeMode(in.Mode)
	requested := models.Role(in.RequestedRole)
	if !isSelfServiceRole(requested) {
		requested = ""
	}

	session, err := s.provider.ExchangeCodeForSession(ctx, in.Code)
	if err != nil {
		s.log.Error().Err(err).Msg("exchange code for session failed")
		return authFailed()
	}
	if session.Identity.ID == "" {
		s.log.Error().Msg("exchange returned no user")
		return authFailed()
	}
	user := session.Identity
	logger := s.log.With().Str("user_id", user.ID).Str("mode", mode).Logger()

	profile, exists := s.loadProfile(ctx, user, logger)

	switch {
	case !exists && mode == ModeSignIn:
		s.failClosed(ctx, session, logger)
		redirect := "/?error=account_not_found&mode=signup"
		if requested != "" {
			redirect += "&auth=" + string(requested)
		}
		return CallbackResult{Redirect: redirect, ClearSession: true, Outcome: outcomeAccountNotFound}

	case exists && mode == ModeSignUp:
		if err := s.provider.SignOut(ctx, session.Token); err != nil {
			logger.Warn().Err(err).Msg("sign out after account_exists failed")
		}
		// Built by hand to keep the parameter order stable.
		redirect := "/?info=account_exists&auth=" + string(profile.Role) + "&mode=signin"
		return CallbackResult{Redirect: redirect, ClearSession: true, Outcome: outcomeAccountExists}
	}

	outcome := outcomeSignedIn
	profileOK := true
	if !exists {
		outcome = outcomeSignedUp
		profile, profileOK = s.createProfile(ctx, user, requested, logger)
	}

	s.syncIdentity(ctx, user, profile.Role, profileOK, logger)

	return CallbackResult{
		Redirect:     ResolveRedirect(in.Next, profile.Role),
		Cookies:      &AuthCookies{Role: profile.Role, ProfileExists: profileOK},
		SessionToken: session.Token,
		Outcome:      outcome,
	}
}

func authFailed() CallbackResult {
	return CallbackResult{Redirect: "/?error=auth_failed", ClearSession: true, Outcome: outcomeAuthFailed}
}

// applyStateHints consumes the OAuth state and fills in any hint the callback
// URL did not carry. It reports false when a required state is invalid.
func (s *AuthService) applyStateHints(ctx context.Context, in CallbackInput) (CallbackInput, bool) {
	if in.State == "" && !s.opts.RequireState {
		return in, true
	}

	hints, err := s.provider.ConsumeState(ctx, in.State)
	if err != nil {
		if s.opts.RequireState {
			s.log.Warn().Err(err).Msg("oauth state rejected")
			return in, false
		}
		return in, true
	}

	if in.Next == "" {
		in.Next = hints.Next
	}
	if in.RequestedRole == "" {
		in.RequestedRole = hints.Role
	}
	if in.Mode == "" {
		in.Mode = hints.Mode
	}
	return in, true
}

// loadProfile falls back to the identity's app metadata when the profile
// table cannot be read.
func (s *AuthService) loadProfile(ctx context.Context, user models.Identity, logger zerolog.Logger) (models.Profile, bool) {
	profile, err := s.profiles.GetByID(ctx, user.ID)
	if err == nil {
		return profile, true
	}
	if errors.Is(err, repository.ErrProfileNotFound) {
		return models.Profile{}, false
	}

	logger.Error().Err(err).Msg("profile fetch failed, using app metadata")
	if !user.AppMetadata.Profile {
		return models.Profile{}, false
	}
	role := user.AppMetadata.Role
	if !role.Valid() {
		role = models.RoleStudent
	}
	return models.Profile{ID: user.ID, Role: role}, true
}

// failClosed signs the fresh session out and removes an identity this
// request just created, so a sign-in probe leaves no half account behind.
func (s *AuthService) failClosed(ctx context.Context, session identity.Session, logger zerolog.Logger) {
	if err := s.provider.SignOut(ctx, session.Token); err != nil {
		logger.Warn().Err(err).Msg("sign out after account_not_found failed")
	}

	user := session.Identity
	if !session.Created || s.now().Sub(user.CreatedAt) > s.opts.OrphanWindow {
		return
	}
	if err := s.provider.AdminDeleteUser(ctx, user.ID); err != nil {
		logger.Error().Err(err).Msg("delete orphan identity failed")
		return
	}
	logger.Info().Msg("orphan identity removed")
}

func (s *AuthService) createProfile(ctx context.Context, user models.Identity, requested models.Role, logger zerolog.Logger) (models.Profile, bool) {
	role := requested
	if role == "" {
		role = models.RoleStudent
	}

	first, last := SplitName(user.UserMetadata)
	candidate := models.Profile{
		ID:        user.ID,
		FirstName: optional(first),
		LastName:  optional(last),
		Email:     optional(user.Email),
		Role:      role,
		AvatarURL: optional(avatarURL(user.UserMetadata)),
	}

	created, inserted, err := s.profiles.CreateIfAbsent(ctx, candidate)
	if err != nil {
		logger.Error().Err(err).Msg("create profile failed")
		return candidate, false
	}
	if inserted {
		logger.Info().Str("role", string(created.Role)).Msg("profile created")
		return created, true
	}

	// A concurrent callback created the row first; its role wins.
	existing, err := s.profiles.GetByID(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("re-read profile after conflict failed")
		return candidate, false
	}
	return existing, true
}

// syncIdentity re-stamps app metadata and the role cache when they have
// drifted from the profile. Failures are logged only.
func (s *AuthService) syncIdentity(ctx context.Context, user models.Identity, role models.Role, profileOK bool, logger zerolog.Logger) {
	if !profileOK {
		return
	}
	want := models.AppMetadata{Role: role, Profile: true}
	if user.AppMetadata == want {
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := s.provider.UpdateAppMetadata(ctx, user.ID, want); err != nil {
			return fmt.Errorf("update app metadata: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.roles.Set(ctx, user.ID, role); err != nil {
			return fmt.Errorf("cache role: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Warn().Err(err).Msg("identity sync incomplete")
	}
}

// SignOut ends the session behind token. A missing token is not an error.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.provider.SignOut(ctx, token)
}

// DeleteAccount removes the caller's profile and identity. It reports false
// without touching anything when token does not name a live session.
func (s *AuthService) DeleteAccount(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	user, err := s.provider.GetUser(ctx, token)
	if err != nil {
		if identity.IsSessionMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	logger := s.log.With().Str("user_id", user.ID).Logger()

	if err := s.profiles.Delete(ctx, user.ID); err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		logger.Warn().Err(err).Msg("delete profile failed, relying on cascade")
	}

	if err := s.provider.AdminDeleteUser(ctx, user.ID); err != nil {
		logger.Error().Err(err).Msg("delete identity failed")
		return false, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	if err := s.queue.Enqueue(ctx, tasks.PurgePrefix(user.ID+"/")); err != nil {
		logger.Warn().Err(err).Msg("enqueue storage purge failed")
	}
	if err := s.roles.Delete(ctx, user.ID); err != nil {
		logger.Warn().Err(err).Msg("drop cached role failed")
	}
	if err := s.provider.SignOut(ctx, token); err != nil {
		logger.Warn().Err(err).Msg("sign out after delete failed")
	}

	logger.Info().Msg("account deleted")
	return true, nil
}

func normalizeMode(mode string) string {
	if mode == ModeSignUp {
		return ModeSignUp
	}
	return ModeSignIn
}

// isSelfServiceRole reports whether a caller may request role at sign-up.
func isSelfServiceRole(role models.Role) bool {
	return role == models.RoleStudent || role == models.RoleTeacher
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
