package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/AlouiLouai/educ/internal/config"
	"github.com/AlouiLouai/educ/internal/models"
)

var ErrExchangeFailed = errors.New("oauth code exchange failed")

// Provider is the external OAuth identity provider.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.ProviderUser, error)
}

type OAuthProvider struct {
	name        string
	config      oauth2.Config
	userInfoURL string
}

func NewOAuthProvider(cfg config.OAuthConfig) *OAuthProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" || cfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		}
	}

	return &OAuthProvider{
		name: cfg.Provider,
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func (p *OAuthProvider) Exchange(ctx context.Context, code string) (models.ProviderUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return models.ProviderUser{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	user, err := p.fetchUserInfo(ctx, tok)
	if err != nil {
		return models.ProviderUser{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return user, nil
}

func (p *OAuthProvider) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (models.ProviderUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return models.ProviderUser{}, err
	}

	res, err := p.config.Client(ctx, tok).Do(req)
	if err != nil {
		return models.ProviderUser{}, fmt.Errorf("userinfo: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return models.ProviderUser{}, fmt.Errorf("userinfo: unexpected status %d", res.StatusCode)
	}

	var user models.ProviderUser
	if err := json.NewDecoder(res.Body).Decode(&user); err != nil {
		return models.ProviderUser{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if user.Subject == "" {
		return models.ProviderUser{}, errors.New("userinfo: missing subject")
	}
	user.Provider = p.name
	return user, nil
}
