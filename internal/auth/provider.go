package auth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"

	"pipeband-quiz-service/internal/domain"
	spotifyapi "pipeband-quiz-service/internal/spotify"
)

// ProviderConfig configures the identity provider. A zero Endpoint means Spotify's.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	APIBaseURL   string
}

// Provider wraps the authorization code flow and the calls made on behalf of a user.
type Provider struct {
	cfg        *oauth2.Config
	apiBaseURL string
}

func NewProvider(pc ProviderConfig) *Provider {
	endpoint := pc.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = spotify.Endpoint
	}
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: pc.APIBaseURL,
	}
}

// LoginURL is where the browser is sent to begin login.
func (p *Provider) LoginURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// Refresh obtains a new access token. The refresh token is carried over when the provider
// does not rotate it.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, domain.ErrUnauthorized
	}
	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}

// HTTPClient returns a client that authorizes with tok and refreshes it when it expires.
func (p *Provider) HTTPClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return p.cfg.Client(ctx, tok)
}

// API returns a Web API client acting as the token's owner.
func (p *Provider) API(ctx context.Context, tok *oauth2.Token) *spotifyapi.Client {
	return spotifyapi.NewClient(p.HTTPClient(ctx, tok), p.apiBaseURL)
}

// Profile fetches the user behind accessToken.
func (p *Provider) Profile(ctx context.Context, accessToken string) (domain.Profile, error) {
	profile, err := p.API(ctx, &oauth2.Token{AccessToken: accessToken}).Me(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}
