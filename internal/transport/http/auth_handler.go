package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"pipeband-quiz-service/internal/auth"
	"pipeband-quiz-service/internal/domain"
	"pipeband-quiz-service/internal/playback"
)

const refreshCookieTTL = 30 * 24 * time.Hour

// UserRegistrar records a player after login.
type UserRegistrar interface {
	RegisterUser(ctx context.Context, profile domain.Profile) (string, error)
}

// AuthHandler runs the login flow and keeps the provider cookies fresh.
type AuthHandler struct {
	provider *auth.Provider
	tokens   *auth.TokenService
	users    UserRegistrar
	baseURL  string
	secure   bool
}

func NewAuthHandler(provider *auth.Provider, tokens *auth.TokenService, users UserRegistrar, baseURL string, secure bool) *AuthHandler {
	return &AuthHandler{provider: provider, tokens: tokens, users: users, baseURL: baseURL, secure: secure}
}

// Login redirects to the provider's consent page.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.LoginURL(state), http.StatusFound)
}

// Callback completes login: exchanges the code, records the user, and sets cookies.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") != "" {
		log.Warn().Str("error", q.Get("error")).Msg("authorization denied")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirect(w, r, "/?error=no_code")
		return
	}
	if c, err := r.Cookie(stateCookie); err != nil || c.Value == "" || c.Value != q.Get("state") {
		log.Warn().Msg("oauth state mismatch")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}
	h.clearCookie(w, stateCookie)

	tok, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("token exchange failed")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}
	profile, err := h.provider.Profile(r.Context(), tok.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("profile fetch failed")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}
	userID, err := h.users.RegisterUser(r.Context(), profile)
	if err != nil {
		log.Error().Err(err).Str("spotify_id", profile.ID).Msg("user upsert failed")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}
	session, err := h.tokens.Issue(userID, profile.ID)
	if err != nil {
		log.Error().Err(err).Msg("issue session failed")
		h.redirect(w, r, "/?error=auth_failed")
		return
	}

	h.setTokenCookies(w, tok)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("user_id", userID).Msg("user signed in")
	h.redirect(w, r, "/quiz")
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// Refresh swaps the refresh cookie for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(refreshCookie)
	if err != nil || c.Value == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token")
		return
	}
	tok, err := h.provider.Refresh(r.Context(), c.Value)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed")
		writeError(w, http.StatusUnauthorized, "Failed to refresh token")
		return
	}
	h.setTokenCookies(w, tok)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: tok.AccessToken, ExpiresIn: expiresIn(tok)})
}

// Logout clears every auth cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{sessionCookie, accessCookie, refreshCookie} {
		h.clearCookie(w, name)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Engine builds a playback engine acting with the caller's provider tokens. The client
// refreshes the access token on its own when it expires.
func (h *AuthHandler) Engine(r *http.Request) (playback.Engine, error) {
	tok := &oauth2.Token{}
	if c, err := r.Cookie(accessCookie); err == nil {
		tok.AccessToken = c.Value
		tok.Expiry = time.Now().Add(time.Minute)
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		tok.RefreshToken = c.Value
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("no provider tokens")
	}
	return h.provider.API(context.Background(), tok), nil
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, tok *oauth2.Token) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    tok.AccessToken,
		Path:     "/",
		MaxAge:   expiresIn(tok),
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if tok.RefreshToken != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     refreshCookie,
			Value:    tok.RefreshToken,
			Path:     "/",
			MaxAge:   int(refreshCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, Secure: h.secure})
}

func (h *AuthHandler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.baseURL+path, http.StatusFound)
}

func expiresIn(tok *oauth2.Token) int {
	if tok.Expiry.IsZero() {
		return 3600
	}
	secs := int(time.Until(tok.Expiry).Seconds())
	if secs <= 0 {
		return 1
	}
	return secs
}
