package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pipeband-quiz-service/internal/domain"
)

const issuer = "pipeband-quiz"

// Claims identify the player behind a session cookie.
type Claims struct {
	SpotifyID string `json:"spotify_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for userID.
func (s *TokenService) Issue(userID, spotifyID string) (string, error) {
	now := s.now()
	claims := Claims{
		SpotifyID: spotifyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies token and returns its claims. Any failure is reported as ErrUnauthorized.
func (s *TokenService) Parse(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token without subject", domain.ErrUnauthorized)
	}
	return claims, nil
}
