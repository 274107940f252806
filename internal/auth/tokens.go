package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/models"
)

// ErrInvalidToken covers malformed, expired, wrongly signed and wrongly typed tokens.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims identify the caller of a single request.
type AccessClaims struct {
	UserID   string `json:"_id"`
	Email    string `json:"email"`
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the user id.
type RefreshClaims struct {
	UserID string `json:"_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens. Access and refresh tokens use
// separate secrets so neither can stand in for the other.
type TokenService struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenService builds a token service from the token configuration.
func NewTokenService(cfg config.TokenConfig) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("auth: token secrets are required")
	}
	if cfg.AccessExpiry <= 0 || cfg.RefreshExpiry <= 0 {
		return nil, errors.New("auth: token expiries must be positive")
	}
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessExpiry,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshExpiry,
		now:           time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// IssueAccessToken signs an access token for user.
func (s *TokenService) IssueAccessToken(user models.User) (string, time.Time, error) {
	now := s.now().UTC()
	expires := now.Add(s.accessTTL)
	claims := AccessClaims{
		UserID:   user.ID,
		Email:    user.Email,
		UserName: user.UserName,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// IssueRefreshToken signs a refresh token for user.
func (s *TokenService) IssueRefreshToken(user models.User) (string, time.Time, error) {
	now := s.now().UTC()
	expires := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			// Two refresh tokens minted in the same second must still differ.
			ID: newTokenID(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expires, nil
}

// VerifyAccess validates an access token.
func (s *TokenService) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.parse(token, s.accessSecret, &claims); err != nil {
		return AccessClaims{}, err
	}
	if claims.UserID == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token.
func (s *TokenService) VerifyRefresh(token string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := s.parse(token, s.refreshSecret, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if claims.UserID == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func (s *TokenService) parse(token string, secret []byte, claims jwt.Claims) error {
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
