package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

var (
	// ErrSessionNotFound indicates the refresh token names a user that no longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token is no longer the one on record.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// SessionStore persists the single valid refresh token of each user. Writes
// touch only the token so they never re-run password hashing.
type SessionStore interface {
	SaveRefreshToken(ctx context.Context, userID, token string) error
	FindSession(ctx context.Context, userID string) (models.User, error)
	ClearRefreshToken(ctx context.Context, userID string) error
}

// Manager rotates token pairs backed by a persistent store.
type Manager struct {
	tokens *TokenService
	store  SessionStore
}

// NewManager constructs a Manager over the provided token service and store.
func NewManager(tokens *TokenService, store SessionStore) *Manager {
	if tokens == nil || store == nil {
		panic("auth: token service and session store must not be nil")
	}
	return &Manager{tokens: tokens, store: store}
}

// Rotate issues a fresh pair for user and records the refresh token,
// invalidating any other outstanding session of that user.
func (m *Manager) Rotate(ctx context.Context, user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	access, accessExp, err := m.tokens.IssueAccessToken(user)
	if err != nil {
		return models.SessionTokens{}, err
	}
	refresh, refreshExp, err := m.tokens.IssueRefreshToken(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SaveRefreshToken(ctx, user.ID, refresh); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, ErrSessionNotFound
		}
		return models.SessionTokens{}, fmt.Errorf("save refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh exchanges a refresh token for a new pair. The token must verify
// against the refresh secret and equal the one currently on record.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, models.User, error) {
	claims, err := m.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return models.SessionTokens{}, models.User{}, err
	}

	user, err := m.store.FindSession(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, models.User{}, ErrSessionNotFound
		}
		return models.SessionTokens{}, models.User{}, fmt.Errorf("load session: %w", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return models.SessionTokens{}, models.User{}, ErrRefreshTokenExpired
	}

	tokens, err := m.Rotate(ctx, user)
	if err != nil {
		return models.SessionTokens{}, models.User{}, err
	}
	return tokens, user.Sanitized(), nil
}

// Revoke clears the stored refresh token of userID.
func (m *Manager) Revoke(ctx context.Context, userID string) error {
	if err := m.store.ClearRefreshToken(ctx, userID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func newTokenID() string {
	return uuid.NewString()
}
