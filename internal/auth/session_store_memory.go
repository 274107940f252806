package auth

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore(users ...models.User) *InMemorySessionStore {
	s := &InMemorySessionStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// Put registers or replaces a user.
func (s *InMemorySessionStore) Put(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

func (s *InMemorySessionStore) SaveRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = token
	s.users[userID] = user
	return nil
}

func (s *InMemorySessionStore) FindSession(_ context.Context, userID string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *InMemorySessionStore) ClearRefreshToken(ctx context.Context, userID string) error {
	return s.SaveRefreshToken(ctx, userID, "")
}

// FindPublicByID returns the user without credential material.
func (s *InMemorySessionStore) FindPublicByID(ctx context.Context, userID string) (models.User, error) {
	user, err := s.FindSession(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// Token reports the stored refresh token of userID. Useful for tests.
func (s *InMemorySessionStore) Token(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].RefreshToken
}
