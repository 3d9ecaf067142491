package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStaticTokenCannotRefresh is returned when a static token is asked to refresh.
var ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")

// StaticTokenManager provides a fixed token.
type StaticTokenManager struct {
	mutex sync.RWMutex
	token string
}

// NewStaticTokenManager creates a token manager that always returns token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.token, nil
}

// RefreshToken always fails: there is nothing to refresh with.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken replaces the static token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}
