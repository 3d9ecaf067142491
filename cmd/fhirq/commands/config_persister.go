package commands

import (
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/fhirq/internal/constants"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateToken stores a newly issued token for baseURL.
func (p *ConfigPersister) UpdateToken(baseURL, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	if config.BaseURL != baseURL {
		return fmt.Errorf("token for '%s': %w", baseURL, constants.ErrBaseURLChanged)
	}

	config.Token = token
	config.TokenExpiresAt = nil

	if !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	return saveConfigStruct(config)
}
