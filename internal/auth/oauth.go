package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fivetwenty-io/fhirq/internal/constants"
)

// ErrNoValidCredentials is returned when a token is needed and nothing can produce one.
var ErrNoValidCredentials = errors.New("no valid credentials available")

// OAuth2Config configures an OAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AccessToken seeds the manager with an already issued token.
	AccessToken string
	// HTTPClient is used for the token exchange when set.
	HTTPClient *http.Client
}

// OAuth2TokenManager obtains tokens with the client_credentials grant and
// keeps the current one until it is about to expire.
type OAuth2TokenManager struct {
	config *OAuth2Config
	store  *TokenStore
	mutex  sync.Mutex
}

// NewOAuth2TokenManager creates a token manager from config.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	store := NewTokenStore()
	if config.AccessToken != "" {
		store.Set(&Token{
			AccessToken: config.AccessToken,
			TokenType:   constants.TokenTypeBearer,
		})
	}

	return &OAuth2TokenManager{
		config: config,
		store:  store,
	}
}

// NewClientCredentialsTokenManager creates a manager exchanging clientID and
// clientSecret at authURL + "/oauth2/token". scope is space separated.
func NewClientCredentialsTokenManager(authURL, clientID, clientSecret, scope string) *OAuth2TokenManager {
	return NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     TokenURLFor(authURL),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       strings.Fields(scope),
	})
}

// TokenURLFor derives the token endpoint from an auth base URL.
func TokenURLFor(authURL string) string {
	return strings.TrimSuffix(authURL, "/") + constants.TokenPath
}

// GetToken returns a valid access token, exchanging credentials if necessary.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Another caller may have exchanged while we waited.
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	token, err := m.exchange(ctx)
	if err != nil {
		return "", err
	}

	m.store.Set(token)

	return token.AccessToken, nil
}

// RefreshToken forces a new exchange.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.exchange(ctx)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{
		AccessToken: token,
		TokenType:   constants.TokenTypeBearer,
		ExpiresAt:   expiresAt,
	})
}

// CurrentToken returns the stored token, or nil before the first exchange.
func (m *OAuth2TokenManager) CurrentToken() *Token {
	return m.store.Get()
}

func (m *OAuth2TokenManager) exchange(ctx context.Context) (*Token, error) {
	if m.config.TokenURL == "" || m.config.ClientID == "" || m.config.ClientSecret == "" {
		return nil, ErrNoValidCredentials
	}

	credentials := &clientcredentials.Config{
		ClientID:     m.config.ClientID,
		ClientSecret: m.config.ClientSecret,
		TokenURL:     m.config.TokenURL,
		Scopes:       m.config.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	}

	oauthToken, err := credentials.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("client credentials exchange failed: %w", err)
	}

	token := &Token{
		AccessToken:  oauthToken.AccessToken,
		TokenType:    oauthToken.TokenType,
		RefreshToken: oauthToken.RefreshToken,
		ExpiresAt:    oauthToken.Expiry,
	}

	if !oauthToken.Expiry.IsZero() {
		token.ExpiresIn = int(time.Until(oauthToken.Expiry).Seconds())
	}

	if scope, ok := oauthToken.Extra("scope").(string); ok {
		token.Scope = scope
	}

	return token, nil
}
