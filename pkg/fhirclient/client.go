// Package fhirclient provides the main entry point for creating FHIR query clients
package fhirclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fivetwenty-io/fhirq/internal/client"
	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// New creates a new FHIR query client. When client credentials are given
// without a token or auth URL, the token endpoint is discovered from the
// server's SMART configuration.
func New(ctx context.Context, config *fhir.Config) (fhir.Client, error) {
	if config == nil {
		return nil, fhir.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, fhir.ErrBaseURLRequired
	}

	resolved := *config
	config = &resolved

	config.BaseURL = normalizeEndpoint(config.BaseURL)

	// If we need authentication and don't know where to get a token, ask the server
	if config.NeedsTokenExchange() && config.TokenURL == "" && config.AuthURL == "" {
		tokenURL, err := DiscoverTokenEndpoint(ctx, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("discovering token endpoint: %w", err)
		}

		config.TokenURL = tokenURL
	}

	// Use the internal client implementation
	client, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return client, nil
}

// normalizeEndpoint trims a trailing slash and defaults the scheme to https.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

// DiscoverTokenEndpoint reads token_endpoint from {base}/.well-known/smart-configuration.
func DiscoverTokenEndpoint(ctx context.Context, baseURL string) (string, error) {
	httpClient := &http.Client{
		Timeout: constants.ShortHTTPTimeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+constants.SmartConfigurationPath, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting SMART configuration: %w", err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			// Log error but don't return it to avoid masking original error
			fmt.Fprintf(os.Stderr, "Warning: failed to close response body: %v\n", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return "", fmt.Errorf("%w with status %d: %s", fhir.ErrDiscoveryRequestFailed, resp.StatusCode, string(body))
	}

	var smartConfig struct {
		TokenEndpoint         string `json:"token_endpoint"`
		AuthorizationEndpoint string `json:"authorization_endpoint"`
	}

	err = json.NewDecoder(resp.Body).Decode(&smartConfig)
	if err != nil {
		return "", fmt.Errorf("parsing SMART configuration: %w", err)
	}

	if smartConfig.TokenEndpoint == "" {
		return "", fhir.ErrNoTokenEndpoint
	}

	return smartConfig.TokenEndpoint, nil
}

// NewWithEndpoint creates a new client with just a FHIR base URL (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (fhir.Client, error) {
	return New(ctx, &fhir.Config{
		BaseURL: endpoint,
	})
}

// NewWithToken creates a new client with a FHIR base URL and access token.
func NewWithToken(ctx context.Context, endpoint, token string) (fhir.Client, error) {
	return New(ctx, &fhir.Config{
		BaseURL:     endpoint,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using the OAuth2 client
// credentials grant against {authURL}/oauth2/token. An empty authURL falls
// back to SMART discovery.
func NewWithClientCredentials(ctx context.Context, endpoint, authURL, clientID, clientSecret, scope string) (fhir.Client, error) {
	return New(ctx, &fhir.Config{
		BaseURL:      endpoint,
		AuthURL:      authURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
	})
}
