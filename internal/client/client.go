// Package client implements the FHIR query engine behind fhir.Client.
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/fhirq/internal/auth"
	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/internal/http"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// Client implements the fhir.Client interface. It holds no per-chain state,
// so concurrent chains on one Client are safe.
type Client struct {
	transport    fhir.Transport
	tokenManager auth.TokenManager
	resolver     *resolver
	baseURL      string
	logger       fhir.Logger
	telemetry    *instruments
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *fhir.Config) auth.TokenManager {
	if config.AccessToken != "" {
		return auth.NewStaticTokenManager(config.AccessToken)
	}

	if config.NeedsTokenExchange() {
		return createOAuth2TokenManager(config)
	}

	return nil // No authentication
}

// createOAuth2TokenManager creates a client credentials token manager.
func createOAuth2TokenManager(config *fhir.Config) auth.TokenManager {
	return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     getTokenURL(config),
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       strings.Fields(config.Scope),
	})
}

// getTokenURL returns token URL from config or derives it from the auth URL.
func getTokenURL(config *fhir.Config) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	if config.AuthURL != "" {
		return auth.TokenURLFor(config.AuthURL)
	}

	return strings.TrimSuffix(config.BaseURL, "/") + constants.TokenPath
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *fhir.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.Interceptors != nil {
		httpOpts = append(httpOpts, http.WithInterceptors(config.Interceptors))
	}

	return httpOpts
}

// New creates a query client from config. Authentication is chosen from the
// config: a static access token, client credentials, or none.
func New(config *fhir.Config) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	return newClient(config, createTokenManager(config)), nil
}

// NewWithTokenManager creates a query client that authenticates through
// tokenManager. A nil tokenManager sends every call unauthenticated.
func NewWithTokenManager(config *fhir.Config, tokenManager auth.TokenManager) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	return newClient(config, tokenManager), nil
}

func newClient(config *fhir.Config, tokenManager auth.TokenManager) *Client {
	transport := config.Transport
	if transport == nil {
		transport = http.NewClient(config.BaseURL, createHTTPClientOptions(config)...)
	}

	return &Client{
		transport:    transport,
		tokenManager: tokenManager,
		resolver:     newResolver(config.BaseURL, config.OperationConventions()),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		logger:       config.Logger,
		telemetry:    newInstruments(),
	}
}

// GetTokenManager returns the token manager for this client.
func (c *Client) GetTokenManager() auth.TokenManager {
	return c.tokenManager
}

// BaseURL returns the FHIR base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Search implements fhir.QueryBuilder.Search.
func (c *Client) Search() fhir.SearchStage {
	return &searchStage{client: c, desc: newDescriptor(fhir.ModeSearch)}
}

// Read implements fhir.QueryBuilder.Read.
func (c *Client) Read() fhir.ReadStage {
	return &readStage{client: c, desc: newDescriptor(fhir.ModeRead)}
}

// Create implements fhir.QueryBuilder.Create.
func (c *Client) Create() fhir.CreateStage {
	return &createStage{client: c, desc: newDescriptor(fhir.ModeCreate)}
}

// Operation implements fhir.QueryBuilder.Operation.
func (c *Client) Operation(name string) fhir.OperationStage {
	desc := newDescriptor(fhir.ModeOperation)
	if strings.TrimSpace(name) == "" {
		desc.fail("operation name is empty")
	}

	desc.operationName = name
	desc.stage = stageTargeted

	return &operationStage{client: c, desc: desc}
}

// GetPatient implements fhir.Client.GetPatient.
func (c *Client) GetPatient(ctx context.Context, id string) (*fhir.Result, error) {
	result, err := c.Read().ForResource(constants.ResourceTypePatient).WithID(id).Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	return result, nil
}

// AccessToken implements fhir.Client.AccessToken.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", fhir.ErrNoTokenManagerConfigured
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("getting access token: %w", err)
	}

	return token, nil
}

// Compile-time interface check.
var _ fhir.Client = (*Client)(nil)
