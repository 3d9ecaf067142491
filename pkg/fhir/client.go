package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use
var validate = validator.New()

// QueryBuilder is the entry surface of the query engine. Each entry method
// starts a new chain with its own request descriptor.
type QueryBuilder interface {
	Search() SearchStage
	Read() ReadStage
	Create() CreateStage
	Operation(name string) OperationStage
}

// SearchStage is a search chain before its resource type is known.
type SearchStage interface {
	ForResource(resourceType string) SearchTarget
}

// SearchTarget is a search chain with a resource type. Filters are encoded in
// the order they are added.
type SearchTarget interface {
	WithParam(key, value string) SearchTarget
	WithSystemParam(key, system, value string) SearchTarget
	// URL resolves the search URL without issuing a request.
	URL() (string, error)
	// Execute runs the search and returns the matched resources in server order.
	Execute(ctx context.Context) ([]json.RawMessage, error)
	// AsList is an alias for Execute.
	AsList(ctx context.Context) ([]json.RawMessage, error)
}

// ReadStage is a read chain before its resource type is known.
type ReadStage interface {
	ForResource(resourceType string) ReadTarget
}

// ReadTarget is a read chain waiting for the resource id.
type ReadTarget interface {
	WithID(id string) ReadReady
}

// ReadReady is a complete read chain.
type ReadReady interface {
	URL() (string, error)
	Execute(ctx context.Context) (*Result, error)
}

// CreateStage is a create chain before its resource type is known.
type CreateStage interface {
	ForResource(resourceType string) CreateTarget
}

// CreateTarget is a create chain waiting for its payload. Body issues the write.
type CreateTarget interface {
	Body(ctx context.Context, payload interface{}) (*Result, error)
}

// OperationStage is an operation chain waiting for its target: either a
// resource id, or a subject the anchor resource is looked up by.
type OperationStage interface {
	ResourceID(id string) OperationReady
	ForSubject(subjectID string) OperationReady
}

// OperationReady is a complete operation chain.
type OperationReady interface {
	Execute(ctx context.Context) (*Result, error)
}

// Client is a FHIR query client.
type Client interface {
	QueryBuilder

	// GetPatient reads a Patient by id.
	GetPatient(ctx context.Context, id string) (*Result, error)
	// AccessToken returns the bearer token calls are sent with.
	AccessToken(ctx context.Context) (string, error)
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// OperationConvention says which resource type anchors a named operation and,
// for lookups by subject, which resource type the subject is.
type OperationConvention struct {
	AnchorType  string `json:"anchor_type"  validate:"required" yaml:"anchor_type"`
	SubjectType string `json:"subject_type" validate:"required" yaml:"subject_type"`
}

// DefaultOperations returns the built-in operation conventions.
func DefaultOperations() map[string]OperationConvention {
	return map[string]OperationConvention{
		"$document": {AnchorType: "Composition", SubjectType: "Patient"},
	}
}

// Config represents client configuration.
//
// # Authentication precedence
//
//  1. AccessToken: if set, it is sent as a static Bearer token.
//  2. ClientID/ClientSecret: a token is obtained with the OAuth2
//     client_credentials grant from TokenURL, or from AuthURL + "/oauth2/token"
//     when TokenURL is empty.
//  3. No credentials: requests are sent without authentication.
//
// # Timeouts
//
// Per-request deadlines should be controlled via the context passed to
// Execute. HTTPTimeout only bounds a single HTTP exchange.
type Config struct {
	// BaseURL: FHIR base URL (e.g., "https://fhir.example.com/r4").
	BaseURL string `validate:"required,url"`

	// AuthURL: base URL of the authorization server.
	AuthURL string `validate:"omitempty,url"`
	// TokenURL: full OAuth2 token endpoint. Derived from AuthURL when empty.
	TokenURL string `validate:"omitempty,url"`
	// ClientID: OAuth2 client ID for the client_credentials grant.
	ClientID string `validate:"required_with=ClientSecret"`
	// ClientSecret: OAuth2 client secret used with ClientID.
	ClientSecret string `validate:"required_with=ClientID"`
	// Scope: space separated scopes requested with the client_credentials grant.
	Scope string
	// AccessToken: if set, used directly as a Bearer token.
	AccessToken string

	// HTTPTimeout bounds a single HTTP exchange.
	HTTPTimeout time.Duration `validate:"gte=0"`
	// Debug: enables HTTP request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Transport replaces the built-in HTTP transport.
	Transport Transport
	// Interceptors run around every call of the built-in transport.
	Interceptors *InterceptorChain
	// Operations extends or overrides DefaultOperations.
	Operations map[string]OperationConvention `validate:"dive"`
}

// Validate checks the config for missing or malformed fields.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigRequired
	}

	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}

	err := validate.Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// NeedsTokenExchange reports whether the config asks for client credentials
// to be exchanged for a token.
func (c *Config) NeedsTokenExchange() bool {
	return c.AccessToken == "" && c.ClientID != "" && c.ClientSecret != ""
}

// OperationConventions merges DefaultOperations with the configured ones.
func (c *Config) OperationConventions() map[string]OperationConvention {
	conventions := DefaultOperations()
	for name, convention := range c.Operations {
		conventions[name] = convention
	}

	return conventions
}
