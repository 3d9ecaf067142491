package constants

import "errors"

// Configuration errors.
var (
	ErrNoBaseURLConfigured = errors.New("no FHIR base URL configured, use 'fhirq config set base_url <url>'")
	ErrNoAuthURLConfigured = errors.New("no auth URL configured, use 'fhirq config set auth_url <url>'")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrNoClientCredentials = errors.New("client id and client secret are required")
	ErrBaseURLChanged      = errors.New("configured base URL changed while the token was issued")
	ErrNoTokenConfigured   = errors.New("no token configured, use 'fhirq login' or 'fhirq config set token <token>'")
)

// Argument errors.
var (
	ErrInvalidParamFormat = errors.New("invalid parameter format, expected key=value or key=system|value")
	ErrTargetRequired     = errors.New("exactly one of --id or --subject is required")
	ErrEmptyPayload       = errors.New("resource payload is empty")
	ErrInvalidPayload     = errors.New("resource payload is not valid JSON")
)
