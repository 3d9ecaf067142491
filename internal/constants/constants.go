package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600

	// ConfigDirName is the configuration directory under the user's home.
	ConfigDirName = ".fhirq"

	// ConfigFileName is the configuration file inside ConfigDirName.
	ConfigFileName = "config.yml"

	// EnvPrefix prefixes environment variables read by the CLI.
	EnvPrefix = "FHIRQ"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for token exchanges.
	ShortHTTPTimeout = 10 * time.Second
)

// Token handling.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// TokenPath is appended to an auth base URL to build the token endpoint.
	TokenPath = "/oauth2/token"

	// TokenTypeBearer is the token type reported for manually set tokens.
	TokenTypeBearer = "bearer"

	// SmartConfigurationPath is where a FHIR server publishes its SMART
	// authorization endpoints.
	SmartConfigurationPath = "/.well-known/smart-configuration"
)

// FHIR wire conventions.
const (
	// MediaTypeFHIRJSON is the FHIR JSON media type.
	MediaTypeFHIRJSON = "application/fhir+json"

	// SystemSeparator is the percent-encoded pipe joining system and value
	// of a coded search parameter.
	SystemSeparator = "%7C"

	// SubjectParam is the search parameter linking a resource to its subject.
	SubjectParam = "subject"

	// ResourceTypeBundle is the resourceType of a search envelope.
	ResourceTypeBundle = "Bundle"

	// ResourceTypeComposition anchors document operations.
	ResourceTypeComposition = "Composition"

	// ResourceTypePatient is the default subject type.
	ResourceTypePatient = "Patient"

	// OperationDocument generates a document bundle from a Composition.
	OperationDocument = "$document"
)

// Headers.
const (
	// HeaderRequestID carries the per-call request identifier.
	HeaderRequestID = "X-Request-ID"

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "fhirq/1.0"
)

// Display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// None is used when no value is present.
	None = "none"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for table output format.
	FormatTable = "table"
)
