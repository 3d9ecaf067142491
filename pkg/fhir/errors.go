package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Chain and resolution errors.
var (
	// ErrInvalidChainState is returned when a chain method is used outside
	// the state it is valid in. It is always raised before any network call.
	ErrInvalidChainState = errors.New("invalid chain state")
	// ErrAmbiguousResolution is returned when an operation lookup by subject
	// matches more than one anchor resource.
	ErrAmbiguousResolution = errors.New("ambiguous resolution")
	// ErrTransportFailure matches every *TransportError.
	ErrTransportFailure = errors.New("transport failure")
	// ErrUnknownOperation is returned when an operation is resolved by subject
	// but no convention says which resource anchors it.
	ErrUnknownOperation = errors.New("no resolution convention registered for operation")
	// ErrMalformedBundle is returned when a search envelope cannot be decoded.
	ErrMalformedBundle = errors.New("malformed search bundle")
	// ErrNoPayload is returned by Result.Decode when there is nothing to decode.
	ErrNoPayload = errors.New("result has no payload")
)

// Configuration errors.
var (
	ErrConfigRequired           = errors.New("config is required")
	ErrBaseURLRequired          = errors.New("FHIR base URL is required")
	ErrInvalidConfig            = errors.New("invalid config")
	ErrNoTokenManagerConfigured = errors.New("no token manager configured")
	ErrDiscoveryRequestFailed   = errors.New("SMART configuration request failed")
	ErrNoTokenEndpoint          = errors.New("SMART configuration has no token_endpoint")
)

// TransportError describes a failed HTTP exchange: either a non-2xx status
// or a network-level failure (StatusCode zero).
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Outcome    *OperationOutcome
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "%s %s", e.Method, e.URL)

	if e.StatusCode != 0 {
		fmt.Fprintf(&builder, ": status %d", e.StatusCode)
	}

	if e.Outcome != nil && len(e.Outcome.Issue) > 0 {
		fmt.Fprintf(&builder, ": %s", e.Outcome.Error())
	}

	if e.Err != nil {
		fmt.Fprintf(&builder, ": %v", e.Err)
	}

	return builder.String()
}

// Unwrap returns the underlying cause, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes every TransportError match ErrTransportFailure.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

// OperationOutcome is the error body a FHIR server returns.
type OperationOutcome struct {
	ResourceType string         `json:"resourceType" yaml:"resourceType"`
	Issue        []OutcomeIssue `json:"issue"        yaml:"issue"`
}

// OutcomeIssue is one issue of an OperationOutcome.
type OutcomeIssue struct {
	Severity    string           `json:"severity"              yaml:"severity"`
	Code        string           `json:"code"                  yaml:"code"`
	Diagnostics string           `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Details     *CodeableConcept `json:"details,omitempty"     yaml:"details,omitempty"`
}

// CodeableConcept carries the human-readable part of a coded value.
type CodeableConcept struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Error implements the error interface.
func (i *OutcomeIssue) Error() string {
	message := i.Diagnostics
	if message == "" && i.Details != nil {
		message = i.Details.Text
	}

	return fmt.Sprintf("%s: %s (%s)", i.Severity, message, i.Code)
}

// Error implements the error interface for OperationOutcome.
func (o *OperationOutcome) Error() string {
	if len(o.Issue) == 0 {
		return "unknown error"
	}

	if len(o.Issue) == 1 {
		return o.Issue[0].Error()
	}

	return fmt.Sprintf("multiple issues: %v", o.Issue)
}

// FirstIssue returns the first issue or nil.
func (o *OperationOutcome) FirstIssue() *OutcomeIssue {
	if len(o.Issue) > 0 {
		return &o.Issue[0]
	}

	return nil
}

// ParseOperationOutcome parses an error body. It returns nil when the body is
// not an OperationOutcome.
func ParseOperationOutcome(data []byte) *OperationOutcome {
	var outcome OperationOutcome

	err := json.Unmarshal(data, &outcome)
	if err != nil || outcome.ResourceType != "OperationOutcome" {
		return nil
	}

	return &outcome
}

// IsNotFound checks if the error is a 404 transport error.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsUnauthorized checks if the error is a 401 transport error.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsForbidden checks if the error is a 403 transport error.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

func statusOf(err error) int {
	transportErr := &TransportError{}
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}

	return 0
}
