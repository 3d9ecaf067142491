package fhir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Mode identifies the kind of request a chain builds.
type Mode string

// Chain modes.
const (
	ModeSearch    Mode = "search"
	ModeRead      Mode = "read"
	ModeCreate    Mode = "create"
	ModeOperation Mode = "operation"
)

// Filter is a single search predicate. System is optional; when empty it is
// left out of the encoded value entirely.
type Filter struct {
	Key    string `json:"key"              yaml:"key"`
	Value  string `json:"value"            yaml:"value"`
	System string `json:"system,omitempty" yaml:"system,omitempty"`
}

// HasSystem reports whether the filter carries a coding system.
func (f Filter) HasSystem() bool {
	return f.System != ""
}

// Response is what a Transport hands back for a single HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport is the narrow HTTP capability the query engine calls through.
// An empty bearerToken means the call is issued unauthenticated.
//
// Implementations return the response together with a *TransportError for
// non-2xx statuses so callers can inspect the status code.
type Transport interface {
	Get(ctx context.Context, url string, bearerToken string) (*Response, error)
	Post(ctx context.Context, url string, body interface{}, bearerToken string) (*Response, error)
}

// Bundle is the search envelope: a total count and zero or more entries.
type Bundle struct {
	ResourceType string        `json:"resourceType"    yaml:"resourceType"`
	ID           string        `json:"id,omitempty"    yaml:"id,omitempty"`
	Type         string        `json:"type,omitempty"  yaml:"type,omitempty"`
	Total        *int          `json:"total,omitempty" yaml:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"  yaml:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty" yaml:"entry,omitempty"`
}

// BundleLink is a navigation link of a bundle.
type BundleLink struct {
	Relation string `json:"relation" yaml:"relation"`
	URL      string `json:"url"      yaml:"url"`
}

// BundleEntry wraps one embedded resource.
type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"  yaml:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty" yaml:"resource,omitempty"`
}

// ParseBundle decodes a search envelope.
func ParseBundle(data []byte) (*Bundle, error) {
	var bundle Bundle

	err := json.Unmarshal(data, &bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBundle, err)
	}

	return &bundle, nil
}

// TotalCount returns the reported total, or zero when the server left it out.
func (b *Bundle) TotalCount() int {
	if b.Total == nil {
		return 0
	}

	return *b.Total
}

// Resources returns the embedded resources in server order. A zero or absent
// total yields an empty, non-nil slice.
func (b *Bundle) Resources() []json.RawMessage {
	resources := make([]json.RawMessage, 0, len(b.Entry))
	if b.TotalCount() == 0 {
		return resources
	}

	for _, entry := range b.Entry {
		resources = append(resources, entry.Resource)
	}

	return resources
}

// MatchCount is the number of matches a bundle stands for: the reported
// total, or the number of entries if the server returned more than it counted.
func (b *Bundle) MatchCount() int {
	return max(b.TotalCount(), len(b.Entry))
}

// ResourceHeader holds the fields every resource carries.
type ResourceHeader struct {
	ResourceType string `json:"resourceType"  yaml:"resourceType"`
	ID           string `json:"id,omitempty"  yaml:"id,omitempty"`
}

// ParseResourceHeader extracts resourceType and id from a raw resource.
func ParseResourceHeader(raw json.RawMessage) (*ResourceHeader, error) {
	var header ResourceHeader

	err := json.Unmarshal(raw, &header)
	if err != nil {
		return nil, fmt.Errorf("parsing resource header: %w", err)
	}

	return &header, nil
}

// Result is the normalized outcome of a read, create, or operation chain.
type Result struct {
	// URL is the authoritative request URL: the last entry of Resolved.
	URL string `json:"url" yaml:"url"`
	// Resolved lists every URL the chain resolved, in the order they were added.
	Resolved []string `json:"resolved" yaml:"resolved"`
	// StatusCode of the authoritative call, zero if none was made.
	StatusCode int `json:"status_code" yaml:"status_code"`
	// Payload is the decoded response body, unchanged.
	Payload json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
	// Location is the server-assigned location of a created resource.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	// NotFound marks a recovered "no result": a 404 read or a subject with no
	// linked resource. It is not an error and differs from an empty search.
	NotFound bool `json:"not_found" yaml:"not_found"`
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v interface{}) error {
	if r.NotFound || len(r.Payload) == 0 {
		return ErrNoPayload
	}

	err := json.Unmarshal(r.Payload, v)
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	return nil
}
