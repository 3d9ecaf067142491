package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// resolver turns descriptors into URLs. It never touches the network.
type resolver struct {
	baseURL     string
	conventions map[string]fhir.OperationConvention
}

func newResolver(baseURL string, conventions map[string]fhir.OperationConvention) *resolver {
	return &resolver{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		conventions: conventions,
	}
}

// searchURL is {base}/{type}?k=v&k=system%7Cvalue, with no "?" when there are
// no filters.
func (r *resolver) searchURL(resourceType string, filters []fhir.Filter) string {
	target := r.baseURL + "/" + resourceType
	if len(filters) == 0 {
		return target
	}

	return target + "?" + encodeFilters(filters)
}

// readURL is {base}/{type}/{id}.
func (r *resolver) readURL(resourceType, id string) string {
	return r.baseURL + "/" + resourceType + "/" + url.PathEscape(id)
}

// createURL is {base}/{type}.
func (r *resolver) createURL(resourceType string) string {
	return r.baseURL + "/" + resourceType
}

// subjectLookupURL is the phase-1 search for the anchor of an operation.
func (r *resolver) subjectLookupURL(convention fhir.OperationConvention, subjectID string) string {
	return r.searchURL(convention.AnchorType, []fhir.Filter{{
		Key:   constants.SubjectParam,
		Value: convention.SubjectType + "/" + subjectID,
	}})
}

// operationURL is {base}/{anchorType}/{id}/{operation}.
func (r *resolver) operationURL(anchorType, id, operation string) string {
	return r.baseURL + "/" + anchorType + "/" + url.PathEscape(id) + "/" + operation
}

// convention returns the registered convention for a subject lookup.
func (r *resolver) convention(operation string) (fhir.OperationConvention, error) {
	convention, ok := r.conventions[operation]
	if !ok {
		return fhir.OperationConvention{}, fmt.Errorf("%w: %s", fhir.ErrUnknownOperation, operation)
	}

	return convention, nil
}

// anchorType is the resource type an operation addressed by id runs on.
// Unregistered operations default to Composition.
func (r *resolver) anchorType(operation string) string {
	if convention, ok := r.conventions[operation]; ok {
		return convention.AnchorType
	}

	return constants.ResourceTypeComposition
}

// encodeFilters joins filters in insertion order. A coded value is written
// as system%7Cvalue; a filter without a system carries the bare value.
func encodeFilters(filters []fhir.Filter) string {
	parts := make([]string, 0, len(filters))

	for _, filter := range filters {
		value := escapeQueryComponent(filter.Value)
		if filter.HasSystem() {
			value = escapeQueryComponent(filter.System) + constants.SystemSeparator + value
		}

		parts = append(parts, escapeQueryComponent(filter.Key)+"="+value)
	}

	return strings.Join(parts, "&")
}

// escapeQueryComponent percent-encodes bytes that would change the meaning of
// a query string. ':' '/' '@' '?' and the other query-safe characters are kept
// so system URIs stay readable.
func escapeQueryComponent(s string) string {
	var builder strings.Builder

	for i := range len(s) {
		c := s[i]
		if keepInQuery(c) {
			builder.WriteByte(c)

			continue
		}

		fmt.Fprintf(&builder, "%%%02X", c)
	}

	return builder.String()
}

func keepInQuery(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}

	return strings.IndexByte("-._~!$'()*,;:@/?", c) >= 0
}
