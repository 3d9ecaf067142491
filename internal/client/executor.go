package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// ErrNoResponse is returned when a transport reports neither a response nor an error.
var ErrNoResponse = errors.New("transport returned no response")

func (c *Client) executeSearch(ctx context.Context, desc *descriptor) (resources []json.RawMessage, err error) {
	var urls URLSet

	ctx, span, start := c.telemetry.start(ctx, desc)
	defer func() { c.telemetry.end(ctx, span, start, desc, &urls, err) }()

	urls.Add(c.resolver.searchURL(desc.resourceType, desc.filters))

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Get(ctx, urls.Last(), token)

	err = checkResponse(http.MethodGet, urls.Last(), resp, err)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", desc.resourceType, err)
	}

	bundle, err := fhir.ParseBundle(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", desc.resourceType, err)
	}

	resources = bundle.Resources()

	c.logDebug("Search resolved", map[string]interface{}{
		"url":     urls.Last(),
		"total":   bundle.TotalCount(),
		"results": len(resources),
	})

	return resources, nil
}

func (c *Client) executeRead(ctx context.Context, desc *descriptor) (result *fhir.Result, err error) {
	var urls URLSet

	ctx, span, start := c.telemetry.start(ctx, desc)
	defer func() { c.telemetry.end(ctx, span, start, desc, &urls, err) }()

	urls.Add(c.resolver.readURL(desc.resourceType, desc.resourceID))

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Get(ctx, urls.Last(), token)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		c.logDebug("Read found nothing", map[string]interface{}{"url": urls.Last()})

		return &fhir.Result{
			URL:        urls.Last(),
			Resolved:   urls.All(),
			StatusCode: resp.StatusCode,
			NotFound:   true,
		}, nil
	}

	err = checkResponse(http.MethodGet, urls.Last(), resp, err)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", desc.resourceType, desc.resourceID, err)
	}

	return newResult(&urls, resp), nil
}

func (c *Client) executeCreate(ctx context.Context, desc *descriptor, payload interface{}) (result *fhir.Result, err error) {
	var urls URLSet

	ctx, span, start := c.telemetry.start(ctx, desc)
	defer func() { c.telemetry.end(ctx, span, start, desc, &urls, err) }()

	urls.Add(c.resolver.createURL(desc.resourceType))

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Post(ctx, urls.Last(), payload, token)

	err = checkResponse(http.MethodPost, urls.Last(), resp, err)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", desc.resourceType, err)
	}

	result = newResult(&urls, resp)

	c.logDebug("Resource created", map[string]interface{}{
		"url":      result.URL,
		"location": result.Location,
	})

	return result, nil
}

// executeOperation runs a named operation. Addressed by subject, the anchor
// resource is looked up first and the operation only runs when exactly one
// anchor matches.
func (c *Client) executeOperation(ctx context.Context, desc *descriptor) (result *fhir.Result, err error) {
	var urls URLSet

	ctx, span, start := c.telemetry.start(ctx, desc)
	defer func() { c.telemetry.end(ctx, span, start, desc, &urls, err) }()

	anchorType := c.resolver.anchorType(desc.operationName)
	anchorID := desc.resourceID

	var convention fhir.OperationConvention

	if desc.subjectID != "" {
		convention, err = c.resolver.convention(desc.operationName)
		if err != nil {
			return nil, err
		}

		anchorType = convention.AnchorType
	}

	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	if desc.subjectID != "" {
		anchorID, err = c.resolveAnchor(ctx, convention, desc.subjectID, &urls, token)
		if err != nil {
			return nil, fmt.Errorf("running %s: %w", desc.operationName, err)
		}

		if anchorID == "" {
			return &fhir.Result{Resolved: urls.All(), NotFound: true}, nil
		}
	}

	urls.Add(c.resolver.operationURL(anchorType, anchorID, desc.operationName))

	resp, err := c.transport.Get(ctx, urls.Last(), token)

	err = checkResponse(http.MethodGet, urls.Last(), resp, err)
	if err != nil {
		return nil, fmt.Errorf("running %s on %s/%s: %w", desc.operationName, anchorType, anchorID, err)
	}

	return newResult(&urls, resp), nil
}

// resolveAnchor searches for the resource that anchors an operation for
// subjectID. It returns "" when nothing matches.
func (c *Client) resolveAnchor(
	ctx context.Context,
	convention fhir.OperationConvention,
	subjectID string,
	urls *URLSet,
	token string,
) (string, error) {
	urls.Add(c.resolver.subjectLookupURL(convention, subjectID))

	resp, err := c.transport.Get(ctx, urls.Last(), token)

	err = checkResponse(http.MethodGet, urls.Last(), resp, err)
	if err != nil {
		return "", fmt.Errorf("looking up %s for %s/%s: %w", convention.AnchorType, convention.SubjectType, subjectID, err)
	}

	bundle, err := fhir.ParseBundle(resp.Body)
	if err != nil {
		return "", fmt.Errorf("looking up %s for %s/%s: %w", convention.AnchorType, convention.SubjectType, subjectID, err)
	}

	matches := bundle.MatchCount()

	c.logDebug("Operation anchor lookup", map[string]interface{}{
		"url":     urls.Last(),
		"matches": matches,
	})

	switch {
	case matches == 0:
		return "", nil
	case matches > 1:
		return "", fmt.Errorf("%w: %d %s resources reference %s/%s",
			fhir.ErrAmbiguousResolution, matches, convention.AnchorType, convention.SubjectType, subjectID)
	case len(bundle.Entry) == 0:
		return "", fmt.Errorf("%w: total is 1 but the bundle has no entry", fhir.ErrMalformedBundle)
	}

	header, err := fhir.ParseResourceHeader(bundle.Entry[0].Resource)
	if err != nil {
		return "", fmt.Errorf("%w: %w", fhir.ErrMalformedBundle, err)
	}

	if header.ID == "" {
		return "", fmt.Errorf("%w: matched %s has no id", fhir.ErrMalformedBundle, convention.AnchorType)
	}

	return header.ID, nil
}

// bearerToken returns the token to send, or "" when the client is
// unauthenticated.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	if c.tokenManager == nil {
		return "", nil
	}

	token, err := c.tokenManager.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("obtaining access token: %w", err)
	}

	return token, nil
}

// checkResponse normalizes transport outcomes: any non-2xx status is a
// *fhir.TransportError even if the transport did not report one.
func checkResponse(method, url string, resp *fhir.Response, err error) error {
	if err != nil {
		var transportErr *fhir.TransportError
		if errors.As(err, &transportErr) {
			return err
		}

		return &fhir.TransportError{Method: method, URL: url, Err: err}
	}

	if resp == nil {
		return &fhir.TransportError{Method: method, URL: url, Err: ErrNoResponse}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &fhir.TransportError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Outcome:    fhir.ParseOperationOutcome(resp.Body),
		}
	}

	return nil
}

func newResult(urls *URLSet, resp *fhir.Response) *fhir.Result {
	result := &fhir.Result{
		URL:        urls.Last(),
		Resolved:   urls.All(),
		StatusCode: resp.StatusCode,
	}

	if len(resp.Body) > 0 {
		result.Payload = json.RawMessage(resp.Body)
	}

	if resp.Header != nil {
		result.Location = resp.Header.Get("Location")
	}

	return result
}

func (c *Client) logDebug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}
