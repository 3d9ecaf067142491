// Package http implements the transport the query engine sends its calls through.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fivetwenty-io/fhirq/internal/constants"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

const tracerName = "github.com/fivetwenty-io/fhirq/http"

// Request describes one outbound call. URL may be absolute or a path relative
// to the client's base URL.
type Request struct {
	Method      string
	URL         string
	Query       url.Values
	Body        interface{}
	Headers     map[string]string
	BearerToken string
}

// Client is a fhir.Transport backed by go-retryablehttp. Retries are disabled:
// every call is exactly one HTTP exchange.
type Client struct {
	baseURL      string
	httpClient   *retryablehttp.Client
	logger       fhir.Logger
	debug        bool
	userAgent    string
	interceptors *fhir.InterceptorChain
	tracer       trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for debug request/response logging.
func WithLogger(logger fhir.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds a single HTTP exchange.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithInterceptors runs chain around every call.
func WithInterceptors(chain *fhir.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a transport for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.CheckRetry = noRetry
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   retryClient,
		userAgent:    constants.DefaultUserAgent,
		interceptors: fhir.NewInterceptorChain(),
		tracer:       otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.debug && client.logger != nil {
		retryClient.RequestLogHook = client.logRequest
		retryClient.ResponseLogHook = client.logResponse
	}

	return client
}

// noRetry never retries; it only stops on a cancelled context.
func noRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	return false, nil
}

// Get implements fhir.Transport.
func (c *Client) Get(ctx context.Context, url string, bearerToken string) (*fhir.Response, error) {
	return c.Do(ctx, &Request{
		Method:      http.MethodGet,
		URL:         url,
		BearerToken: bearerToken,
	})
}

// Post implements fhir.Transport.
func (c *Client) Post(ctx context.Context, url string, body interface{}, bearerToken string) (*fhir.Response, error) {
	return c.Do(ctx, &Request{
		Method:      http.MethodPost,
		URL:         url,
		Body:        body,
		BearerToken: bearerToken,
	})
}

// Do performs req. For non-2xx statuses both the response and a
// *fhir.TransportError are returned.
func (c *Client) Do(ctx context.Context, req *Request) (*fhir.Response, error) {
	fullURL := c.resolveURL(req.URL, req.Query)

	ctx, span := c.tracer.Start(ctx, "fhir.http."+strings.ToLower(req.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", fullURL),
		),
	)
	defer span.End()

	resp, err := c.do(ctx, req, fullURL)
	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return resp, err
}

func (c *Client) do(ctx context.Context, req *Request, fullURL string) (*fhir.Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, &fhir.TransportError{Method: req.Method, URL: fullURL, Err: err}
	}

	intercepted := &fhir.Request{
		Method: req.Method,
		URL:    fullURL,
		Header: c.headers(req, body != nil),
		Body:   body,
	}

	err = c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
	if err != nil {
		return nil, &fhir.TransportError{Method: req.Method, URL: fullURL, Err: err}
	}

	var rawBody interface{}
	if intercepted.Body != nil {
		rawBody = intercepted.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, intercepted.Method, intercepted.URL, rawBody)
	if err != nil {
		return nil, &fhir.TransportError{Method: req.Method, URL: fullURL, Err: fmt.Errorf("creating request: %w", err)}
	}

	httpReq.Header = intercepted.Header

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		callErr := &fhir.TransportError{Method: req.Method, URL: fullURL, Err: err}
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, nil, callErr)

		return nil, callErr
	}

	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &fhir.TransportError{
			Method:     req.Method,
			URL:        fullURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}

	resp := &fhir.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}

	var callErr error
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		callErr = &fhir.TransportError{
			Method:     req.Method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Outcome:    fhir.ParseOperationOutcome(respBody),
		}
	}

	err = c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, resp, callErr)
	if err != nil && callErr == nil {
		callErr = &fhir.TransportError{Method: req.Method, URL: fullURL, StatusCode: resp.StatusCode, Err: err}
	}

	return resp, callErr
}

func (c *Client) resolveURL(target string, query url.Values) string {
	fullURL := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		fullURL = c.baseURL + "/" + strings.TrimPrefix(target, "/")
	}

	if len(query) == 0 {
		return fullURL
	}

	separator := "?"
	if strings.Contains(fullURL, "?") {
		separator = "&"
	}

	return fullURL + separator + query.Encode()
}

func (c *Client) headers(req *Request, hasBody bool) http.Header {
	header := make(http.Header)
	header.Set("Accept", constants.MediaTypeFHIRJSON)
	header.Set("User-Agent", c.userAgent)
	header.Set(constants.HeaderRequestID, uuid.New().String())

	if hasBody {
		header.Set("Content-Type", constants.MediaTypeFHIRJSON)
	}

	if req.BearerToken != "" {
		header.Set("Authorization", "Bearer "+req.BearerToken)
	}

	for key, value := range req.Headers {
		header.Set(key, value)
	}

	return header
}

func encodeBody(body interface{}) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}

		return data, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		return data, nil
	}
}

func (c *Client) logRequest(_ retryablehttp.Logger, req *http.Request, attempt int) {
	c.logger.Debug("HTTP Request", map[string]interface{}{
		"method":     req.Method,
		"url":        req.URL.String(),
		"attempt":    attempt,
		"request_id": req.Header.Get(constants.HeaderRequestID),
	})
}

func (c *Client) logResponse(_ retryablehttp.Logger, resp *http.Response) {
	c.logger.Debug("HTTP Response", map[string]interface{}{
		"status_code": resp.StatusCode,
		"url":         resp.Request.URL.String(),
	})
}

// Compile-time interface check.
var _ fhir.Transport = (*Client)(nil)
