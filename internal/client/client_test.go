package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/fivetwenty-io/fhirq/internal/client"
	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

// MockTokenManager for testing.
type MockTokenManager struct {
	token string
	err   error
	calls int
}

func (m *MockTokenManager) GetToken(ctx context.Context) (string, error) {
	m.calls++

	return m.token, m.err
}

func (m *MockTokenManager) RefreshToken(ctx context.Context) error {
	return nil
}

func (m *MockTokenManager) SetToken(token string, expiresAt time.Time) {
	m.token = token
}

// recordedRequest is what fhirServer saw for one call.
type recordedRequest struct {
	Method        string
	URI           string
	Authorization string
	Body          string
}

// fhirServer answers by request URI and records every call.
type fhirServer struct {
	*httptest.Server

	mutex     sync.Mutex
	requests  []recordedRequest
	responses map[string]cannedResponse
}

type cannedResponse struct {
	status int
	body   string
	header map[string]string
}

func newFHIRServer(t *testing.T) *fhirServer {
	t.Helper()

	server := &fhirServer{responses: make(map[string]cannedResponse)}
	server.Server = httptest.NewServer(http.HandlerFunc(server.handle))
	t.Cleanup(server.Close)

	return server
}

func (s *fhirServer) on(uri string, status int, body string) {
	s.onWithHeader(uri, status, body, nil)
}

func (s *fhirServer) onWithHeader(uri string, status int, body string, header map[string]string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.responses[uri] = cannedResponse{status: status, body: body, header: header}
}

func (s *fhirServer) handle(writer http.ResponseWriter, request *http.Request) {
	var body []byte

	if request.Body != nil {
		body, _ = io.ReadAll(request.Body)
	}

	s.mutex.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method:        request.Method,
		URI:           request.URL.RequestURI(),
		Authorization: request.Header.Get("Authorization"),
		Body:          string(body),
	})
	canned, ok := s.responses[request.URL.RequestURI()]
	s.mutex.Unlock()

	if !ok {
		writer.WriteHeader(http.StatusNotFound)

		return
	}

	for key, value := range canned.header {
		writer.Header().Set(key, value)
	}

	writer.Header().Set("Content-Type", "application/fhir+json")
	writer.WriteHeader(canned.status)
	_, _ = writer.Write([]byte(canned.body))
}

func (s *fhirServer) recorded() []recordedRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]recordedRequest, len(s.requests))
	copy(out, s.requests)

	return out
}

func newTestClient(t *testing.T, server *fhirServer) *Client {
	t.Helper()

	client, err := New(&fhir.Config{BaseURL: server.URL})
	require.NoError(t, err)

	return client
}

const (
	emptyBundle   = `{"resourceType":"Bundle","type":"searchset","total":0}`
	patientBundle = `{"resourceType":"Bundle","type":"searchset","total":2,"entry":[
		{"resource":{"resourceType":"Patient","id":"1","name":[{"family":"Duck"}]}},
		{"resource":{"resourceType":"Patient","id":"2","name":[{"family":"Trump"}]}}]}`
	oneComposition = `{"resourceType":"Bundle","type":"searchset","total":1,"entry":[
		{"resource":{"resourceType":"Composition","id":"comp-7"}}]}`
	twoCompositions = `{"resourceType":"Bundle","type":"searchset","total":2,"entry":[
		{"resource":{"resourceType":"Composition","id":"comp-7"}},
		{"resource":{"resourceType":"Composition","id":"comp-8"}}]}`
	documentBundle = `{"resourceType":"Bundle","type":"document","id":"doc-1"}`
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := New(nil)
		require.ErrorIs(t, err, fhir.ErrConfigRequired)
	})

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()

		_, err := New(&fhir.Config{})
		require.ErrorIs(t, err, fhir.ErrBaseURLRequired)
	})

	t.Run("rejects a malformed base URL", func(t *testing.T) {
		t.Parallel()

		_, err := New(&fhir.Config{BaseURL: "not a url"})
		require.ErrorIs(t, err, fhir.ErrInvalidConfig)
	})

	t.Run("rejects a client id without secret", func(t *testing.T) {
		t.Parallel()

		_, err := New(&fhir.Config{BaseURL: "https://fhir.example.com", ClientID: "id"})
		require.ErrorIs(t, err, fhir.ErrInvalidConfig)
	})

	t.Run("creates client with access token", func(t *testing.T) {
		t.Parallel()

		client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com", AccessToken: "test-token"})
		require.NoError(t, err)
		require.NotNil(t, client.GetTokenManager())

		token, err := client.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test-token", token)
	})

	t.Run("creates client with client credentials", func(t *testing.T) {
		t.Parallel()

		client, err := New(&fhir.Config{
			BaseURL:      "https://fhir.example.com",
			AuthURL:      "https://auth.example.com",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		})
		require.NoError(t, err)
		assert.NotNil(t, client.GetTokenManager())
	})

	t.Run("creates client without authentication", func(t *testing.T) {
		t.Parallel()

		client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com/"})
		require.NoError(t, err)
		assert.Nil(t, client.GetTokenManager())
		assert.Equal(t, "https://fhir.example.com", client.BaseURL())

		_, err = client.AccessToken(context.Background())
		require.ErrorIs(t, err, fhir.ErrNoTokenManagerConfigured)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestSearch(t *testing.T) {
	t.Parallel()
	t.Run("encodes plain and coded filters in call order", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient?name=Donald&identifier=http://acme.org/mrns%7C2216120", http.StatusOK, patientBundle)

		client := newTestClient(t, server)

		patients, err := client.Search().
			ForResource("Patient").
			WithParam("name", "Donald").
			WithSystemParam("identifier", "http://acme.org/mrns", "2216120").
			Execute(context.Background())
		require.NoError(t, err)
		require.Len(t, patients, 2)

		requests := server.recorded()
		require.Len(t, requests, 1)
		assert.Equal(t, "GET", requests[0].Method)
		assert.Equal(t, "/Patient?name=Donald&identifier=http://acme.org/mrns%7C2216120", requests[0].URI)
	})

	t.Run("preserves server order of entries", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient?family=Duck", http.StatusOK, patientBundle)

		client := newTestClient(t, server)

		patients, err := client.Search().ForResource("Patient").WithParam("family", "Duck").AsList(context.Background())
		require.NoError(t, err)
		require.Len(t, patients, 2)

		for index, want := range []string{"1", "2"} {
			header, err := fhir.ParseResourceHeader(patients[index])
			require.NoError(t, err)
			assert.Equal(t, want, header.ID)
		}
	})

	t.Run("zero total yields an empty list", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient?name=Nobody", http.StatusOK, emptyBundle)

		client := newTestClient(t, server)

		patients, err := client.Search().ForResource("Patient").WithParam("name", "Nobody").Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, patients)
		assert.Empty(t, patients)
	})

	t.Run("absent total yields an empty list", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Observation", http.StatusOK, `{"resourceType":"Bundle","type":"searchset"}`)

		client := newTestClient(t, server)

		observations, err := client.Search().ForResource("Observation").Execute(context.Background())
		require.NoError(t, err)
		require.NotNil(t, observations)
		assert.Empty(t, observations)
	})

	t.Run("server error is a transport failure", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient?name=x", http.StatusBadRequest,
			`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"invalid","diagnostics":"bad parameter"}]}`)

		client := newTestClient(t, server)

		_, err := client.Search().ForResource("Patient").WithParam("name", "x").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrTransportFailure)

		var transportErr *fhir.TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.Equal(t, http.StatusBadRequest, transportErr.StatusCode)
		require.NotNil(t, transportErr.Outcome)
		assert.Equal(t, "bad parameter", transportErr.Outcome.Issue[0].Diagnostics)
	})

	t.Run("malformed bundle", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient", http.StatusOK, `not json`)

		client := newTestClient(t, server)

		_, err := client.Search().ForResource("Patient").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrMalformedBundle)
	})
}

func TestSearch_URL(t *testing.T) {
	t.Parallel()

	client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com/r4/"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		build    func() fhir.SearchTarget
		expected string
	}{
		{
			name:     "no filters has no query",
			build:    func() fhir.SearchTarget { return client.Search().ForResource("Patient") },
			expected: "https://fhir.example.com/r4/Patient",
		},
		{
			name: "plain filters joined without trailing separator",
			build: func() fhir.SearchTarget {
				return client.Search().ForResource("Patient").WithParam("family", "Duck").WithParam("given", "Donald")
			},
			expected: "https://fhir.example.com/r4/Patient?family=Duck&given=Donald",
		},
		{
			name: "coded filter has exactly one encoded pipe",
			build: func() fhir.SearchTarget {
				return client.Search().ForResource("Observation").WithSystemParam("code", "http://loinc.org", "8867-4")
			},
			expected: "https://fhir.example.com/r4/Observation?code=http://loinc.org%7C8867-4",
		},
		{
			name: "unsafe characters are escaped",
			build: func() fhir.SearchTarget {
				return client.Search().ForResource("Patient").WithParam("name", "Donald Duck&Co")
			},
			expected: "https://fhir.example.com/r4/Patient?name=Donald%20Duck%26Co",
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			url, err := testCase.build().URL()
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, url)
			assert.False(t, strings.HasSuffix(url, "&"))
			assert.LessOrEqual(t, strings.Count(url, "%7C"), 1)
		})
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestRead(t *testing.T) {
	t.Parallel()
	t.Run("reads a resource by id", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/42", http.StatusOK, `{"resourceType":"Patient","id":"42"}`)

		client := newTestClient(t, server)

		ready := client.Read().ForResource("Patient").WithID("42")

		url, err := ready.URL()
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/Patient/42", url)

		result, err := ready.Execute(context.Background())
		require.NoError(t, err)
		assert.False(t, result.NotFound)
		assert.Equal(t, server.URL+"/Patient/42", result.URL)
		assert.Equal(t, []string{server.URL + "/Patient/42"}, result.Resolved)
		assert.Equal(t, http.StatusOK, result.StatusCode)

		var patient map[string]interface{}
		require.NoError(t, result.Decode(&patient))
		assert.Equal(t, "42", patient["id"])

		requests := server.recorded()
		require.Len(t, requests, 1)
		assert.Equal(t, "/Patient/42", requests[0].URI)
	})

	t.Run("ids are escaped as a single path segment", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		client := newTestClient(t, server)

		url, err := client.Read().ForResource("Patient").WithID("a/b?c").URL()
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/Patient/a%2Fb%3Fc", url)
		assert.Empty(t, server.recorded())
	})

	t.Run("404 is a not found result, not an error", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/missing", http.StatusNotFound,
			`{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"not-found"}]}`)

		client := newTestClient(t, server)

		result, err := client.Read().ForResource("Patient").WithID("missing").Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, result.NotFound)
		assert.Equal(t, http.StatusNotFound, result.StatusCode)
		require.ErrorIs(t, result.Decode(&map[string]interface{}{}), fhir.ErrNoPayload)
	})

	t.Run("other statuses are errors", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/42", http.StatusForbidden, ``)

		client := newTestClient(t, server)

		result, err := client.Read().ForResource("Patient").WithID("42").Execute(context.Background())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, fhir.IsForbidden(err))
	})

	t.Run("GetPatient reads a Patient", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/7", http.StatusOK, `{"resourceType":"Patient","id":"7"}`)

		client := newTestClient(t, server)

		result, err := client.GetPatient(context.Background(), "7")
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/Patient/7", result.URL)
	})
}

func TestCreate(t *testing.T) {
	t.Parallel()

	server := newFHIRServer(t)
	server.onWithHeader("/Observation", http.StatusCreated, `{"resourceType":"Observation","id":"obs-1","status":"final"}`,
		map[string]string{"Location": "Observation/obs-1/_history/1"})

	client := newTestClient(t, server)

	result, err := client.Create().ForResource("Observation").Body(context.Background(),
		map[string]string{"resourceType": "Observation", "status": "final"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "Observation/obs-1/_history/1", result.Location)
	assert.Equal(t, server.URL+"/Observation", result.URL)

	requests := server.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "POST", requests[0].Method)
	assert.JSONEq(t, `{"resourceType":"Observation","status":"final"}`, requests[0].Body)
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestOperation(t *testing.T) {
	t.Parallel()

	lookupURI := "/Composition?subject=Patient/123"

	t.Run("one match runs the operation on the anchor", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK, oneComposition)
		server.on("/Composition/comp-7/$document", http.StatusOK, documentBundle)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.NoError(t, err)
		assert.False(t, result.NotFound)

		var document fhir.Bundle
		require.NoError(t, result.Decode(&document))
		assert.Equal(t, "document", document.Type)

		requests := server.recorded()
		require.Len(t, requests, 2)
		assert.Equal(t, lookupURI, requests[0].URI)
		assert.Equal(t, "/Composition/comp-7/$document", requests[1].URI)
	})

	t.Run("the last resolved URL is authoritative", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK, oneComposition)
		server.on("/Composition/comp-7/$document", http.StatusOK, documentBundle)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.NoError(t, err)
		require.Len(t, result.Resolved, 2)
		assert.Equal(t, server.URL+lookupURI, result.Resolved[0])
		assert.Equal(t, server.URL+"/Composition/comp-7/$document", result.Resolved[1])
		assert.Equal(t, result.Resolved[len(result.Resolved)-1], result.URL)
		assert.NotEqual(t, result.Resolved[0], result.URL)
	})

	t.Run("anchor id from the lookup is escaped", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK,
			`{"resourceType":"Bundle","type":"searchset","total":1,"entry":[{"resource":{"resourceType":"Composition","id":"c?1"}}]}`)
		server.on("/Composition/c%3F1/$document", http.StatusOK, documentBundle)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/Composition/c%3F1/$document", result.URL)

		requests := server.recorded()
		require.Len(t, requests, 2)
		assert.Equal(t, "/Composition/c%3F1/$document", requests[1].URI)
	})

	t.Run("zero matches is not found and skips the operation", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK, emptyBundle)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, result.NotFound)
		assert.Empty(t, result.URL)
		assert.Len(t, server.recorded(), 1)
	})

	t.Run("several matches are ambiguous and skip the operation", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK, twoCompositions)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrAmbiguousResolution)
		assert.Nil(t, result)
		assert.Len(t, server.recorded(), 1)
	})

	t.Run("entries beyond the reported total are still counted", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusOK, `{"resourceType":"Bundle","total":1,"entry":[
			{"resource":{"resourceType":"Composition","id":"a"}},
			{"resource":{"resourceType":"Composition","id":"b"}}]}`)

		client := newTestClient(t, server)

		_, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrAmbiguousResolution)
		assert.Len(t, server.recorded(), 1)
	})

	t.Run("lookup failure aborts before the operation", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on(lookupURI, http.StatusInternalServerError, ``)

		client := newTestClient(t, server)

		_, err := client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrTransportFailure)
		assert.Len(t, server.recorded(), 1)
	})

	t.Run("resource id runs a single call", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Composition/comp-9/$document", http.StatusOK, documentBundle)

		client := newTestClient(t, server)

		result, err := client.Operation("$document").ResourceID("comp-9").Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{server.URL + "/Composition/comp-9/$document"}, result.Resolved)
		assert.Len(t, server.recorded(), 1)
	})

	t.Run("unregistered operation by subject is rejected before any call", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		client := newTestClient(t, server)

		_, err := client.Operation("$everything").ForSubject("123").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrUnknownOperation)
		assert.Empty(t, server.recorded())
	})

	t.Run("configured conventions extend the registry", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Encounter?subject=Group/g1", http.StatusOK,
			`{"resourceType":"Bundle","total":1,"entry":[{"resource":{"resourceType":"Encounter","id":"e1"}}]}`)
		server.on("/Encounter/e1/$summary", http.StatusOK, `{"resourceType":"Bundle"}`)

		client, err := New(&fhir.Config{
			BaseURL: server.URL,
			Operations: map[string]fhir.OperationConvention{
				"$summary": {AnchorType: "Encounter", SubjectType: "Group"},
			},
		})
		require.NoError(t, err)

		result, err := client.Operation("$summary").ForSubject("g1").Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/Encounter/e1/$summary", result.URL)
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestAuthentication(t *testing.T) {
	t.Parallel()
	t.Run("bearer token on both phases", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Composition?subject=Patient/123", http.StatusOK, oneComposition)
		server.on("/Composition/comp-7/$document", http.StatusOK, documentBundle)

		tokenManager := &MockTokenManager{token: "secret-token"}
		client, err := NewWithTokenManager(&fhir.Config{BaseURL: server.URL}, tokenManager)
		require.NoError(t, err)

		_, err = client.Operation("$document").ForSubject("123").Execute(context.Background())
		require.NoError(t, err)

		requests := server.recorded()
		require.Len(t, requests, 2)

		for _, request := range requests {
			assert.Equal(t, "Bearer secret-token", request.Authorization)
		}
	})

	t.Run("static access token from config", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/42", http.StatusOK, `{"resourceType":"Patient","id":"42"}`)

		client, err := New(&fhir.Config{BaseURL: server.URL, AccessToken: "config-token"})
		require.NoError(t, err)

		_, err = client.Read().ForResource("Patient").WithID("42").Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer config-token", server.recorded()[0].Authorization)
	})

	t.Run("unauthenticated calls carry no credential", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)
		server.on("/Patient/42", http.StatusOK, `{"resourceType":"Patient","id":"42"}`)

		client := newTestClient(t, server)

		_, err := client.Read().ForResource("Patient").WithID("42").Execute(context.Background())
		require.NoError(t, err)
		assert.Empty(t, server.recorded()[0].Authorization)
	})

	t.Run("token failure aborts before any call", func(t *testing.T) {
		t.Parallel()

		server := newFHIRServer(t)

		errTokenEndpoint := errors.New("token endpoint unavailable")
		client, err := NewWithTokenManager(&fhir.Config{BaseURL: server.URL}, &MockTokenManager{err: errTokenEndpoint})
		require.NoError(t, err)

		_, err = client.Search().ForResource("Patient").Execute(context.Background())
		require.ErrorIs(t, err, errTokenEndpoint)
		assert.Empty(t, server.recorded())
	})
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestInvalidChainState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(client *Client) error
	}{
		{
			name: "empty resource type",
			run: func(client *Client) error {
				_, err := client.Search().ForResource("").Execute(context.Background())

				return err
			},
		},
		{
			name: "empty search parameter key",
			run: func(client *Client) error {
				_, err := client.Search().ForResource("Patient").WithParam("", "x").Execute(context.Background())

				return err
			},
		},
		{
			name: "empty read id",
			run: func(client *Client) error {
				_, err := client.Read().ForResource("Patient").WithID("").Execute(context.Background())

				return err
			},
		},
		{
			name: "empty operation name",
			run: func(client *Client) error {
				_, err := client.Operation("").ResourceID("1").Execute(context.Background())

				return err
			},
		},
		{
			name: "empty subject",
			run: func(client *Client) error {
				_, err := client.Operation("$document").ForSubject(" ").Execute(context.Background())

				return err
			},
		},
		{
			name: "nil create payload",
			run: func(client *Client) error {
				_, err := client.Create().ForResource("Patient").Body(context.Background(), nil)

				return err
			},
		},
		{
			name: "search executed twice",
			run: func(client *Client) error {
				target := client.Search().ForResource("Patient")
				_, _ = target.Execute(context.Background())
				_, err := target.Execute(context.Background())

				return err
			},
		},
		{
			name: "filter added after execution",
			run: func(client *Client) error {
				target := client.Search().ForResource("Patient")
				_, _ = target.Execute(context.Background())
				_, err := target.WithParam("name", "x").URL()

				return err
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := newFHIRServer(t)
			server.on("/Patient", http.StatusOK, emptyBundle)

			client := newTestClient(t, server)

			err := testCase.run(client)
			require.ErrorIs(t, err, fhir.ErrInvalidChainState)
			assert.LessOrEqual(t, len(server.recorded()), 1)
		})
	}
}

func TestChainsAreIndependent(t *testing.T) {
	t.Parallel()

	client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com"})
	require.NoError(t, err)

	first := client.Search().ForResource("Patient").WithParam("name", "Donald")
	second := client.Search().ForResource("Observation")

	firstURL, err := first.URL()
	require.NoError(t, err)

	secondURL, err := second.URL()
	require.NoError(t, err)

	assert.Equal(t, "https://fhir.example.com/Patient?name=Donald", firstURL)
	assert.Equal(t, "https://fhir.example.com/Observation", secondURL)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			url, err := client.Read().ForResource("Patient").WithID("1").URL()
			assert.NoError(t, err)
			assert.Equal(t, "https://fhir.example.com/Patient/1", url)
		}()
	}

	wg.Wait()
}

// staticTransport answers every call with the same response and no error.
type staticTransport struct {
	response *fhir.Response
	calls    int
}

func (s *staticTransport) Get(ctx context.Context, url string, bearerToken string) (*fhir.Response, error) {
	s.calls++

	return s.response, nil
}

func (s *staticTransport) Post(ctx context.Context, url string, body interface{}, bearerToken string) (*fhir.Response, error) {
	s.calls++

	payload, _ := json.Marshal(body)

	return &fhir.Response{StatusCode: s.response.StatusCode, Body: payload}, nil
}

func TestCustomTransport(t *testing.T) {
	t.Parallel()
	t.Run("non-2xx without an error is still a failure", func(t *testing.T) {
		t.Parallel()

		transport := &staticTransport{response: &fhir.Response{StatusCode: http.StatusBadGateway}}

		client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com", Transport: transport})
		require.NoError(t, err)

		_, err = client.Search().ForResource("Patient").Execute(context.Background())
		require.ErrorIs(t, err, fhir.ErrTransportFailure)
		assert.Equal(t, 1, transport.calls)
	})

	t.Run("404 without an error reads as not found", func(t *testing.T) {
		t.Parallel()

		transport := &staticTransport{response: &fhir.Response{StatusCode: http.StatusNotFound}}

		client, err := New(&fhir.Config{BaseURL: "https://fhir.example.com", Transport: transport})
		require.NoError(t, err)

		result, err := client.Read().ForResource("Patient").WithID("1").Execute(context.Background())
		require.NoError(t, err)
		assert.True(t, result.NotFound)
	})
}
