package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/types"
)

const listingPayload = `{
  "sha": "abc123",
  "truncated": false,
  "tree": [
    {"path": "src", "mode": "040000", "type": "tree", "sha": "d1"},
    {"path": "src/index.js", "mode": "100644", "type": "blob", "sha": "f1", "size": 120},
    {"path": "node_modules/x.js", "mode": "100644", "type": "blob", "sha": "f2", "size": 5},
    {"path": "README.md", "mode": "100644", "type": "blob", "sha": "f3", "size": 9}
  ]
}`

func TestGitHubCollectDecodesAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/repos/acme/widgets/git/trees/main", request.URL.Path)
		assert.Equal(t, "1", request.URL.Query().Get("recursive"))
		assert.Equal(t, acceptGitHubJSON, request.Header.Get(headerAccept))
		writer.Write([]byte(listingPayload))
	}))
	defer server.Close()

	github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets", Reference: "main"}, exclusion.NewSet("node_modules")).
		WithAPIBase(server.URL)
	entries, collectError := github.Collect(context.Background())
	require.NoError(t, collectError)
	require.Len(t, entries, 3)

	byPath := make(map[string]types.PathEntry, len(entries))
	for _, entry := range entries {
		byPath[entry.Path()] = entry
	}
	assert.Equal(t, types.NodeTypeDirectory, byPath["src"].Kind)
	assert.Equal(t, types.NodeTypeFile, byPath["src/index.js"].Kind)
	assert.Equal(t, int64(120), byPath["src/index.js"].SizeBytes)
	assert.Equal(t, "f1", byPath["src/index.js"].Metadata["sha"])
	assert.NotContains(t, byPath, "node_modules/x.js")
}

func TestGitHubCollectWarnsOnTruncatedListing(t *testing.T) {
	truncatedPayload := `{
  "sha": "abc123",
  "truncated": true,
  "tree": [
    {"path": "README.md", "mode": "100644", "type": "blob", "sha": "f1", "size": 9}
  ]
}`
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte(truncatedPayload))
	}))
	defer server.Close()

	observedCore, observedLogs := observer.New(zap.WarnLevel)
	github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets", Reference: "main"}, nil).
		WithAPIBase(server.URL).
		WithLogger(zap.New(observedCore))
	entries, collectError := github.Collect(context.Background())
	require.NoError(t, collectError)
	require.Len(t, entries, 1)

	warnings := observedLogs.FilterMessage(warningTruncatedListingMessage).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "acme", warnings[0].ContextMap()["owner"])
	assert.Equal(t, "widgets", warnings[0].ContextMap()["repository"])
	assert.Equal(t, "main", warnings[0].ContextMap()["ref"])
}

func TestGitHubCollectFallsBackToAlternateRef(t *testing.T) {
	var requestedRefs []string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestedRefs = append(requestedRefs, request.URL.Path)
		if request.URL.Path == "/repos/acme/widgets/git/trees/main" {
			writer.WriteHeader(http.StatusNotFound)
			writer.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		writer.Write([]byte(listingPayload))
	}))
	defer server.Close()

	github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets"}, nil).
		WithAPIBase(server.URL)
	entries, collectError := github.Collect(context.Background())
	require.NoError(t, collectError)
	require.Len(t, entries, 4)
	require.Equal(t, []string{
		"/repos/acme/widgets/git/trees/main",
		"/repos/acme/widgets/git/trees/master",
	}, requestedRefs)
}

func TestGitHubCollectNotFoundAfterFallback(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCount++
		writer.WriteHeader(http.StatusNotFound)
		writer.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets", Reference: "main"}, nil).
		WithAPIBase(server.URL)
	_, collectError := github.Collect(context.Background())
	require.Error(t, collectError)
	assert.Equal(t, KindNotFound, KindOf(collectError))
	assert.Equal(t, 2, requestCount)
}

func TestGitHubCollectNoFallbackForExplicitRef(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCount++
		writer.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets", Reference: "develop"}, nil).
		WithAPIBase(server.URL)
	_, collectError := github.Collect(context.Background())
	require.Error(t, collectError)
	assert.Equal(t, KindNotFound, KindOf(collectError))
	assert.Equal(t, 1, requestCount)
}

func TestGitHubCollectErrorClassification(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		headers      map[string]string
		body         string
		expectedKind string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`, expectedKind: KindAuth},
		{name: "rate limited", status: http.StatusForbidden, headers: map[string]string{headerRateLimitRemaining: "0"}, body: `{"message":"API rate limit exceeded"}`, expectedKind: KindRateLimit},
		{name: "forbidden without rate limit", status: http.StatusForbidden, body: `{"message":"Forbidden"}`, expectedKind: KindAuth},
		{name: "server error", status: http.StatusBadGateway, body: "upstream exploded", expectedKind: KindUpstream},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				for headerName, headerValue := range testCase.headers {
					writer.Header().Set(headerName, headerValue)
				}
				writer.WriteHeader(testCase.status)
				writer.Write([]byte(testCase.body))
			}))
			defer server.Close()

			github := NewGitHub(server.Client(), types.RepoIdentifier{Owner: "acme", Repository: "widgets", Reference: "develop"}, nil).
				WithAPIBase(server.URL)
			_, collectError := github.Collect(context.Background())
			require.Error(t, collectError)
			assert.Equal(t, testCase.expectedKind, KindOf(collectError))
			assert.Contains(t, collectError.Error(), testCase.body)
		})
	}
}

func TestGitHubAuthorizationHeaderFormatting(t *testing.T) {
	testCases := []struct {
		name     string
		token    string
		expected string
	}{
		{name: "personal access token", token: "abc123", expected: authorizationTokenPrefix + "abc123"},
		{name: "jwt defaults to bearer", token: "a.b.c", expected: authorizationBearerPrefix + "a.b.c"},
		{name: "explicit bearer retained", token: "Bearer prefixed", expected: "Bearer prefixed"},
		{name: "explicit token retained", token: "token prefixed", expected: "token prefixed"},
		{name: "empty token", token: "", expected: ""},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			github := NewGitHub(nil, types.RepoIdentifier{Owner: "a", Repository: "b"}, nil).
				WithAuthorizationToken(testCase.token)
			request, requestError := github.buildRequest(context.Background(), "https://example.com")
			require.NoError(t, requestError)
			assert.Equal(t, testCase.expected, request.Header.Get(headerAuthorization))
		})
	}
}

func TestParseRepositoryURL(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedOwner string
		expectedRepo  string
		expectError   bool
	}{
		{name: "full https URL", input: "https://github.com/acme/widgets", expectedOwner: "acme", expectedRepo: "widgets"},
		{name: "trailing slash", input: "https://github.com/acme/widgets/", expectedOwner: "acme", expectedRepo: "widgets"},
		{name: "git suffix", input: "https://github.com/acme/widgets.git", expectedOwner: "acme", expectedRepo: "widgets"},
		{name: "bare owner repo", input: "acme/widgets", expectedOwner: "acme", expectedRepo: "widgets"},
		{name: "missing repo", input: "widgets", expectError: true},
		{name: "empty", input: "  ", expectError: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			identifier, parseError := ParseRepositoryURL(testCase.input)
			if testCase.expectError {
				require.Error(t, parseError)
				assert.Equal(t, KindInput, KindOf(parseError))
				return
			}
			require.NoError(t, parseError)
			assert.Equal(t, testCase.expectedOwner, identifier.Owner)
			assert.Equal(t, testCase.expectedRepo, identifier.Repository)
		})
	}
}
