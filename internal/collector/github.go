package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/types"
)

const (
	defaultAPIBaseURL  = "https://api.github.com"
	defaultAPITimeout  = 30 * time.Second
	defaultUserAgent   = "repomap-github-collector"
	defaultReference   = "main"
	fallbackReference  = "master"
	objectTypeBlob     = "blob"
	objectTypeTree     = "tree"
	metadataKeySHA     = "sha"
	errorBodyReadLimit = 8 * 1024

	headerAuthorization       = "Authorization"
	headerAccept              = "Accept"
	headerGitHubAPIVersion    = "X-GitHub-Api-Version"
	headerRateLimitRemaining  = "X-RateLimit-Remaining"
	acceptGitHubJSON          = "application/vnd.github+json"
	githubAPIVersionValue     = "2022-11-28"
	authorizationBearerPrefix = "Bearer "
	authorizationTokenPrefix  = "token "

	warningTruncatedListingMessage = "listing truncated by the API; the collected tree is partial"
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// treeResponse is the decoded payload of the git trees listing endpoint.
type treeResponse struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Tree      []treeEntry `json:"tree"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// GitHub enumerates a remote repository's file tree through the GitHub REST
// API using a single recursive listing request per ref.
type GitHub struct {
	client                   httpClient
	apiBase                  string
	userAgent                string
	authorizationHeaderValue string
	identifier               types.RepoIdentifier
	excludes                 *exclusion.Set
	logger                   *zap.Logger
}

// NewGitHub constructs a GitHub collector. A nil client uses a default client
// with a 30 second timeout. The API credential is passed explicitly through
// WithAuthorizationToken and is never read from process-wide state here.
func NewGitHub(client httpClient, identifier types.RepoIdentifier, excludes *exclusion.Set) GitHub {
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	return GitHub{
		client:     client,
		apiBase:    defaultAPIBaseURL,
		userAgent:  defaultUserAgent,
		identifier: identifier,
		excludes:   excludes,
		logger:     zap.NewNop(),
	}
}

// WithAPIBase overrides the API base URL, primarily for tests.
func (github GitHub) WithAPIBase(base string) GitHub {
	if base == "" {
		return github
	}
	github.apiBase = strings.TrimRight(base, "/")
	return github
}

// WithUserAgent overrides the User-Agent header value.
func (github GitHub) WithUserAgent(agent string) GitHub {
	if agent == "" {
		return github
	}
	github.userAgent = agent
	return github
}

// WithLogger routes collector warnings to the given logger.
func (github GitHub) WithLogger(logger *zap.Logger) GitHub {
	if logger == nil {
		return github
	}
	github.logger = logger
	return github
}

// WithAuthorizationToken configures the collector to authenticate API calls.
func (github GitHub) WithAuthorizationToken(token string) GitHub {
	github.authorizationHeaderValue = formatAuthorizationHeaderValue(token)
	return github
}

// Collect lists the repository tree for the configured ref. A 404 on the
// primary ref triggers exactly one retry against the conventional alternate
// default-branch name before the failure surfaces as not_found.
func (github GitHub) Collect(ctx context.Context) ([]types.PathEntry, error) {
	if github.identifier.Owner == "" {
		return nil, NewError(KindInput, "repository owner is required")
	}
	if github.identifier.Repository == "" {
		return nil, NewError(KindInput, "repository name is required")
	}
	reference := github.identifier.Reference
	if reference == "" {
		reference = defaultReference
	}

	payload, listError := github.listTree(ctx, reference)
	if listError != nil {
		if KindOf(listError) != KindNotFound {
			return nil, listError
		}
		alternate := alternateReference(reference)
		if alternate == "" {
			return nil, listError
		}
		payload, listError = github.listTree(ctx, alternate)
		if listError != nil {
			return nil, listError
		}
		reference = alternate
	}
	if payload.Truncated {
		github.logger.Warn(warningTruncatedListingMessage,
			zap.String("owner", github.identifier.Owner),
			zap.String("repository", github.identifier.Repository),
			zap.String("ref", reference),
		)
	}

	entries := make([]types.PathEntry, 0, len(payload.Tree))
	for _, object := range payload.Tree {
		if github.excludes.Matches(object.Path) {
			continue
		}
		entry := types.PathEntry{
			Segments: strings.Split(object.Path, "/"),
			Metadata: map[string]string{metadataKeySHA: object.SHA, metadataKeyMode: object.Mode},
		}
		switch object.Type {
		case objectTypeTree:
			entry.Kind = types.NodeTypeDirectory
		case objectTypeBlob:
			entry.Kind = types.NodeTypeFile
			entry.SizeBytes = object.Size
		default:
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// listTree performs one recursive tree listing request against the given ref.
func (github GitHub) listTree(ctx context.Context, reference string) (*treeResponse, error) {
	apiURL, buildError := github.buildTreeURL(reference)
	if buildError != nil {
		return nil, WrapError(KindInput, buildError, "building listing URL")
	}
	request, requestError := github.buildRequest(ctx, apiURL)
	if requestError != nil {
		return nil, WrapError(KindInput, requestError, "building listing request")
	}
	response, responseError := github.client.Do(request)
	if responseError != nil {
		return nil, WrapError(KindUpstream, responseError, "requesting %s", apiURL)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyReadLimit))
		upstreamMessage := strings.TrimSpace(string(body))
		switch {
		case response.StatusCode == http.StatusNotFound:
			return nil, NewError(KindNotFound, "ref %s not found for %s/%s: %s", reference, github.identifier.Owner, github.identifier.Repository, upstreamMessage)
		case response.StatusCode == http.StatusForbidden && response.Header.Get(headerRateLimitRemaining) == "0":
			return nil, NewError(KindRateLimit, "rate limit exceeded for %s: %s", apiURL, upstreamMessage)
		case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
			return nil, NewError(KindAuth, "authorization failed for %s: %s", apiURL, upstreamMessage)
		default:
			return nil, NewError(KindUpstream, "unexpected status %d for %s: %s", response.StatusCode, apiURL, upstreamMessage)
		}
	}

	var payload treeResponse
	if decodeError := json.NewDecoder(response.Body).Decode(&payload); decodeError != nil {
		return nil, WrapError(KindUpstream, decodeError, "decoding listing payload for %s", apiURL)
	}
	return &payload, nil
}

func (github GitHub) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestError := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestError != nil {
		return nil, requestError
	}
	if github.userAgent != "" {
		request.Header.Set("User-Agent", github.userAgent)
	}
	if github.authorizationHeaderValue != "" {
		request.Header.Set(headerAuthorization, github.authorizationHeaderValue)
	}
	request.Header.Set(headerAccept, acceptGitHubJSON)
	request.Header.Set(headerGitHubAPIVersion, githubAPIVersionValue)
	return request, nil
}

func (github GitHub) buildTreeURL(reference string) (string, error) {
	parsedURL, parseError := url.Parse(github.apiBase)
	if parseError != nil {
		return "", parseError
	}
	prefix := strings.TrimSuffix(parsedURL.Path, "/")
	parsedURL.Path = fmt.Sprintf("%s/repos/%s/%s/git/trees/%s",
		prefix,
		url.PathEscape(github.identifier.Owner),
		url.PathEscape(github.identifier.Repository),
		url.PathEscape(reference),
	)
	query := parsedURL.Query()
	query.Set("recursive", "1")
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

// alternateReference returns the conventional sibling default-branch name for
// the given ref, or an empty string when no fallback applies.
func alternateReference(reference string) string {
	switch reference {
	case defaultReference:
		return fallbackReference
	case fallbackReference:
		return defaultReference
	default:
		return ""
	}
}

// ParseRepositoryURL extracts owner and repository from a URL whose path ends
// with the ".../owner/repo" form, accepting bare "owner/repo" as well.
func ParseRepositoryURL(rawURL string) (types.RepoIdentifier, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return types.RepoIdentifier{}, NewError(KindInput, "repository URL is required")
	}
	candidate := trimmed
	if strings.Contains(candidate, "://") {
		parsedURL, parseError := url.Parse(candidate)
		if parseError != nil {
			return types.RepoIdentifier{}, WrapError(KindInput, parseError, "parsing repository URL %s", rawURL)
		}
		candidate = parsedURL.Path
	}
	candidate = strings.Trim(candidate, "/")
	candidate = strings.TrimSuffix(candidate, ".git")
	segments := strings.Split(candidate, "/")
	if len(segments) < 2 {
		return types.RepoIdentifier{}, NewError(KindInput, "repository URL %s must end with owner/repo", rawURL)
	}
	owner := segments[len(segments)-2]
	repository := segments[len(segments)-1]
	if owner == "" || repository == "" {
		return types.RepoIdentifier{}, NewError(KindInput, "repository URL %s must end with owner/repo", rawURL)
	}
	return types.RepoIdentifier{Owner: owner, Repository: repository}, nil
}

func formatAuthorizationHeaderValue(rawToken string) string {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, strings.ToLower(authorizationBearerPrefix)) || strings.HasPrefix(lower, strings.ToLower(authorizationTokenPrefix)) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") {
		return authorizationBearerPrefix + trimmed
	}
	return authorizationTokenPrefix + trimmed
}

var _ Collector = GitHub{}
