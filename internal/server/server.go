// Package server exposes the mapping pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/temirov/repomap/internal/collector"
	"github.com/temirov/repomap/internal/config"
	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/report"
	"github.com/temirov/repomap/internal/stats"
	"github.com/temirov/repomap/internal/tree"
	"github.com/temirov/repomap/internal/types"
)

const (
	queryParameterPath    = "path"
	queryParameterRepo    = "repo"
	queryParameterRef     = "ref"
	queryParameterFormat  = "format"
	queryParameterExclude = "exclude"

	formatText = "text"
	formatJSON = "json"

	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeHTML   = "text/html; charset=utf-8"
)

// Server handles HTTP requests for trees, stats, and reports. Every request
// collects and builds from scratch; no tree or cache is shared across requests.
type Server struct {
	router        chi.Router
	configuration config.ApplicationConfiguration
	logger        *zap.Logger
	httpClient    *http.Client
}

// New creates and configures the HTTP server.
func New(configuration config.ApplicationConfiguration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := configuration.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	server := &Server{
		configuration: configuration,
		logger:        logger,
		httpClient:    &http.Client{Timeout: timeout},
	}
	server.setupRoutes()
	return server
}

// ServeHTTP implements http.Handler.
func (server *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	server.router.ServeHTTP(writer, request)
}

func (server *Server) setupRoutes() {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(RequestLogger(server.logger))

	router.Get("/healthz", server.handleHealth)

	router.Group(func(protected chi.Router) {
		if server.configuration.APIKey != "" {
			protected.Use(AuthMiddleware(server.configuration.APIKey))
		}
		protected.Get("/api/tree", server.handleTree)
		protected.Get("/api/stats", server.handleStats)
		protected.Get("/api/report", server.handleReport)
		protected.Get("/", server.handleIndex)
	})

	server.router = router
}

func (server *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set(contentTypeHeader, contentTypeJSON)
	writer.Write([]byte(`{"status":"ok"}`))
}

// handleTree renders the built tree as ASCII text or as the structured record.
func (server *Server) handleTree(writer http.ResponseWriter, request *http.Request) {
	root, buildError := server.buildTree(request)
	if buildError != nil {
		server.writeError(writer, buildError)
		return
	}
	if request.URL.Query().Get(queryParameterFormat) == formatText {
		writer.Header().Set(contentTypeHeader, contentTypeText)
		tree.Fprint(writer, root)
		return
	}
	encoded, marshalError := tree.MarshalRecord(root)
	if marshalError != nil {
		server.writeError(writer, marshalError)
		return
	}
	writer.Header().Set(contentTypeHeader, contentTypeJSON)
	writer.Write([]byte(encoded))
}

func (server *Server) handleStats(writer http.ResponseWriter, request *http.Request) {
	root, buildError := server.buildTree(request)
	if buildError != nil {
		server.writeError(writer, buildError)
		return
	}
	summary := stats.Summarize(root)
	writer.Header().Set(contentTypeHeader, contentTypeJSON)
	json.NewEncoder(writer).Encode(summary)
}

func (server *Server) handleReport(writer http.ResponseWriter, request *http.Request) {
	root, buildError := server.buildTree(request)
	if buildError != nil {
		server.writeError(writer, buildError)
		return
	}
	encoded, marshalError := report.MarshalJSON(report.Generate(root, time.Now()))
	if marshalError != nil {
		server.writeError(writer, marshalError)
		return
	}
	writer.Header().Set(contentTypeHeader, contentTypeJSON)
	writer.Write([]byte(encoded))
}

// handleIndex serves the HTML documentation view of the mapped source.
func (server *Server) handleIndex(writer http.ResponseWriter, request *http.Request) {
	root, buildError := server.buildTree(request)
	if buildError != nil {
		server.writeError(writer, buildError)
		return
	}
	htmlBody, renderError := report.RenderHTML(report.Generate(root, time.Now()))
	if renderError != nil {
		server.writeError(writer, renderError)
		return
	}
	writer.Header().Set(contentTypeHeader, contentTypeHTML)
	writer.Write([]byte("<!doctype html>\n<html><head><title>repomap</title></head><body>\n"))
	writer.Write([]byte(htmlBody))
	writer.Write([]byte("\n</body></html>\n"))
}

// buildTree selects the collector from query parameters and folds its entries.
// Exactly one of path= (local) and repo= (remote) must be provided.
func (server *Server) buildTree(request *http.Request) (*types.TreeNode, error) {
	queryValues := request.URL.Query()
	localPath := queryValues.Get(queryParameterPath)
	repositoryURL := queryValues.Get(queryParameterRepo)

	if (localPath == "") == (repositoryURL == "") {
		return nil, collector.NewError(collector.KindInput, "exactly one of %s or %s is required", queryParameterPath, queryParameterRepo)
	}

	excludes := server.configuration.RecordExclusionSet()
	if requestedPatterns := queryValues[queryParameterExclude]; len(requestedPatterns) > 0 {
		excludes = exclusion.NewSet(requestedPatterns...)
	}

	var source collector.Collector
	if localPath != "" {
		source = collector.NewLocal(localPath, excludes, server.logger)
	} else {
		identifier, parseError := collector.ParseRepositoryURL(repositoryURL)
		if parseError != nil {
			return nil, parseError
		}
		identifier.Reference = queryValues.Get(queryParameterRef)
		if identifier.Reference == "" {
			identifier.Reference = server.configuration.DefaultRef
		}
		github := collector.NewGitHub(server.httpClient, identifier, excludes).WithLogger(server.logger)
		if server.configuration.GitHubAPIBase != "" {
			github = github.WithAPIBase(server.configuration.GitHubAPIBase)
		}
		if server.configuration.GitHubToken != "" {
			github = github.WithAuthorizationToken(server.configuration.GitHubToken)
		}
		source = github
	}

	entries, collectError := source.Collect(request.Context())
	if collectError != nil {
		return nil, collectError
	}
	return tree.Build(entries, excludes), nil
}

// writeError maps collection error kinds to HTTP status codes and emits a
// JSON body carrying the kind and the human message.
func (server *Server) writeError(writer http.ResponseWriter, failure error) {
	kind := collector.KindOf(failure)
	status := http.StatusInternalServerError
	switch kind {
	case collector.KindInput:
		status = http.StatusBadRequest
	case collector.KindNotFound:
		status = http.StatusNotFound
	case collector.KindAuth:
		status = http.StatusUnauthorized
	case collector.KindRateLimit:
		status = http.StatusTooManyRequests
	case collector.KindUpstream:
		status = http.StatusBadGateway
	}
	writer.Header().Set(contentTypeHeader, contentTypeJSON)
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{
		"error": failure.Error(),
		"kind":  kind,
	})
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (server *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         server.configuration.ListenAddress,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- httpServer.ListenAndServe()
	}()

	server.logger.Info("listening", zap.String("address", server.configuration.ListenAddress))
	select {
	case serveError := <-serveErrors:
		if serveError != nil && serveError != http.ErrServerClosed {
			return serveError
		}
		return nil
	case <-ctx.Done():
		shutdownContext, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		return httpServer.Shutdown(shutdownContext)
	}
}
