package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/secopshq/ngsiem-mcp/internal/backend"
	"github.com/secopshq/ngsiem-mcp/internal/catalog"
	"github.com/secopshq/ngsiem-mcp/internal/config"
	"github.com/secopshq/ngsiem-mcp/internal/history"
	"github.com/secopshq/ngsiem-mcp/internal/search"
	"github.com/secopshq/ngsiem-mcp/internal/validator"
)

const (
	// ServerName is the MCP server name
	ServerName = "ngsiem-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"

	// RepositoriesResourceURI exposes the repository catalog as an MCP resource.
	RepositoriesResourceURI = "ngsiem://repositories"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp          *server.MCPServer
	validator    *validator.Engine
	orchestrator *search.Orchestrator
	catalog      *catalog.Catalog
	history      *history.Store
	cfg          *config.Config
	log          zerolog.Logger
}

// NewServer creates a new MCP server instance wired to the CrowdStrike
// backend described by cfg.
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	client, err := backend.NewFalconClient(cfg.ClientID, cfg.ClientSecret, cfg.BaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}

	cat, err := catalog.Load(cfg.CatalogDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	orchestrator := search.New(client, log)

	var hist *history.Store
	if cfg.HistoryPath != "" {
		hist, err = history.Open(cfg.HistoryPath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		orchestrator.WithRecorder(hist)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithResourceCapabilities(false, true),
	)

	s := &Server{
		mcp:          mcpServer,
		validator:    validator.New(),
		orchestrator: orchestrator,
		catalog:      cat,
		history:      hist,
		cfg:          cfg,
		log:          log,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server on the configured transport and blocks until
// shutdown. On stdio the protocol owns stdout, so all logging goes to stderr
// or the log file.
func (s *Server) Serve(ctx context.Context) error {
	// ctx may already be cancelled when Serve returns; the cleanup sweep
	// gets its own deadline so outstanding jobs can still be stopped.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.close(cleanupCtx)
	}()

	switch s.cfg.Transport {
	case config.TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return server.ServeStdio(s.mcp)
	}
}

// serveHTTP exposes the MCP server over streamable HTTP behind bearer
// authentication.
func (s *Server) serveHTTP(ctx context.Context) error {
	streamable := server.NewStreamableHTTPServer(s.mcp)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/mcp", s.requireBearerAuth(streamable))

	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.cfg.HTTPAddr).Msg("http transport listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// close cancels outstanding search jobs and releases resources.
func (s *Server) close(ctx context.Context) {
	if err := s.orchestrator.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to cancel jobs during shutdown")
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close history database")
		}
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	// Search lifecycle
	s.mcp.AddTool(validateQueryTool(), s.handleValidateQuery)
	s.mcp.AddTool(startSearchTool(), s.handleStartSearch)
	s.mcp.AddTool(getSearchStatusTool(), s.handleGetSearchStatus)
	s.mcp.AddTool(searchAndWaitTool(), s.handleSearchAndWait)
	s.mcp.AddTool(stopSearchTool(), s.handleStopSearch)

	// Reference and discovery
	s.mcp.AddTool(getAvailableRepositoriesTool(), s.handleGetAvailableRepositories)
	s.mcp.AddTool(listTemplatesTool(), s.handleListTemplates)
	s.mcp.AddTool(buildQueryTool(), s.handleBuildQuery)
	s.mcp.AddTool(getQueryReferenceTool(), s.handleGetQueryReference)
	s.mcp.AddTool(getQueryBestPracticesTool(), s.handleGetQueryBestPractices)

	// Audit trail
	s.mcp.AddTool(getSearchHistoryTool(), s.handleGetSearchHistory)

	return nil
}

// registerResources exposes read-only reference data as MCP resources.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		mcp.NewResource(
			RepositoriesResourceURI,
			"NG-SIEM repositories",
			mcp.WithResourceDescription("Configured NG-SIEM repositories with data types, use cases and retention"),
			mcp.WithMIMEType("application/json"),
		),
		s.handleRepositoriesResource,
	)
}

func (s *Server) handleRepositoriesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	repos := s.catalog.Repositories()
	body := formatJSON(map[string]interface{}{
		"repositories": repos,
		"count":        len(repos),
	})
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RepositoriesResourceURI,
			MIMEType: "application/json",
			Text:     body,
		},
	}, nil
}
