package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/secopshq/ngsiem-mcp/internal/backend"
	"github.com/secopshq/ngsiem-mcp/internal/catalog"
	"github.com/secopshq/ngsiem-mcp/internal/search"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeInvalidRepository = -32001 // Repository name rejected or unknown
	ErrorCodeQueryRejected     = -32002 // Query failed validation
	ErrorCodeUnknownJob        = -32003 // Search job id not started by this server
	ErrorCodeSearchTimeout     = -32004 // Blocking wait expired before the job finished
	ErrorCodeBackendError      = -32005 // Backend rejected the request or is unavailable
)

// handleValidateQuery handles the validate_query tool invocation
func (s *Server) handleValidateQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing",
		})
	}
	strict := getBoolDefault(args, "strict", false)

	result := s.validator.Validate(query, strict)

	response := map[string]interface{}{
		"valid":  result.Valid,
		"issues": result.Issues,
	}
	if result.SanitizedQuery != "" {
		response["sanitized_query"] = result.SanitizedQuery
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStartSearch handles the start_search tool invocation
func (s *Server) handleStartSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, err := s.resolveRepository(args)
	if err != nil {
		return nil, err
	}
	query, err := s.gateQuery(args)
	if err != nil {
		return nil, err
	}
	start := getStringDefault(args, "start", "1d")
	isLive := getBoolDefault(args, "is_live", false)

	snap, err := s.orchestrator.Start(ctx, repository, query, start, isLive)
	if err != nil {
		return nil, mapSearchError(err)
	}

	response := map[string]interface{}{
		"search_id":  snap.ID,
		"repository": snap.Repository,
		"state":      snap.State,
		"started_at": snap.StartedAt.Format(time.RFC3339),
		"message":    "Search started. Use get_search_status with this search_id to poll for results.",
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSearchStatus handles the get_search_status tool invocation
func (s *Server) handleGetSearchStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	searchID, ok := args["search_id"].(string)
	if !ok || searchID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_id parameter is required", map[string]interface{}{
			"param":  "search_id",
			"reason": "missing or empty",
		})
	}

	result, err := s.orchestrator.Status(ctx, searchID)
	if err != nil {
		return nil, mapSearchError(err)
	}

	response := map[string]interface{}{
		"search_id":   result.Job.ID,
		"repository":  result.Job.Repository,
		"state":       result.Job.State,
		"done":        result.Job.State.Terminal(),
		"poll_count":  result.Job.PollCount,
		"event_count": result.EventCount,
	}
	if result.Job.State == search.StateDone {
		response["events"] = result.Events
	}
	if len(result.Metadata) > 0 {
		response["metadata"] = result.Metadata
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchAndWait handles the search_and_wait tool invocation
func (s *Server) handleSearchAndWait(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, err := s.resolveRepository(args)
	if err != nil {
		return nil, err
	}
	query, err := s.gateQuery(args)
	if err != nil {
		return nil, err
	}
	start := getStringDefault(args, "start", "1d")
	isLive := getBoolDefault(args, "is_live", false)

	maxWaitSecs := getIntDefault(args, "max_wait_seconds", 300)
	if maxWaitSecs < 1 || maxWaitSecs > 3600 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_wait_seconds must be between 1 and 3600", map[string]interface{}{
			"param": "max_wait_seconds",
			"value": maxWaitSecs,
		})
	}
	pollSecs := getIntDefault(args, "poll_interval", 2)
	if pollSecs < 1 || pollSecs > 60 {
		return nil, newMCPError(ErrorCodeInvalidParams, "poll_interval must be between 1 and 60", map[string]interface{}{
			"param": "poll_interval",
			"value": pollSecs,
		})
	}

	outcome, err := s.orchestrator.WaitForCompletion(ctx, repository, query, start, isLive,
		time.Duration(maxWaitSecs)*time.Second, time.Duration(pollSecs)*time.Second)
	if err != nil {
		return nil, mapSearchError(err)
	}

	response := map[string]interface{}{
		"search_id":   outcome.Job.ID,
		"repository":  outcome.Job.Repository,
		"state":       outcome.Job.State,
		"event_count": outcome.EventCount,
		"events":      outcome.Events,
		"poll_count":  outcome.Job.PollCount,
		"elapsed_ms":  outcome.Elapsed.Milliseconds(),
	}
	if len(outcome.Metadata) > 0 {
		response["metadata"] = outcome.Metadata
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStopSearch handles the stop_search tool invocation
func (s *Server) handleStopSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	searchID, ok := args["search_id"].(string)
	if !ok || searchID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "search_id parameter is required", map[string]interface{}{
			"param":  "search_id",
			"reason": "missing or empty",
		})
	}

	result, err := s.orchestrator.Cancel(ctx, searchID)
	if err != nil {
		return nil, mapSearchError(err)
	}

	message := "Search cancelled."
	if !result.Transitioned {
		message = fmt.Sprintf("Search already finished with state %s; nothing to cancel.", result.Job.State)
	}
	response := map[string]interface{}{
		"search_id": result.Job.ID,
		"state":     result.Job.State,
		"cancelled": result.Transitioned,
		"message":   message,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetAvailableRepositories handles the get_available_repositories tool invocation
func (s *Server) handleGetAvailableRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos := s.catalog.Repositories()

	response := map[string]interface{}{
		"repositories": repos,
		"count":        len(repos),
	}
	if def := s.defaultRepository(); def != "" {
		response["default_repository"] = def
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListTemplates handles the list_templates tool invocation
func (s *Server) handleListTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	category := getStringDefault(args, "category", "")
	searchTerm := getStringDefault(args, "search_term", "")

	templates := s.catalog.Templates(category, searchTerm)

	response := map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBuildQuery handles the build_query tool invocation
func (s *Server) handleBuildQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	templateID, ok := args["template"].(string)
	if !ok || templateID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "template parameter is required", map[string]interface{}{
			"param":  "template",
			"reason": "missing or empty",
		})
	}

	params := map[string]string{}
	if raw, ok := args["parameters"].(map[string]interface{}); ok {
		for k, v := range raw {
			params[k] = fmt.Sprintf("%v", v)
		}
	}

	query, err := s.catalog.RenderTemplate(templateID, params)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to build query from template", map[string]interface{}{
			"template": templateID,
			"reason":   err.Error(),
		})
	}

	// Templates are trusted but parameter values are not; validate the
	// rendered query the same way an ad-hoc one would be.
	result := s.validator.Validate(query, false)

	response := map[string]interface{}{
		"template": templateID,
		"query":    query,
		"valid":    result.Valid,
	}
	if len(result.Issues) > 0 {
		response["issues"] = result.Issues
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetQueryReference handles the get_query_reference tool invocation
func (s *Server) handleGetQueryReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	name := getStringDefault(args, "function_name", "")
	category := getStringDefault(args, "category", "")
	searchTerm := getStringDefault(args, "search_term", "")

	functions := s.catalog.Functions(name, category, searchTerm)
	if name != "" && len(functions) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown function", map[string]interface{}{
			"param": "function_name",
			"value": name,
		})
	}

	response := map[string]interface{}{
		"functions": functions,
		"count":     len(functions),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetQueryBestPractices handles the get_query_best_practices tool invocation
func (s *Server) handleGetQueryBestPractices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bp := catalog.QueryBestPractices()

	response := map[string]interface{}{
		"description":       bp.Description,
		"pipeline_steps":    bp.PipelineSteps,
		"optimization_tips": bp.OptimizationTips,
		"anti_patterns":     bp.AntiPatterns,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetSearchHistory handles the get_search_history tool invocation
func (s *Server) handleGetSearchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	if s.history == nil {
		response := map[string]interface{}{
			"enabled": false,
			"message": "Search history is not configured. Set NGSIEM_HISTORY_PATH to enable the audit trail.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	limit := getIntDefault(args, "limit", 20)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	entries, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read search history", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"enabled":  true,
		"searches": entries,
		"count":    len(entries),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// resolveRepository picks the repository for a search: explicit argument,
// then the configured default, then the catalog default. The name is gated
// against the permitted character set before any backend call.
func (s *Server) resolveRepository(args map[string]interface{}) (string, error) {
	repository := getStringDefault(args, "repository", "")
	if repository == "" {
		repository = s.defaultRepository()
	}
	if repository == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "repository parameter is required (no default repository configured)", map[string]interface{}{
			"param":  "repository",
			"reason": "missing and no default configured",
		})
	}
	if err := search.ValidateRepository(repository); err != nil {
		return "", newMCPError(ErrorCodeInvalidRepository, "invalid repository name", map[string]interface{}{
			"repository": repository,
			"reason":     "only letters, digits, underscores and hyphens are allowed",
		})
	}
	return repository, nil
}

func (s *Server) defaultRepository() string {
	if s.cfg != nil && s.cfg.DefaultRepository != "" {
		return s.cfg.DefaultRepository
	}
	return s.catalog.DefaultRepository()
}

// gateQuery validates query_string and returns the sanitized form to
// execute. Queries with validation errors never reach the backend.
func (s *Server) gateQuery(args map[string]interface{}) (string, error) {
	query, ok := args["query_string"].(string)
	if !ok || query == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "query_string parameter is required", map[string]interface{}{
			"param":  "query_string",
			"reason": "missing or empty",
		})
	}

	result := s.validator.Validate(query, false)
	if !result.Valid {
		return "", newMCPError(ErrorCodeQueryRejected, "query failed validation", map[string]interface{}{
			"issues": result.Issues,
		})
	}
	return result.SanitizedQuery, nil
}

// mapSearchError translates orchestrator and backend errors into MCP errors.
// Backend error text never contains credentials; it is safe to surface.
func mapSearchError(err error) error {
	var timeout *search.TimeoutError
	switch {
	case errors.As(err, &timeout):
		return newMCPError(ErrorCodeSearchTimeout, "search did not complete in time; it may still be running", map[string]interface{}{
			"search_id":       timeout.JobID,
			"elapsed_seconds": int(timeout.Elapsed.Seconds()),
			"hint":            "use get_search_status with this search_id, or stop_search to cancel it",
		})
	case errors.Is(err, search.ErrInvalidRepository):
		return newMCPError(ErrorCodeInvalidRepository, "invalid repository name", nil)
	case errors.Is(err, search.ErrUnknownJob):
		return newMCPError(ErrorCodeUnknownJob, "unknown search id; only searches started by this server can be inspected", nil)
	case errors.Is(err, search.ErrSearchFailed):
		return newMCPError(ErrorCodeBackendError, "backend reported the search as failed", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, search.ErrJobCancelled):
		return newMCPError(ErrorCodeBackendError, "search was cancelled before it completed", map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, backend.ErrRepositoryNotFound):
		return newMCPError(ErrorCodeInvalidRepository, "repository not found", nil)
	case errors.Is(err, backend.ErrAccessDenied):
		return newMCPError(ErrorCodeBackendError, "access to repository denied", nil)
	case errors.Is(err, backend.ErrUnauthorized):
		return newMCPError(ErrorCodeBackendError, "backend authorization failed; check the configured API credentials", nil)
	case errors.Is(err, backend.ErrJobNotFound):
		return newMCPError(ErrorCodeUnknownJob, "backend no longer knows this search job", nil)
	case errors.Is(err, backend.ErrUnavailable):
		return newMCPError(ErrorCodeBackendError, "backend unavailable", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "search operation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
