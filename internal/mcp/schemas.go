package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// repositoryProperty is shared by every tool that targets a repository.
func repositoryProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "NG-SIEM repository name (uses the configured default if omitted). Only letters, digits, underscores and hyphens.",
		"pattern":     "^[A-Za-z0-9_-]+$",
	}
}

// validateQueryTool returns the tool definition for validate_query
func validateQueryTool() mcp.Tool {
	return mcp.Tool{
		Name: "validate_query",
		Description: "Validate NG-SIEM query syntax before execution. Checks for balanced " +
			"parentheses/brackets/quotes, unknown functions, pipe syntax problems, common " +
			"mistakes and dangerous patterns. Returns structured issues with suggestions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "NG-SIEM query to validate",
				},
				"strict": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, warnings are treated as errors",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// startSearchTool returns the tool definition for start_search
func startSearchTool() mcp.Tool {
	return mcp.Tool{
		Name: "start_search",
		Description: "Start an asynchronous NG-SIEM search and return its job id immediately. " +
			"The query is validated first; use get_search_status to poll for results.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": repositoryProperty(),
				"query_string": map[string]interface{}{
					"type":        "string",
					"description": "NG-SIEM search query (e.g. '#event_simpleName=ProcessRollup2')",
				},
				"start": map[string]interface{}{
					"type":        "string",
					"description": "Time range start (e.g. '1d', '24h', '2025-01-01T00:00:00Z')",
					"default":     "1d",
				},
				"is_live": map[string]interface{}{
					"type":        "boolean",
					"description": "Run as a live/streaming search",
					"default":     false,
				},
			},
			Required: []string{"query_string"},
		},
	}
}

// getSearchStatusTool returns the tool definition for get_search_status
func getSearchStatusTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_search_status",
		Description: "Check the status of a search job started by this server. Returns the " +
			"cached state, event count and, once the job is done, the matching events.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": repositoryProperty(),
				"search_id": map[string]interface{}{
					"type":        "string",
					"description": "Search job id returned by start_search",
				},
			},
			Required: []string{"search_id"},
		},
	}
}

// searchAndWaitTool returns the tool definition for search_and_wait
func searchAndWaitTool() mcp.Tool {
	return mcp.Tool{
		Name: "search_and_wait",
		Description: "Execute a search and block until results are ready or the wait times out. " +
			"Combines start_search and get_search_status with internal polling. On timeout the " +
			"error carries the job id so the search can still be inspected or cancelled.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": repositoryProperty(),
				"query_string": map[string]interface{}{
					"type":        "string",
					"description": "NG-SIEM search query",
				},
				"start": map[string]interface{}{
					"type":        "string",
					"description": "Time range start (e.g. '1d', '24h')",
					"default":     "1d",
				},
				"is_live": map[string]interface{}{
					"type":        "boolean",
					"description": "Run as a live/streaming search",
					"default":     false,
				},
				"max_wait_seconds": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum time to wait for results (1-3600 seconds)",
					"default":     300,
					"minimum":     1,
					"maximum":     3600,
				},
				"poll_interval": map[string]interface{}{
					"type":        "integer",
					"description": "Seconds between status checks (1-60)",
					"default":     2,
					"minimum":     1,
					"maximum":     60,
				},
			},
			Required: []string{"query_string"},
		},
	}
}

// stopSearchTool returns the tool definition for stop_search
func stopSearchTool() mcp.Tool {
	return mcp.Tool{
		Name: "stop_search",
		Description: "Cancel a running search job. Cancelling a job that already finished is a " +
			"no-op that reports the job's final state.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": repositoryProperty(),
				"search_id": map[string]interface{}{
					"type":        "string",
					"description": "Search job id to cancel",
				},
			},
			Required: []string{"search_id"},
		},
	}
}

// getAvailableRepositoriesTool returns the tool definition for get_available_repositories
func getAvailableRepositoriesTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_available_repositories",
		Description: "List the NG-SIEM repositories configured in this environment, including " +
			"descriptions, data types, use cases and retention. Consult this before choosing a " +
			"repository to search.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// listTemplatesTool returns the tool definition for list_templates
func listTemplatesTool() mcp.Tool {
	return mcp.Tool{
		Name: "list_templates",
		Description: "List pre-built NG-SIEM query templates for security operations: threat " +
			"hunting, IOC hunting, incident response, baselines, compliance and statistics.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Filter by category",
					"enum": []string{
						"threat_hunting", "ioc_hunting", "incident_response",
						"baseline", "compliance", "statistics",
					},
				},
				"search_term": map[string]interface{}{
					"type":        "string",
					"description": "Search templates by keyword",
				},
			},
		},
	}
}

// buildQueryTool returns the tool definition for build_query
func buildQueryTool() mcp.Tool {
	return mcp.Tool{
		Name: "build_query",
		Description: "Build a ready-to-execute query from a template. Use list_templates first " +
			"to discover template ids and their parameters.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"template": map[string]interface{}{
					"type":        "string",
					"description": "Template id (e.g. 'powershell_execution', 'check_ip')",
				},
				"parameters": map[string]interface{}{
					"type":        "object",
					"description": "Template parameter values (e.g. {\"ip_address\": \"10.0.0.1\"})",
				},
			},
			Required: []string{"template"},
		},
	}
}

// getQueryReferenceTool returns the tool definition for get_query_reference
func getQueryReferenceTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_query_reference",
		Description: "Get the NG-SIEM query language reference: available functions with syntax " +
			"and descriptions. Filter by category, exact function name, or keyword.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Filter by category",
					"enum": []string{
						"aggregate", "filtering", "security", "data_manipulation",
						"sorting", "time", "parsing", "correlation",
					},
				},
				"function_name": map[string]interface{}{
					"type":        "string",
					"description": "Get details for one function (e.g. 'groupBy', 'ioc:lookup')",
				},
				"search_term": map[string]interface{}{
					"type":        "string",
					"description": "Search functions by keyword",
				},
			},
		},
	}
}

// getQueryBestPracticesTool returns the tool definition for get_query_best_practices
func getQueryBestPracticesTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_query_best_practices",
		Description: "Get query writing best practices: the recommended construction pipeline " +
			"(tag filters first, then field filters, transformations, aggregations), optimization " +
			"tips and anti-patterns to avoid.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getSearchHistoryTool returns the tool definition for get_search_history
func getSearchHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name: "get_search_history",
		Description: "List recently executed searches from the audit trail, newest first. " +
			"Available only when the server is configured with a history database.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum entries to return (1-100)",
					"default":     20,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}
