// Package mcp implements the Model Context Protocol (MCP) server for
// NG-SIEM search.
//
// The server exposes NG-SIEM capabilities to LLM agents as a closed set of
// tools:
//   - validate_query: Static query analysis before spending backend resources
//   - start_search: Submit an async search job, returns the job id
//   - get_search_status: Poll one job, returns state and results when done
//   - search_and_wait: Blocking search with internal polling and timeout
//   - stop_search: Cancel a running job (idempotent on finished jobs)
//   - get_available_repositories: The configured repository catalog
//   - list_templates / build_query: Pre-built query templates
//   - get_query_reference / get_query_best_practices: Query language docs
//   - get_search_history: Recent jobs from the audit trail
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol. The default transport is stdio; stdout is
// reserved for protocol messages and all logging goes to stderr. An
// alternative streamable HTTP transport guards every request with a Bearer
// token compared in constant time.
//
// # Validation Gate
//
// start_search and search_and_wait validate the query first. A query that
// is empty or matches a dangerous pattern is rejected before any backend
// call is attempted; its sanitized form is what actually gets submitted.
//
// # Error Handling
//
// Tool failures are standard JSON-RPC errors:
//
//	{
//	  "error": {
//	    "code": -32001,
//	    "message": "invalid repository name",
//	    "data": {"param": "repository"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error
//   - -32001: Invalid repository name
//   - -32002: Query failed validation
//   - -32003: Unknown search job
//   - -32004: Search timed out (data carries the job id)
//   - -32005: Backend rejected or unavailable
package mcp
