// Package validator performs static analysis of NG-SIEM query strings
// before they are sent to the backend.
//
// Validation is pure and makes no network calls. A query passes through an
// ordered series of checks (dangerous patterns, balanced delimiters, function
// names, pipe syntax, common mistakes), each of which may append issues to
// the result. Errors make the query invalid; warnings do so only in strict
// mode.
//
// # Basic Usage
//
//	v := validator.New()
//	result := v.Validate(`#event_simpleName=ProcessRollup2 | count()`, false)
//	if !result.Valid {
//	    for _, issue := range result.Issues {
//	        fmt.Printf("%s [%s]: %s\n", issue.Severity, issue.Code, issue.Message)
//	    }
//	}
//
// Valid queries carry a sanitized form (comments stripped, whitespace
// normalized) suitable for submission to the backend. Queries matching a
// dangerous pattern are rejected outright and must never reach the backend.
package validator
