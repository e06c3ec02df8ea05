package validator

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity classifies how serious a validation issue is.
type Severity string

const (
	// SeverityError prevents query execution.
	SeverityError Severity = "error"
	// SeverityWarning may cause issues but does not block execution
	// unless strict mode is requested.
	SeverityWarning Severity = "warning"
)

// Stable issue codes. These are part of the tool contract and must not change.
const (
	CodeEmptyQuery       = "EMPTY_QUERY"
	CodeDangerousPattern = "DANGEROUS_PATTERN"
	CodeUnbalancedParen  = "UNBALANCED_PAREN"
	CodeUnbalancedBrkt   = "UNBALANCED_BRACKET"
	CodeUnbalancedQuote  = "UNBALANCED_QUOTE"
	CodeUnknownFunction  = "UNKNOWN_FUNCTION"
	CodeEmptyPipeSegment = "EMPTY_PIPE_SEGMENT"
	CodeTrailingPipe     = "TRAILING_PIPE"
	CodeLeadingPipe      = "LEADING_PIPE"
	CodeCommonMistake    = "COMMON_MISTAKE"
)

// Issue is a single finding produced by validation. Position is a byte
// offset into the query, or -1 when the issue has no specific location.
type Issue struct {
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Position   int      `json:"position"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Result is the outcome of validating one query. Issues appear in check
// order. SanitizedQuery is populated only when the query is valid.
type Result struct {
	Valid          bool    `json:"valid"`
	Issues         []Issue `json:"issues"`
	SanitizedQuery string  `json:"sanitized_query,omitempty"`
}

// HasErrors reports whether any issue is error severity.
func (r Result) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// functionNames lists the query-language functions recognized by the
// validator, in canonical casing. Namespaced names use a colon separator.
var functionNames = []string{
	"count", "avg", "sum", "min", "max", "groupBy", "bucket",
	"collect", "percentile", "stdDev", "variance", "top", "stats",
	"in", "regex", "cidr", "ipLocation", "test", "exists", "empty",
	"select", "rename", "drop", "eval", "format", "lower", "upper",
	"replace", "split", "concat",
	"sort", "head", "tail", "sample", "dedup",
	"ioc:lookup", "hashMatch", "hashRewrite",
	"formatTime", "parseTimestamp", "now", "timechart",
	"kvParse", "parseJson", "parseXml", "parseCsv",
	"join", "selfJoin", "correlate",
	"table", "sankey", "worldMap", "piechart", "barchart",
	"array:append", "array:contains", "array:filter", "array:length",
	"array:eval", "array:exists", "array:intersection", "array:union",
}

// knownFunctions indexes functionNames case-insensitively.
var knownFunctions = map[string]struct{}{}

func init() {
	for _, n := range functionNames {
		knownFunctions[strings.ToLower(n)] = struct{}{}
	}
}

// dangerousPatterns are structural signatures that indicate injection
// attempts. Any match rejects the query before it can reach the backend.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*(?:drop|delete|truncate|insert|update)`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`{{.*}}`),
	regexp.MustCompile(`\$\{.*\}`),
}

var (
	functionCallRe = regexp.MustCompile(`(\w+(?::\w+)?)\s*\(`)
	emptyPipeRe    = regexp.MustCompile(`\|\s*\|`)
	doubleEqRe     = regexp.MustCompile(`==`)
	bareWordRe     = regexp.MustCompile(`(?:^|\s)(and|or)(?:\s|$)`)
	unquotedValRe  = regexp.MustCompile(`=\s*([^"'=\s|]+\s+[^"'=\s|]+)\s*(?:\||$)`)
)

// Engine validates NG-SIEM query strings. It is stateless and safe for
// concurrent use.
type Engine struct{}

// New creates a validation engine.
func New() *Engine {
	return &Engine{}
}

// Validate runs all checks against the query and returns the accumulated
// issues. Empty queries and queries matching a dangerous pattern
// short-circuit the remaining checks; otherwise every check runs even after
// an error has been found, so the caller sees all problems at once.
//
// In strict mode warnings also make the query invalid.
func (e *Engine) Validate(query string, strict bool) Result {
	var issues []Issue

	if strings.TrimSpace(query) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     CodeEmptyQuery,
			Message:  "query cannot be empty",
			Position: -1,
		})
		return Result{Valid: false, Issues: issues}
	}

	query = strings.TrimSpace(query)

	if issue := checkDangerousPatterns(query); issue != nil {
		issues = append(issues, *issue)
		return Result{Valid: false, Issues: issues}
	}

	if issue := checkBalancedPair(query, '(', ')', CodeUnbalancedParen, "parenthesis"); issue != nil {
		issues = append(issues, *issue)
	}
	if issue := checkBalancedPair(query, '[', ']', CodeUnbalancedBrkt, "bracket"); issue != nil {
		issues = append(issues, *issue)
	}
	issues = append(issues, checkBalancedQuotes(query)...)
	issues = append(issues, checkFunctionNames(query)...)
	issues = append(issues, checkPipeSyntax(query)...)
	issues = append(issues, checkCommonMistakes(query)...)

	hasErrors := false
	hasWarnings := false
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			hasErrors = true
		case SeverityWarning:
			hasWarnings = true
		}
	}

	valid := !hasErrors && (!strict || !hasWarnings)

	result := Result{Valid: valid, Issues: issues}
	if valid {
		result.SanitizedQuery = Sanitize(query)
	}
	return result
}

// checkDangerousPatterns scans for injection signatures. One match is
// enough; the query is rejected outright.
func checkDangerousPatterns(query string) *Issue {
	for _, re := range dangerousPatterns {
		if loc := re.FindStringIndex(query); loc != nil {
			return &Issue{
				Severity:   SeverityError,
				Code:       CodeDangerousPattern,
				Message:    "query contains potentially dangerous pattern",
				Position:   loc[0],
				Suggestion: "remove suspicious content",
			}
		}
	}
	return nil
}

// checkBalancedPair verifies open/close delimiter nesting, ignoring
// characters inside quoted segments.
func checkBalancedPair(query string, openCh, closeCh byte, code, name string) *Issue {
	depth := 0
	inString := false
	var stringChar byte

	for i := 0; i < len(query); i++ {
		c := query[i]

		if (c == '"' || c == '\'') && (i == 0 || query[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = c
			} else if c == stringChar {
				inString = false
			}
			continue
		}
		if inString {
			continue
		}

		switch c {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth < 0 {
				return &Issue{
					Severity: SeverityError,
					Code:     code,
					Message:  fmt.Sprintf("unmatched closing %s", name),
					Position: i,
				}
			}
		}
	}

	if depth != 0 {
		return &Issue{
			Severity:   SeverityError,
			Code:       code,
			Message:    fmt.Sprintf("unbalanced %s: %d unclosed", name, depth),
			Position:   -1,
			Suggestion: fmt.Sprintf("check opening and closing %s pairs match", name),
		}
	}
	return nil
}

// checkBalancedQuotes counts unescaped quote characters; odd counts mean an
// unterminated string literal.
func checkBalancedQuotes(query string) []Issue {
	doubles := 0
	singles := 0
	for i := 0; i < len(query); i++ {
		if i > 0 && query[i-1] == '\\' {
			continue
		}
		switch query[i] {
		case '"':
			doubles++
		case '\'':
			singles++
		}
	}

	var issues []Issue
	if doubles%2 != 0 {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       CodeUnbalancedQuote,
			Message:    "unbalanced double quotes",
			Position:   -1,
			Suggestion: "check all double quotes are closed",
		})
	}
	if singles%2 != 0 {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       CodeUnbalancedQuote,
			Message:    "unbalanced single quotes",
			Position:   -1,
			Suggestion: "check all single quotes are closed",
		})
	}
	return issues
}

// checkFunctionNames warns on function calls whose name is not in the known
// set. A parenthesized value list after a field filter (field=(a b c)) is
// not a function call, so identifiers immediately preceded by a comparison
// operator are skipped.
func checkFunctionNames(query string) []Issue {
	var issues []Issue
	for _, match := range functionCallRe.FindAllStringSubmatchIndex(query, -1) {
		start, end := match[2], match[3]
		name := query[start:end]
		if _, ok := knownFunctions[strings.ToLower(name)]; ok {
			continue
		}
		if likelyFieldFilter(query, start) {
			continue
		}
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       CodeUnknownFunction,
			Message:    fmt.Sprintf("unknown function: %s", name),
			Position:   start,
			Suggestion: "check function name spelling or refer to the query reference",
		})
	}
	return issues
}

// likelyFieldFilter reports whether the identifier at pos follows a
// comparison operator, making it a value rather than a function name.
func likelyFieldFilter(query string, pos int) bool {
	before := strings.TrimRight(query[:pos], " \t")
	return strings.HasSuffix(before, "=") || strings.HasSuffix(before, "!")
}

// checkPipeSyntax flags malformed pipeline stage separators.
func checkPipeSyntax(query string) []Issue {
	var issues []Issue
	trimmed := strings.TrimSpace(query)

	if loc := emptyPipeRe.FindStringIndex(query); loc != nil {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       CodeEmptyPipeSegment,
			Message:    "empty pipe segment (consecutive pipes)",
			Position:   loc[0],
			Suggestion: "remove the duplicate pipe or add a stage between pipes",
		})
	}
	if strings.HasSuffix(trimmed, "|") {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       CodeTrailingPipe,
			Message:    "query ends with a pipe but no following stage",
			Position:   len(trimmed) - 1,
			Suggestion: "add a stage after the pipe or remove it",
		})
	}
	// A leading pipe is legal in some dialects (piping into a saved search),
	// so it stays a warning.
	if strings.HasPrefix(trimmed, "|") {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       CodeLeadingPipe,
			Message:    "query starts with a pipe",
			Position:   0,
			Suggestion: "queries usually start with a filter, not a pipe",
		})
	}
	return issues
}

// checkCommonMistakes looks for patterns that parse but rarely mean what the
// author intended.
func checkCommonMistakes(query string) []Issue {
	var issues []Issue

	if loc := doubleEqRe.FindStringIndex(query); loc != nil {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       CodeCommonMistake,
			Message:    "use single = for equality, not ==",
			Position:   loc[0],
			Suggestion: "replace == with =",
		})
	}

	// Boolean connectives are case sensitive; lowercase and/or inside a
	// quoted string is fine.
	unquoted := maskQuoted(query)
	if loc := bareWordRe.FindStringSubmatchIndex(unquoted); loc != nil {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       CodeCommonMistake,
			Message:    "logical operators should be uppercase (AND, OR)",
			Position:   loc[2],
			Suggestion: "use AND/OR instead of and/or",
		})
	}

	if m := unquotedValRe.FindStringSubmatchIndex(unquoted); m != nil {
		value := query[m[2]:m[3]]
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			Code:       CodeCommonMistake,
			Message:    "value with spaces should be quoted",
			Position:   m[2],
			Suggestion: fmt.Sprintf("consider: =%q", value),
		})
	}
	return issues
}

// maskQuoted replaces the contents of quoted segments with spaces so
// position-based matches against the original string stay aligned.
func maskQuoted(query string) string {
	out := []byte(query)
	inString := false
	var stringChar byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		if (c == '"' || c == '\'') && (i == 0 || query[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = c
			} else if c == stringChar {
				inString = false
			}
			continue
		}
		if inString {
			out[i] = ' '
		}
	}
	return string(out)
}
