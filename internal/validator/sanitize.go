package validator

import (
	"sort"
	"strings"
)

// Sanitize normalizes a query for submission to the backend: line and block
// comments are stripped (comments can hide malicious content from a human
// reviewer), runs of whitespace outside quoted segments collapse to a single
// space, and the result is trimmed. Quoted content is never altered.
//
// Sanitize is idempotent.
func Sanitize(query string) string {
	query = stripLineComments(query)
	query = stripBlockComments(query)
	query = collapseWhitespace(query)
	return strings.TrimSpace(query)
}

// stripLineComments removes // comments up to end of line. Comment markers
// inside quoted segments are preserved.
func stripLineComments(query string) string {
	var b strings.Builder
	b.Grow(len(query))
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
			b.WriteByte(c)
			continue
		}

		if !inString && c == '/' && i+1 < len(query) && query[i+1] == '/' {
			nl := strings.IndexByte(query[i:], '\n')
			if nl < 0 {
				break
			}
			i += nl - 1 // keep the newline, it separates stages
			continue
		}

		b.WriteByte(c)
	}
	return b.String()
}

// stripBlockComments removes /* */ comments. Non-nesting: the first */
// closes the comment. An unterminated comment runs to end of input.
func stripBlockComments(query string) string {
	var b strings.Builder
	b.Grow(len(query))
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
			b.WriteByte(c)
			continue
		}

		if !inString && c == '/' && i+1 < len(query) && query[i+1] == '*' {
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				break
			}
			i += 2 + end + 1
			continue
		}

		b.WriteByte(c)
	}
	return b.String()
}

// collapseWhitespace reduces unquoted whitespace runs to one space.
func collapseWhitespace(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	inString := false
	var stringChar byte
	pendingSpace := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		if (c == '"' || c == '\'') && (i == 0 || query[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = c
			} else if c == stringChar {
				inString = false
			}
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c)
			continue
		}

		if inString {
			b.WriteByte(c)
			continue
		}

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			pendingSpace = true
			continue
		}

		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// maxSuggestions caps completion output so tool responses stay small.
const maxSuggestions = 10

// SuggestCompletions proposes next steps for a partial query: full function
// names after a trailing pipe, or prefix matches against the last pipeline
// segment.
func (e *Engine) SuggestCompletions(partial string) []string {
	trimmed := strings.TrimSpace(strings.ToLower(partial))
	if trimmed == "" {
		return nil
	}

	names := append([]string(nil), functionNames...)
	sort.Strings(names)

	var suggestions []string
	switch {
	case strings.HasSuffix(trimmed, "|"):
		for _, name := range names {
			suggestions = append(suggestions, name+"()")
			if len(suggestions) >= maxSuggestions {
				break
			}
		}
	case strings.Contains(trimmed, "|"):
		segments := strings.Split(trimmed, "|")
		last := strings.TrimSpace(segments[len(segments)-1])
		for _, name := range names {
			if strings.HasPrefix(strings.ToLower(name), last) {
				suggestions = append(suggestions, name)
				if len(suggestions) >= maxSuggestions {
					break
				}
			}
		}
	}
	return suggestions
}
