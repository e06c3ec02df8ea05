package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(r Result) []string {
	out := make([]string, 0, len(r.Issues))
	for _, i := range r.Issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_CleanQuery(t *testing.T) {
	v := New()

	result := v.Validate(`#event_simpleName=ProcessRollup2 | FileName=powershell.exe`, false)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
	assert.NotEmpty(t, result.SanitizedQuery)
}

func TestValidate_EmptyQuery(t *testing.T) {
	v := New()

	for _, query := range []string{"", "   ", "\t\n"} {
		result := v.Validate(query, false)
		assert.False(t, result.Valid)
		require.Len(t, result.Issues, 1, "empty query should short-circuit remaining checks")
		assert.Equal(t, CodeEmptyQuery, result.Issues[0].Code)
		assert.Equal(t, SeverityError, result.Issues[0].Severity)
		assert.Empty(t, result.SanitizedQuery)
	}
}

func TestValidate_DangerousPatterns(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		query string
	}{
		{"sql verb after separator", `#event_simpleName=Foo; drop table events`},
		{"script tag", `FileName=<script>alert(1)</script>`},
		{"template braces", `user={{injected}}`},
		{"shell expansion", `path=${IFS}rm`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.query, false)
			assert.False(t, result.Valid)
			require.Len(t, result.Issues, 1, "dangerous pattern should short-circuit remaining checks")
			assert.Equal(t, CodeDangerousPattern, result.Issues[0].Code)
			assert.Equal(t, SeverityError, result.Issues[0].Severity)
		})
	}
}

func TestValidate_UnbalancedParens(t *testing.T) {
	v := New()

	result := v.Validate(`count(x`, false)
	assert.False(t, result.Valid)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, CodeUnbalancedParen, result.Issues[0].Code)
	assert.Equal(t, SeverityError, result.Issues[0].Severity)

	result = v.Validate(`a=b) | count()`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeUnbalancedParen)
	// Extra closer reports the offending position.
	assert.Equal(t, 3, result.Issues[0].Position)
}

func TestValidate_ParensInsideQuotesIgnored(t *testing.T) {
	v := New()

	result := v.Validate(`CommandLine="(unclosed" | count()`, false)
	assert.True(t, result.Valid, "parens inside quoted segments must not count: %v", result.Issues)
}

func TestValidate_UnbalancedBrackets(t *testing.T) {
	v := New()

	result := v.Validate(`field=[a, b | count()`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeUnbalancedBrkt)
}

func TestValidate_UnbalancedQuotes(t *testing.T) {
	v := New()

	result := v.Validate(`FileName="powershell.exe`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeUnbalancedQuote)

	result = v.Validate(`FileName=\"escaped`, false)
	assert.NotContains(t, codes(result), CodeUnbalancedQuote, "escaped quotes do not count")
}

func TestValidate_UnknownFunction(t *testing.T) {
	v := New()

	result := v.Validate(`#event_simpleName=Foo | countt()`, false)
	assert.True(t, result.Valid, "unknown function is a warning, not an error")
	require.Len(t, result.Issues, 1)
	assert.Equal(t, CodeUnknownFunction, result.Issues[0].Code)
	assert.Equal(t, SeverityWarning, result.Issues[0].Severity)
	assert.Contains(t, result.Issues[0].Message, "countt")
}

func TestValidate_KnownFunctions(t *testing.T) {
	v := New()

	for _, query := range []string{
		`#event_simpleName=Foo | count()`,
		`#event_simpleName=Foo | groupBy([FileName])`,
		`#event_simpleName=Foo | ioc:lookup(field=RemoteIP)`,
		`#event_simpleName=Foo | array:contains(array="a[]", value="x")`,
	} {
		result := v.Validate(query, false)
		assert.NotContains(t, codes(result), CodeUnknownFunction, "query: %s", query)
	}
}

func TestValidate_FieldFilterNotMistakenForFunction(t *testing.T) {
	v := New()

	// A parenthesized value list after = is a filter, not a call.
	result := v.Validate(`event=foo(bar) | FileName=(a.exe)`, false)
	for _, issue := range result.Issues {
		assert.NotEqual(t, CodeUnknownFunction, issue.Code, "value after = should not be treated as a function")
	}
}

func TestValidate_PipeSyntax(t *testing.T) {
	v := New()

	result := v.Validate(`a=b | | count()`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeEmptyPipeSegment)

	result = v.Validate(`a=b |`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeTrailingPipe)

	result = v.Validate(`| count()`, false)
	assert.True(t, result.Valid, "leading pipe stays a warning")
	assert.Contains(t, codes(result), CodeLeadingPipe)
}

func TestValidate_CommonMistakes(t *testing.T) {
	v := New()

	t.Run("double equals", func(t *testing.T) {
		result := v.Validate(`a=='b'`, false)
		assert.True(t, result.Valid)
		require.Len(t, result.Issues, 1)
		assert.Equal(t, CodeCommonMistake, result.Issues[0].Code)
		assert.Equal(t, SeverityWarning, result.Issues[0].Severity)

		strict := v.Validate(`a=='b'`, true)
		assert.False(t, strict.Valid)
	})

	t.Run("lowercase connectives", func(t *testing.T) {
		result := v.Validate(`a=1 and b=2`, false)
		assert.Contains(t, codes(result), CodeCommonMistake)

		result = v.Validate(`CommandLine="cat and dog"`, false)
		assert.Empty(t, result.Issues, "connectives inside quotes are fine")
	})

	t.Run("unquoted multiword value", func(t *testing.T) {
		result := v.Validate(`UserName=John Smith`, false)
		assert.Contains(t, codes(result), CodeCommonMistake)

		result = v.Validate(`UserName="John Smith"`, false)
		assert.Empty(t, result.Issues)
	})
}

func TestValidate_StrictMode(t *testing.T) {
	v := New()

	// Zero issues: strict must not reject.
	result := v.Validate(`#event_simpleName=ProcessRollup2 | count()`, true)
	assert.True(t, result.Valid)

	// Warning present: strict rejects, lenient accepts.
	lenient := v.Validate(`| count()`, false)
	strict := v.Validate(`| count()`, true)
	assert.True(t, lenient.Valid)
	assert.False(t, strict.Valid)
	assert.Empty(t, strict.SanitizedQuery)
}

func TestValidate_AllChecksRunAfterError(t *testing.T) {
	v := New()

	// Unbalanced paren plus trailing pipe: both should be reported.
	result := v.Validate(`count(x |`, false)
	assert.False(t, result.Valid)
	assert.Contains(t, codes(result), CodeUnbalancedParen)
	assert.Contains(t, codes(result), CodeTrailingPipe)
}

func TestValidate_SanitizedOnlyWhenValid(t *testing.T) {
	v := New()

	valid := v.Validate(`a=1   |   count()`, false)
	assert.True(t, valid.Valid)
	assert.Equal(t, `a=1 | count()`, valid.SanitizedQuery)

	invalid := v.Validate(`count(x`, false)
	assert.Empty(t, invalid.SanitizedQuery)
}

func TestValidate_NeverPanics(t *testing.T) {
	v := New()

	for _, query := range []string{
		"\\", `"`, `'`, "((((", "]]]]", "|||", "\x00\xff", `a="\"`,
	} {
		assert.NotPanics(t, func() { v.Validate(query, true) }, "query: %q", query)
	}
}
