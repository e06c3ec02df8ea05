package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a=1 | count()", Sanitize("  a=1   |\t count()  "))
	assert.Equal(t, "a=1 | count()", Sanitize("a=1\n| count()"))
}

func TestSanitize_PreservesQuotedWhitespace(t *testing.T) {
	assert.Equal(t, `CommandLine="a   b" | count()`, Sanitize(`CommandLine="a   b"   |  count()`))
	assert.Equal(t, `x='  padded  '`, Sanitize(`  x='  padded  '  `))
}

func TestSanitize_StripsLineComments(t *testing.T) {
	assert.Equal(t, "a=1 | count()", Sanitize("a=1 // filter stage\n| count()"))
	assert.Equal(t, "a=1", Sanitize("a=1 // trailing comment"))
}

func TestSanitize_StripsBlockComments(t *testing.T) {
	assert.Equal(t, "a=1 | count()", Sanitize("a=1 /* hidden */ | count()"))
	assert.Equal(t, "a=1", Sanitize("a=1 /* unterminated"))
}

func TestSanitize_CommentMarkersInsideQuotes(t *testing.T) {
	assert.Equal(t, `url="http://example.com/path"`, Sanitize(`url="http://example.com/path"`))
	assert.Equal(t, `note="/* not a comment */"`, Sanitize(`note="/* not a comment */"`))
}

func TestSanitize_Idempotent(t *testing.T) {
	queries := []string{
		"",
		"  a=1   |   count()  ",
		"a=1 // comment\n| groupBy([x])",
		"a=1 /* block */ | head(5)",
		`CommandLine="spaced   out" | count()`,
		`url="http://x" // tail`,
	}
	for _, q := range queries {
		once := Sanitize(q)
		assert.Equal(t, once, Sanitize(once), "input: %q", q)
	}
}

func TestSuggestCompletions(t *testing.T) {
	v := New()

	t.Run("after trailing pipe", func(t *testing.T) {
		suggestions := v.SuggestCompletions("#event_simpleName=Foo |")
		assert.Len(t, suggestions, maxSuggestions)
		for _, s := range suggestions {
			assert.Contains(t, s, "()")
		}
	})

	t.Run("prefix match in last segment", func(t *testing.T) {
		suggestions := v.SuggestCompletions("a=1 | gro")
		assert.Contains(t, suggestions, "groupBy")
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, v.SuggestCompletions("   "))
	})
}
