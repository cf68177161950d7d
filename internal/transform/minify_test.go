package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "inner whitespace collapsed and trailing newline trimmed",
			input:    "<div>  Hi  </div>\n",
			expected: "<div> Hi </div>",
		},
		{
			name:     "tab runs",
			input:    "\t\t<p>\tx</p>",
			expected: "<p> x</p>",
		},
		{
			name:     "indented list joins adjacent tags",
			input:    "<ul>\n  <li>a</li>\n  <li>b</li>\n</ul>\n",
			expected: "<ul><li>a</li><li>b</li></ul>",
		},
		{
			name:     "crlf line endings",
			input:    "<p>a</p>\r\n<p>b</p>\r\n",
			expected: "<p>a</p><p>b</p>",
		},
		{
			name:     "comment stripped",
			input:    "<p>a</p><!-- note --><p>b</p>",
			expected: "<p>a</p><p>b</p>",
		},
		{
			name:     "multi line comment",
			input:    "<p>x</p>\n<!--\n  multi\n  line\n-->\n<p>y</p>",
			expected: "<p>x</p><p>y</p>",
		},
		{
			name:     "unterminated comment runs to end of input",
			input:    "<p>a</p><!-- open <p>b</p>",
			expected: "<p>a</p>",
		},
		{
			name:     "comment between words leaves one space",
			input:    "a <!--c--> b",
			expected: "a b",
		},
		{
			name:     "non breaking spaces",
			input:    "a\u00a0\u00a0b\u2003c",
			expected: "a b c",
		},
		{
			name:     "byte order mark trimmed",
			input:    "\ufeff<p>x</p>",
			expected: "<p>x</p>",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    " \t\n\r ",
			expected: "",
		},
		{
			name:     "malformed markup passes through",
			input:    "<div <p>>  text",
			expected: "<div <p>> text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Minify(tt.input))
		})
	}
}

func TestMinifyIsIdempotent(t *testing.T) {
	inputs := []string{
		"<div>  Hi  </div>\n",
		"a <!--c--> b",
		"<b> <!-- x --> <i>",
		"> <!-- --> <",
		"<p>\u00a0<!--\n-->\u00a0</p>",
		"<!--a--><!--b-->",
	}

	for _, in := range inputs {
		once := Minify(in)
		assert.Equal(t, once, Minify(once), "input %q", in)
	}
}

func TestCache(t *testing.T) {
	t.Run("memoizes by content", func(t *testing.T) {
		c, err := NewCache(4)
		require.NoError(t, err)

		assert.Equal(t, "<p> x</p>", c.Minify("<p>  x</p>"))
		assert.Equal(t, "<p> x</p>", c.Minify("<p>  x</p>"))
		assert.Equal(t, "<b></b>", c.Minify("<b> </b>"))

		hits, misses := c.Stats()
		assert.Equal(t, int64(1), hits)
		assert.Equal(t, int64(2), misses)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		c, err := NewCache(1)
		require.NoError(t, err)

		c.Minify("a")
		c.Minify("b")
		c.Minify("a")

		hits, misses := c.Stats()
		assert.Equal(t, int64(0), hits)
		assert.Equal(t, int64(3), misses)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("disabled", func(t *testing.T) {
		c, err := NewCache(0)
		require.NoError(t, err)

		assert.Equal(t, "<p> x</p>", c.Minify("<p>  x</p>"))
		assert.Equal(t, "<p> x</p>", c.Minify("<p>  x</p>"))

		hits, misses := c.Stats()
		assert.Zero(t, hits)
		assert.Zero(t, misses)
		assert.Zero(t, c.Len())
	})

	t.Run("nil cache falls back to minify", func(t *testing.T) {
		var c *Cache
		assert.Equal(t, "x", c.Minify(" x "))
	})
}
