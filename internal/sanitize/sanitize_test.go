package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeHTML(t *testing.T) {
	req := require.New(t)

	cases := map[string]string{
		"<script>":              "&lt;script&gt;",
		`<img src="x">`:         "&lt;img src=&quot;x&quot;&gt;",
		"a & b":                 "a &amp; b",
		"it's fine":             "it&#039;s fine",
		"plain text stays":      "plain text stays",
		"":                      "",
		"<b>hi</b>":             "&lt;b&gt;hi&lt;/b&gt;",
		`tous les "caractères"`: "tous les &quot;caractères&quot;",
	}
	for input, want := range cases {
		req.Equal(want, EscapeHTML(input), "input %q", input)
	}
}

// Escaping is applied exactly once per message. A second pass over already
// escaped text must produce a different string, which is why callers never
// chain the sanitizer.
func TestEscapeHTMLSinglePass(t *testing.T) {
	req := require.New(t)

	once := EscapeHTML("<script>")
	req.Equal("&lt;script&gt;", once)
	req.NotEqual(once, EscapeHTML(once))
	req.Equal("&amp;lt;script&amp;gt;", EscapeHTML(once))
}

func TestClean(t *testing.T) {
	req := require.New(t)

	req.Equal("alice", Clean("  alice  "))
	req.Equal("&lt;b&gt;hi&lt;/b&gt;", Clean("\t<b>hi</b>\n"))
	req.Equal("", Clean("   \t\n "))
}

func TestValidName(t *testing.T) {
	valid := []string{"alice", "bob_42", "a-b-c", "XYZ"}
	invalid := []string{"", "ab", "has space", "über", "x@y", "averyveryverylongusername"}

	for _, name := range valid {
		require.True(t, ValidName(name), "expected %q to be valid", name)
	}
	for _, name := range invalid {
		require.False(t, ValidName(name), "expected %q to be invalid", name)
	}
}
