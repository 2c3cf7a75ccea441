package textutil

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestNormalizeWhitespace(t *testing.T) {
	require.Equal(t, "a b c", NormalizeWhitespace("  a\n b\t\tc "))
	require.Equal(t, "", NormalizeWhitespace("  \n\t"))
}

func TestComposeSections(t *testing.T) {
	require.Equal(t, "By Peter Brown\n\nPublished: 2009",
		ComposeSections("By Peter Brown", "", "Published: 2009"))
	require.Equal(t, "", ComposeSections("", "  "))
	require.Equal(t, "one", ComposeSections("one"))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 100))
	require.Equal(t, "cut at a…", Truncate("cut at a word boundary somewhere", 10))
	require.Equal(t, "untouched", Truncate("untouched", 0))
}

func TestTruncateRuneBoundary(t *testing.T) {
	// a byte limit landing inside a multi-byte rune moves back to its start
	require.Equal(t, "é…", Truncate("ééééé", 3))
	require.Equal(t, "héllo…", Truncate("héllo wörld", 8))
	require.True(t, utf8.ValidString(Truncate("ééééé", 5)))
}
