package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestGetText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div><p>Hello <b>world</b></p><p>again</p></div>`))
	require.NoError(t, err)
	require.Equal(t, "Hello worldagain", GetText(doc))
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Big Button Phone  ", "Big Button Phone"},
		{"line\none\n\nline two", "line one line two"},
		{"tabs\t\tand   spaces", "tabs and spaces"},
		{"control\x00chars\x1b", "controlchars"},
		{"", ""},
	}
	for _, c := range cases {
		require.Equal(t, c.want, CleanText(c.in), "%q", c.in)
	}
}
