package glob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDoubleStarMatchesSlash(t *testing.T) {
	m := MustCompile("/api/**")
	require.True(t, m.Match("/api/users/42"))
	require.True(t, m.Match("/api/a/b/c"))
	require.False(t, m.Match("/other/users/42"))
}

func TestSingleStarAlsoCrossesSlash(t *testing.T) {
	m := MustCompile("/api/*")
	require.True(t, m.Match("/api/users/42"))
}

func TestCaseInsensitive(t *testing.T) {
	m := MustCompile("/API/**")
	require.True(t, m.Match("/api/users"))
}

func TestAnchoredWholeString(t *testing.T) {
	m := MustCompile("/login")
	require.True(t, m.Match("/login"))
	require.False(t, m.Match("/login/extra"))
	require.False(t, m.Match("extra/login"))
}

func TestStripsSchemeAndHost(t *testing.T) {
	m := MustCompile("/api/**")
	require.True(t, m.Match("https://example.com/api/users?x=1"))
}

func TestPreservesQueryString(t *testing.T) {
	m := MustCompile("/search?q=*")
	require.True(t, m.Match("https://example.com/search?q=foo"))
	require.False(t, m.Match("https://example.com/search"))
}

func TestInvalidURLMatchedRaw(t *testing.T) {
	m := MustCompile("*bad%zz-escape*")
	require.True(t, m.Match("/path/bad%zz-escape/here"))
}
