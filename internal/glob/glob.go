// glob.go — Anchored, case-insensitive URL glob matching (spec §4.5).
// `**` matches any characters including `/`; a single `*` also matches any
// characters — the reference semantics do not respect `/` boundaries, so
// both translate to the same `.*` in the generated regex.
package glob

import (
	"net/url"
	"regexp"
	"strings"
)

// Matcher matches a stripped URL (pathname + search) against a glob.
type Matcher struct {
	re *regexp.Regexp
}

// Compile translates a glob pattern into an anchored, case-insensitive Matcher.
func Compile(pattern string) (*Matcher, error) {
	var b strings.Builder
	b.WriteString("(?i)^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			// Collapse a run of consecutive '*' (whether `**` or more) into
			// one `.*` — both single and double star match anything here.
			for i+1 < len(runes) && runes[i+1] == '*' {
				i++
			}
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// MustCompile is like Compile but panics on error; used for built-in
// patterns that are known-good at compile time.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Match reports whether rawURL matches the glob. Before matching, the
// scheme and host are stripped, keeping pathname+search; invalid URLs are
// matched against the raw input verbatim.
func (m *Matcher) Match(rawURL string) bool {
	return m.re.MatchString(normalize(rawURL))
}

func normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	out := u.Path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if out == "" {
		return rawURL
	}
	return out
}
