package ir

import (
	"regexp"
	"strings"
)

var repeatedSlashes = regexp.MustCompile(`/{2,}`)

// JoinPath joins a segment, a controller prefix and a handler path into an
// absolute route path. An empty handler path keeps the trailing slash.
func JoinPath(segment, prefix, path string) string {
	var b strings.Builder
	for _, part := range []string{segment, prefix} {
		if part = strings.Trim(part, "/"); part != "" {
			b.WriteString("/")
			b.WriteString(part)
		}
	}
	b.WriteString("/")
	b.WriteString(strings.TrimLeft(path, "/"))
	return repeatedSlashes.ReplaceAllString(b.String(), "/")
}

// PathTokens returns the names of the :token segments of a path, in order.
func PathTokens(path string) []string {
	var tokens []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, ":") {
			tokens = append(tokens, strings.TrimPrefix(seg, ":"))
		}
	}
	return tokens
}
