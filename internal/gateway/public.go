package gateway

import (
	"path"
	"strings"
)

// publicMatcher decides whether a request path is exempt from
// authentication. Patterns containing glob metacharacters are compiled
// as path matchers; raw patterns match themselves and everything below
// them, like a mount point.
type publicMatcher struct {
	globs    []string
	prefixes []string
}

func compilePublic(patterns []string) publicMatcher {
	var m publicMatcher
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if strings.ContainsAny(p, "*?[") {
			m.globs = append(m.globs, p)
		} else {
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "/"))
		}
	}
	return m
}

func (m publicMatcher) matches(reqPath string) bool {
	reqPath = path.Clean("/" + reqPath)

	for _, prefix := range m.prefixes {
		if prefix == "" {
			// Pattern was "/": the whole app is public.
			return true
		}
		if reqPath == prefix || strings.HasPrefix(reqPath, prefix+"/") {
			return true
		}
	}

	for _, glob := range m.globs {
		if ok, err := path.Match(glob, reqPath); err == nil && ok {
			return true
		}
	}

	return false
}
