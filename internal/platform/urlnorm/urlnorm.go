// Package urlnorm canonicalizes URLs so that a source the model claims can be
// compared with the citations returned by search grounding.
package urlnorm

import (
	"net/url"
	"strings"
)

// Host returns the lowercased hostname without a leading "www.".
// Unparseable input falls back to the lowercased raw string.
func Host(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return stripWWW(strings.ToLower(u.Hostname()))
}

// URL returns host+path, lowercased, without a trailing slash and with
// hyphens and underscores removed so slug spelling differences compare equal.
func URL(raw string) string {
	u, ok := parse(raw)
	if !ok {
		return stripSlugSeparators(strings.ToLower(strings.TrimSpace(raw)))
	}
	host := stripWWW(strings.ToLower(u.Hostname()))
	path := strings.TrimSuffix(strings.ToLower(u.EscapedPath()), "/")
	return stripSlugSeparators(host + path)
}

// Match reports whether a model-claimed URL and a grounding URL point at the
// same source: equal hosts, equal normalized URLs, or either normalized URL
// contained in the other's host.
func Match(claimed, grounded string) bool {
	ch, gh := Host(claimed), Host(grounded)
	cu, gu := URL(claimed), URL(grounded)
	if ch != "" && ch == gh {
		return true
	}
	if cu != "" && cu == gu {
		return true
	}
	if cu != "" && gh != "" && strings.Contains(gh, cu) {
		return true
	}
	if gu != "" && ch != "" && strings.Contains(ch, gu) {
		return true
	}
	return false
}

// FirstMatch returns the index of the first candidate not yet used that
// matches claimed, or -1.
func FirstMatch(claimed string, candidates []string, used []bool) int {
	if strings.TrimSpace(claimed) == "" {
		return -1
	}
	for i, c := range candidates {
		if i < len(used) && used[i] {
			continue
		}
		if Match(claimed, c) {
			return i
		}
	}
	return -1
}

func parse(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func stripWWW(h string) string {
	return strings.TrimPrefix(h, "www.")
}

func stripSlugSeparators(s string) string {
	return strings.NewReplacer("-", "", "_", "").Replace(s)
}
