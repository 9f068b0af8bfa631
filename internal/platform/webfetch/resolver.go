package webfetch

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultIndirectionPatterns match the redirect wrappers that search
// grounding puts in front of the real source.
var DefaultIndirectionPatterns = []string{
	"vertexaisearch.cloud.google.com/grounding-api-redirect",
	"grounding-api-redirect",
	"google.com/url",
	"google.com/search",
	"bing.com/ck/",
}

var errorPagePatterns = []string{
	"google.com/sorry",
	"consent.google.com",
	"accounts.google.com",
}

// Resolver unwraps indirection links. It never fails: any problem yields the
// input URL unchanged.
type Resolver struct {
	client   *http.Client
	patterns []string
}

func NewResolver(timeout time.Duration, patterns []string, o Options) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if len(patterns) == 0 {
		patterns = DefaultIndirectionPatterns
	}
	o.Timeout = timeout
	return &Resolver{client: newHTTPClient(o), patterns: patterns}
}

// IsIndirection reports whether rawURL is a known redirect wrapper.
func (r *Resolver) IsIndirection(rawURL string) bool {
	return containsAny(strings.ToLower(rawURL), r.patterns)
}

func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if !r.IsIndirection(rawURL) {
		return rawURL
	}
	req, err := newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return rawURL
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return rawURL
	}
	_ = resp.Body.Close()
	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}
	final := resp.Request.URL.String()
	low := strings.ToLower(final)
	if final == "" || r.IsIndirection(final) || containsAny(low, errorPagePatterns) {
		return rawURL
	}
	return final
}

func containsAny(s string, subs []string) bool {
	for _, p := range subs {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
