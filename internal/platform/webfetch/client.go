// Package webfetch talks to arbitrary third-party web servers on behalf of the
// curation pipeline: it unwraps search redirect links, checks that a page has
// real text on it and extracts readable article content.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	HTMLAccept       = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	defaultMaxBytes     = 5 << 20
	defaultMaxRedirects = 8
)

type Options struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	// AllowPrivate disables the private-network guard. Only tests and local
	// development should set it.
	AllowPrivate bool
}

func newHTTPClient(o Options) *http.Client {
	maxRedirects := o.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}
	c := &http.Client{Timeout: o.Timeout}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if req == nil || req.URL == nil {
			return fmt.Errorf("redirect missing url")
		}
		if !o.AllowPrivate && !isPublicURL(req.Context(), req.URL) {
			return fmt.Errorf("redirect blocked: %s", req.URL.Host)
		}
		return nil
	}
	return c
}

func newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSpace(rawURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", DesktopUserAgent)
	req.Header.Set("Accept", HTMLAccept)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	return req, nil
}

// fetched is the outcome of a GET that reached a server.
type fetched struct {
	Status   int
	Body     []byte
	FinalURL string
}

func get(ctx context.Context, c *http.Client, o Options, rawURL string) (*fetched, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if !o.AllowPrivate && !isPublicURL(ctx, u) {
		return nil, fmt.Errorf("blocked host %s", u.Hostname())
	}
	req, err := newRequest(ctx, http.MethodGet, u.String())
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	maxBytes := o.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	out := &fetched{Status: resp.StatusCode, FinalURL: u.String()}
	if resp.Request != nil && resp.Request.URL != nil {
		out.FinalURL = resp.Request.URL.String()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return out, nil
	}
	// Oversized pages are truncated rather than rejected; the word gate only
	// needs a prefix.
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, err
	}
	out.Body = b
	return out, nil
}

func isPublicURL(ctx context.Context, u *url.URL) bool {
	host := strings.ToLower(strings.TrimSpace(u.Hostname()))
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !isPrivateIP(ip)
	}
	resCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ips, err := net.DefaultResolver.LookupIP(resCtx, "ip", host)
	if err != nil || len(ips) == 0 {
		// Let the request itself fail with a real DNS error.
		return err != nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return false
		}
	}
	return true
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast()
}
