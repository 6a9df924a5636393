package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/clientmap/internal/model"
)

// DefaultUserAgent is sent with snapshot requests.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// defaultMaxBodySize limits how much of the target page is read.
const defaultMaxBodySize = 10 * 1024 * 1024

// DOMSnapshot fetches a scan target over HTTP and reports the URLs its DOM
// references.
type DOMSnapshot struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	sameSite    bool
	filter      pathFilter
	sites       func(host string) Site
	logger      *slog.Logger
}

// Site holds per-host snapshot settings. Non-empty pattern lists replace
// the global ones for that host.
type Site struct {
	Cookie         string
	Headers        map[string]string
	IgnorePatterns []string
	FollowPatterns []string
}

// SnapshotOption configures a DOMSnapshot.
type SnapshotOption func(*DOMSnapshot)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SnapshotOption {
	return func(s *DOMSnapshot) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many bytes of the page are parsed.
func WithMaxBodySize(size int64) SnapshotOption {
	return func(s *DOMSnapshot) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithSameSiteOnly drops URLs whose host differs from the target's.
func WithSameSiteOnly(enabled bool) SnapshotOption {
	return func(s *DOMSnapshot) {
		s.sameSite = enabled
	}
}

// WithIgnorePatterns drops URLs whose path matches any of the globs
// (e.g. "/logout*", "*.pdf").
func WithIgnorePatterns(patterns []string) SnapshotOption {
	return func(s *DOMSnapshot) {
		s.filter.ignore = patterns
	}
}

// WithFollowPatterns keeps only URLs whose path matches one of the globs.
// An empty list keeps everything that is not ignored.
func WithFollowPatterns(patterns []string) SnapshotOption {
	return func(s *DOMSnapshot) {
		s.filter.follow = patterns
	}
}

// WithSites sets a per-host settings lookup consulted on every snapshot.
func WithSites(lookup func(host string) Site) SnapshotOption {
	return func(s *DOMSnapshot) {
		s.sites = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SnapshotOption {
	return func(s *DOMSnapshot) {
		s.logger = logger
	}
}

// NewDOMSnapshot creates a snapshot provider using client.
// A nil client means http.DefaultClient.
func NewDOMSnapshot(client *http.Client, opts ...SnapshotOption) *DOMSnapshot {
	if client == nil {
		client = http.DefaultClient
	}
	s := &DOMSnapshot{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Snapshot returns the URLs referenced by the scan target's DOM, the target
// itself included.
func (s *DOMSnapshot) Snapshot(ctx context.Context, scan model.ScanInfo) ([]string, error) {
	result, err := s.Fetch(ctx, scan.Target)
	if err != nil {
		return nil, err
	}

	parser, err := NewParser(scan.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoTarget, err)
	}

	filter := s.filter
	site := s.site(parser.baseURL.Hostname())
	if len(site.IgnorePatterns) > 0 {
		filter.ignore = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		filter.follow = site.FollowPatterns
	}

	urls := make([]string, 0, len(result.URLs)+1)
	urls = append(urls, scan.Target)
	for _, u := range result.URLs {
		if s.sameSite && !parser.sameHost(u) {
			continue
		}
		if !filter.allows(u) {
			continue
		}
		urls = append(urls, u)
	}

	s.logger.Debug("dom snapshot taken", "target", scan.Target, "urls", len(urls))
	return urls, nil
}

// Fetch downloads target and parses it.
func (s *DOMSnapshot) Fetch(ctx context.Context, target string) (*ParseResult, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrNoTarget
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	site := s.site(req.URL.Hostname())
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}
	if site.Cookie != "" {
		req.Header.Set("Cookie", site.Cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, ct)
	}

	// Resolve against the final URL so redirects keep relative links right.
	parser, err := NewParser(resp.Request.URL.String())
	if err != nil {
		return nil, err
	}
	return parser.Parse(io.LimitReader(resp.Body, s.maxBodySize))
}

func (s *DOMSnapshot) site(host string) Site {
	if s.sites == nil {
		return Site{}
	}
	return s.sites(host)
}

// sameHost reports whether link points at the parser's base host.
func (p *Parser) sameHost(link string) bool {
	u, err := p.baseURL.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, p.baseURL.Host)
}
