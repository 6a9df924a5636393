package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/clientmap/internal/model"
	"github.com/playwright-community/playwright-go"
)

var (
	// ErrNoTarget is returned when a scan carries no target URL.
	ErrNoTarget = errors.New("scan has no target URL")

	// ErrClosed is returned by Snapshot after Close.
	ErrClosed = errors.New("browser provider closed")
)

// DefaultNavigationTimeout bounds page loads when the context has no deadline.
const DefaultNavigationTimeout = 30 * time.Second

// collectScript returns every URL-valued attribute of the rendered DOM.
const collectScript = `() => {
  const out = [location.href];
  const pick = (sel, attr) => document.querySelectorAll(sel).forEach(el => {
    const v = el[attr];
    if (typeof v === "string" && v) out.push(v);
  });
  pick("a[href], area[href], link[href]", "href");
  pick("form[action]", "action");
  pick("script[src], img[src], iframe[src], frame[src], source[src], video[src], audio[src], embed[src]", "src");
  return out;
}`

// Provider renders scan targets in a headless browser.
// Playwright and the browser are started lazily on the first snapshot.
type Provider struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	closed  bool

	headless bool
	install  bool
	proxy    string
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithHeadless toggles headless mode. The default is headless.
func WithHeadless(headless bool) Option {
	return func(p *Provider) {
		p.headless = headless
	}
}

// WithInstall downloads the driver and browsers before the first launch.
func WithInstall(install bool) Option {
	return func(p *Provider) {
		p.install = install
	}
}

// WithProxy routes the browser through a proxy server such as
// "socks5://127.0.0.1:9050" or "http://127.0.0.1:8080".
func WithProxy(server string) Option {
	return func(p *Provider) {
		p.proxy = server
	}
}

// WithNavigationTimeout sets the page load timeout.
func WithNavigationTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a Provider. No browser is started until Snapshot.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{headless: true, timeout: DefaultNavigationTimeout}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Snapshot loads scan.Target and returns the URLs in its rendered DOM.
func (p *Provider) Snapshot(ctx context.Context, scan model.ScanInfo) ([]string, error) {
	if strings.TrimSpace(scan.Target) == "" {
		return nil, ErrNoTarget
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	browser, err := p.ensureBrowser()
	if err != nil {
		return nil, err
	}

	bctx, err := browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	waitUntil := playwright.WaitUntilState("networkidle")
	timeout := float64(navigationTimeout(ctx, p.timeout).Milliseconds())
	if _, err := page.Goto(scan.Target, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   &timeout,
	}); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	raw, err := page.Evaluate(collectScript)
	if err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}

	urls := toURLs(raw)
	p.logger.Debug("rendered dom snapshot taken", "target", scan.Target, "urls", len(urls))
	return urls, nil
}

// ensureBrowser starts Playwright and Chromium once.
func (p *Provider) ensureBrowser() (playwright.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.browser != nil {
		return p.browser, nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if p.install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &p.headless,
	}
	if p.proxy != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: p.proxy}
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop() //nolint:errcheck // launch error is the one worth reporting
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	p.pw = pw
	p.browser = browser
	return browser, nil
}

// Close shuts the browser and Playwright down. Later snapshots fail with
// ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	var errs []error
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		p.browser = nil
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		p.pw = nil
	}
	return errors.Join(errs...)
}

// navigationTimeout returns the time left until ctx's deadline, capped at
// fallback.
func navigationTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	left := time.Until(deadline)
	if left <= 0 {
		return time.Millisecond
	}
	if left < fallback {
		return left
	}
	return fallback
}

// toURLs converts the evaluation result into sorted, deduplicated http(s)
// URLs without fragments.
func toURLs(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return []string{}
	}

	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		u.Fragment = ""
		u.RawFragment = ""
		v := u.String()
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
