package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/clientmap/internal/clientmap"
	"github.com/nao1215/clientmap/internal/model"
)

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title> Test Page </title></head><body></body></html>`
		parser, err := NewParser("http://app.example/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("collects URLs from every navigable attribute", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<link rel="stylesheet" href="/css/site.css">
			<script src="app.js"></script>
		</head><body>
			<a href="/b">B</a>
			<a href="/b#section">B again</a>
			<a href="https://cdn.example/lib.js">CDN</a>
			<form action="/search"></form>
			<img src="/logo.png">
			<iframe src="/frame"></iframe>
			<a href="javascript:void(0)">JS</a>
			<a href="mailto:a@example.com">Mail</a>
			<a href="#top">Top</a>
		</body></html>`

		parser, err := NewParser("http://app.example/dir/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{
			"http://app.example/b",
			"http://app.example/css/site.css",
			"http://app.example/dir/app.js",
			"http://app.example/frame",
			"http://app.example/logo.png",
			"http://app.example/search",
			"https://cdn.example/lib.js",
		}
		if diff := cmp.Diff(want, result.URLs); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><base href="http://static.example/v2/"></head>
			<body><a href="page">P</a></body></html>`

		parser, err := NewParser("http://app.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if diff := cmp.Diff([]string{"http://static.example/v2/page"}, result.URLs); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("records components", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a id="next" href="/next"> Next   page </a>
			<form action="/login" method="post">
				<input name="user">
				<input id="pw" type="password">
				<textarea name="note"></textarea>
				<button type="submit">Sign in</button>
			</form>
		</body></html>`

		parser, err := NewParser("http://app.example/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []clientmap.Component{
			{TagName: "A", ID: "next", Href: "http://app.example/next", Text: "Next page"},
			{TagName: "FORM", Href: "http://app.example/login", Type: "POST"},
			{TagName: "INPUT", ID: "user"},
			{TagName: "INPUT", ID: "pw", Type: "password"},
			{TagName: "TEXTAREA", ID: "note", Type: "textarea"},
			{TagName: "BUTTON", Type: "submit", Text: "Sign in"},
		}
		if diff := cmp.Diff(want, result.Components); diff != "" {
			t.Errorf("components mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestMatchPattern tests path glob matching.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"nested admin", "/admin/*", "/admin/users/edit", true},
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},
		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},
		{"root path", "/", "/", true},
		{"double star crosses segments", "/static/**", "/static/js/app.js", true},
		{"single star stays in segment", "/static/*.js", "/static/js/app.js", false},
		{"alternatives", "/{login,logout}", "/logout", true},
		{"malformed pattern", "[", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestDOMSnapshot tests fetching a target and reporting its URLs.
func TestDOMSnapshot(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T) *httptest.Server {
		t.Helper()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/":
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, `<html><body>
					<a href="/a/b">B</a>
					<a href="/a/c">C</a>
					<a href="/logout">Logout</a>
					<a href="https://elsewhere.example/x">X</a>
				</body></html>`)
			case "/moved":
				http.Redirect(w, r, "/sub/", http.StatusFound)
			case "/sub/":
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, `<a href="leaf">leaf</a>`)
			case "/private":
				if r.Header.Get("Cookie") != "auth=1" || r.Header.Get("X-Test") != "yes" {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Content-Type", "text/html")
				fmt.Fprint(w, `<a href="/private/a">a</a><a href="/private/skip">skip</a>`)
			case "/data.json":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{}`)
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(server.Close)
		return server
	}

	t.Run("reports target and DOM URLs", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client())
		urls, err := s.Snapshot(context.Background(), model.ScanInfo{ID: "1", Target: server.URL + "/"})
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		want := []string{
			server.URL + "/",
			server.URL + "/a/b",
			server.URL + "/a/c",
			server.URL + "/logout",
			"https://elsewhere.example/x",
		}
		if diff := cmp.Diff(want, urls); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("same site and ignore patterns", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client(),
			WithSameSiteOnly(true),
			WithIgnorePatterns([]string{"/logout"}),
		)
		urls, err := s.Snapshot(context.Background(), model.ScanInfo{Target: server.URL + "/"})
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		want := []string{server.URL + "/", server.URL + "/a/b", server.URL + "/a/c"}
		if diff := cmp.Diff(want, urls); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("follow patterns", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client(), WithFollowPatterns([]string{"/a/*"}))
		urls, err := s.Snapshot(context.Background(), model.ScanInfo{Target: server.URL + "/"})
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		want := []string{server.URL + "/", server.URL + "/a/b", server.URL + "/a/c"}
		if diff := cmp.Diff(want, urls); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("per-site cookie, headers and patterns", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client(),
			WithIgnorePatterns([]string{"/nothing"}),
			WithSites(func(host string) Site {
				if host != "127.0.0.1" {
					return Site{}
				}
				return Site{
					Cookie:         "auth=1",
					Headers:        map[string]string{"X-Test": "yes"},
					IgnorePatterns: []string{"/private/skip"},
				}
			}),
		)
		urls, err := s.Snapshot(context.Background(), model.ScanInfo{Target: server.URL + "/private"})
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}

		want := []string{server.URL + "/private", server.URL + "/private/a"}
		if diff := cmp.Diff(want, urls); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("resolves against the redirected URL", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client())
		result, err := s.Fetch(context.Background(), server.URL+"/moved")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if diff := cmp.Diff([]string{server.URL + "/sub/leaf"}, result.URLs); diff != "" {
			t.Errorf("URLs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		s := NewDOMSnapshot(server.Client())

		tests := []struct {
			name   string
			target string
			want   error
		}{
			{"no target", "", ErrNoTarget},
			{"not found", server.URL + "/missing", ErrUnexpectedStatus},
			{"not html", server.URL + "/data.json", ErrNotHTML},
		}
		for _, tt := range tests {
			_, err := s.Snapshot(context.Background(), model.ScanInfo{Target: tt.target})
			if !errors.Is(err, tt.want) {
				t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := newServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := NewDOMSnapshot(server.Client())
		if _, err := s.Snapshot(ctx, model.ScanInfo{Target: server.URL + "/"}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

// TestNewHTTPClient tests client construction.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("direct client", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(WithTimeout(5 * time.Second))
		if err != nil {
			t.Fatalf("NewHTTPClient() error = %v", err)
		}
		if client.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.Timeout)
		}
		if client.Jar == nil {
			t.Error("expected a cookie jar")
		}
	})

	t.Run("proxy client", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("NewHTTPClient() error = %v", err)
		}
		if client.Timeout != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", client.Timeout, DefaultTimeout)
		}
	})

	t.Run("invalid proxy address", func(t *testing.T) {
		t.Parallel()

		for _, addr := range []string{"localhost", ":9050", "127.0.0.1:0", "127.0.0.1:70000", "127.0.0.1:port"} {
			if _, err := NewHTTPClient(WithProxy(addr)); !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("WithProxy(%q): error = %v, want ErrInvalidProxyAddress", addr, err)
			}
		}
	})
}
