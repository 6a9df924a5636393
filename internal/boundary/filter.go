package boundary

import "strings"

// Default control-channel entry points. The plain and secure variants are
// both reachable from the instrumented browser.
const (
	DefaultAPIURL       = "http://zap/"
	DefaultSecureAPIURL = "https://zap/"
)

// Filter is a stateless predicate over URL prefixes.
// The zero value matches nothing.
type Filter struct {
	prefixes []string
}

// New creates a Filter matching any of the given prefixes.
// Empty prefixes are ignored because they would match every URL.
func New(prefixes ...string) *Filter {
	f := &Filter{prefixes: make([]string, 0, len(prefixes))}
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		f.prefixes = append(f.prefixes, p)
	}
	return f
}

// Default returns a Filter for the plain and secure control API URLs.
func Default() *Filter {
	return New(DefaultAPIURL, DefaultSecureAPIURL)
}

// IsControlURL reports whether url starts with one of the control prefixes.
// A nil Filter matches nothing.
func (f *Filter) IsControlURL(url string) bool {
	if f == nil || url == "" {
		return false
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(url, p) {
			return true
		}
	}
	return false
}

// Prefixes returns a copy of the configured prefixes.
func (f *Filter) Prefixes() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.prefixes))
	copy(out, f.prefixes)
	return out
}
