package clientmap

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

// defaultPorts maps each accepted scheme to the port that is dropped during
// normalization.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// normalizedURL is a canonical URL split into the parts the tree is built from.
type normalizedURL struct {
	origin string // scheme://host[:port]
	path   string // escaped, cleaned, starts with "/"
	query  string // sorted and re-encoded, without "?"
}

// String returns the canonical form of the URL.
func (n normalizedURL) String() string {
	s := n.origin + n.path
	if n.query != "" {
		s += "?" + n.query
	}
	return s
}

// segment is one step of the walk from the root to a leaf.
type segment struct {
	key string // child key under the parent, also the display name
	url string // canonical URL of the node at this step
}

// segments decomposes n into the ordered walk below the root: the site,
// then one segment per path component. The query belongs to the last one.
func (n normalizedURL) segments() []segment {
	segs := []segment{{key: n.origin, url: n.origin}}

	var parts []string
	if n.path == "/" {
		parts = []string{"/"}
	} else {
		parts = strings.Split(strings.TrimPrefix(n.path, "/"), "/")
	}

	prefix := n.origin
	for i, part := range parts {
		key := part
		if part == "/" {
			prefix += "/"
		} else {
			prefix += "/" + part
		}
		u := prefix
		if i == len(parts)-1 && n.query != "" {
			key += "?" + n.query
			u += "?" + n.query
		}
		segs = append(segs, segment{key: key, url: u})
	}
	return segs
}

// normalizeEscapes upper-cases the hex digits of percent-escapes and decodes
// the escapes of unreserved characters, so equivalent encodings of a path
// compare equal. Malformed escapes are copied as they are.
func normalizeEscapes(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		if p[i] != '%' || i+2 >= len(p) || !isHex(p[i+1]) || !isHex(p[i+2]) {
			b.WriteByte(p[i])
			continue
		}
		c := unhex(p[i+1])<<4 | unhex(p[i+2])
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(p[i+1 : i+3]))
		}
		i += 2
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// isUnreserved reports whether c may appear unescaped in any URL component.
func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// NormalizeURL returns the canonical form used to decide whether two
// observations refer to the same resource.
//
// Normalization lower-cases the scheme and host, converts the host to its
// ASCII form, drops default ports, user info and fragments, resolves dot
// segments, normalizes percent-escapes in the path, removes a trailing slash below the site root and sorts query
// parameters.
func NormalizeURL(raw string) (string, error) {
	n, err := normalize(raw)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

func normalize(raw string) (normalizedURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return normalizedURL{}, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return normalizedURL{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	defaultPort, ok := defaultPorts[scheme]
	if !ok {
		return normalizedURL{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return normalizedURL{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	if !strings.Contains(host, ":") {
		ascii, err := idna.Punycode.ToASCII(host)
		if err != nil {
			return normalizedURL{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		host = ascii
	}

	port := u.Port()
	switch {
	case port != "" && port != defaultPort:
		host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		// Opaque or relative forms like "http:foo" are not resources we can place.
		return normalizedURL{}, fmt.Errorf("%w: relative path in %q", ErrInvalidURL, raw)
	}
	p = path.Clean(normalizeEscapes(p))

	query := u.RawQuery
	if query != "" {
		if values, err := url.ParseQuery(query); err == nil {
			query = values.Encode()
		}
	}

	return normalizedURL{
		origin: scheme + "://" + host,
		path:   p,
		query:  query,
	}, nil
}
