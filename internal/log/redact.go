package log

import (
	"net/url"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys contains attribute keys and query parameter names that are
// always masked.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,
	"proxy-authorization": true,

	// Authentication
	"password":      true,
	"passwd":        true,
	"pwd":           true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"private_key":   true,
	"secret_key":    true,

	// Session
	"session":    true,
	"session_id": true,
	"sessionid":  true,
	"sid":        true,
	"jsessionid": true,
	"phpsessid":  true,
	"csrf":       true,
	"xsrf":       true,

	// Credentials
	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// sensitiveParams are query parameter names that carry secrets in URLs
// but are too generic to mask as attribute keys.
var sensitiveParams = map[string]bool{
	"code":      true,
	"sig":       true,
	"signature": true,
	"key":       true,
}

// sensitiveKeywords mark a key as sensitive when they appear anywhere in it.
// The bare "key" keyword is excluded because it causes false positives
// ("primary_key", "keyboard", "monkey").
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth",
	"credential", "private", "csrf", "xsrf",
}

// sensitivePatterns match values that are masked regardless of key name.
var sensitivePatterns = []*regexp.Regexp{
	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// Long alphanumeric strings (API keys)
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),

	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),

	// Private key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// Redactor decides what is sensitive. The zero value uses the built-in
// rules only.
type Redactor struct {
	extra map[string]bool
}

// NewRedactor returns a Redactor that additionally masks the given keys
// (case-insensitive).
func NewRedactor(extraKeys ...string) *Redactor {
	r := &Redactor{extra: make(map[string]bool, len(extraKeys))}
	for _, k := range extraKeys {
		if k = strings.TrimSpace(k); k != "" {
			r.extra[strings.ToLower(k)] = true
		}
	}
	return r
}

// IsSensitiveKey reports whether values stored under key must be masked.
func (r *Redactor) IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] || r.extra[key] {
		return true
	}
	return containsSensitiveKeyword(key)
}

// IsSensitiveValue reports whether value looks like a secret on its own.
func (r *Redactor) IsSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactURL masks sensitive query parameters and the password of an
// absolute http(s) URL. Anything else is returned unchanged. Parameter
// order and the rest of the URL are preserved.
func (r *Redactor) RedactURL(value string) string {
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil {
		return value
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "REDACTED")
			changed = true
		}
	}

	if u.RawQuery != "" {
		parts := strings.Split(u.RawQuery, "&")
		for i, part := range parts {
			rawKey, _, hasValue := strings.Cut(part, "=")
			if !hasValue {
				continue
			}
			key, err := url.QueryUnescape(rawKey)
			if err != nil {
				key = rawKey
			}
			if sensitiveParams[strings.ToLower(key)] || r.IsSensitiveKey(key) {
				parts[i] = rawKey + "=" + MaskValue
				changed = true
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	if !changed {
		return value
	}
	return u.String()
}

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}
