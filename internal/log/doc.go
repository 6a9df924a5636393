// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// clientmap logs URLs it observed in proxied traffic and browser telemetry.
// Those URLs routinely carry credentials: session ids in query strings,
// OAuth codes, signed links, user info. The SecureHandler masks them before
// any record reaches the output:
//   - attributes whose key names a secret (cookie, authorization, token, ...)
//   - values that look like secrets (JWT, bearer and basic credentials,
//     long API keys, private key blocks)
//   - sensitive query parameters and passwords inside URL-valued attributes
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Options{Verbose: true})
//
//	logger.Info("observed",
//	    "url", "https://app.test/cb?code=xyz&state=1", // code=***REDACTED***&state=1
//	    "cookie", "session=abc123",                    // ***REDACTED***
//	)
//
//	slog.SetDefault(logger)
package log
