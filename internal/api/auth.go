package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
)

// apiKeyHeader carries the client credential on authenticated requests.
const apiKeyHeader = "X-API-Key"

// AuthConfig holds API key authentication settings. With Enabled false the
// server is open; the serve command turns it on when a key is configured.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// ValidateAuthConfig rejects configurations that would enable authentication
// with a missing or guessable key.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	if len(cfg.APIKey) < 16 {
		return fmt.Errorf("API key must be at least 16 characters (got %d)", len(cfg.APIKey))
	}
	return nil
}

// AuthMiddleware enforces the API key on every endpoint except the root info
// and health probes, which stay reachable for load balancers. A missing key
// and a wrong key both answer 401; the distinction is only logged.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	if !authCfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		supplied := r.Header.Get(apiKeyHeader)
		switch {
		case supplied == "":
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing "+apiKeyHeader+" header")
		case !keysMatch(supplied, authCfg.APIKey):
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// isPublicEndpoint reports whether path must stay reachable without a key.
func isPublicEndpoint(path string) bool {
	return path == "/" || path == "/health"
}

// keysMatch compares the supplied and configured keys in constant time, so
// the response duration reveals nothing about where they differ.
func keysMatch(supplied, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) == 1
}
