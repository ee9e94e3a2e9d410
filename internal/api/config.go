package api

import "time"

// Config holds server configuration.
type Config struct {
	Addr              string        // Listen address, e.g. ":8733"
	DialectDir        string        // Directory of extra dialect definitions
	LogDB             string        // Run transcript database path (empty = disabled)
	MaxRequestBytes   int64         // Request body cap in bytes
	CacheSize         int           // Block result cache entries
	CacheTTL          time.Duration // Block result cache entry lifetime
	RateLimitRequests int           // Requests per minute per client (0 = disabled)
	RateLimitBurst    int           // Burst size
	AllowedOrigins    []string      // CORS and WebSocket origins (empty = allow all)
	Auth              AuthConfig    // Authentication configuration
	TLS               TLSConfig     // TLS configuration
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// DefaultConfig returns the configuration serve starts from before flags
// override it.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8733",
		MaxRequestBytes: 1 << 20,
		CacheSize:       4096,
		CacheTTL:        10 * time.Minute,
	}
}
