package api

// Config controls request handling at the HTTP boundary.
type Config struct {
	// TrustProxy makes X-Forwarded-For / X-Real-IP authoritative for the client IP.
	TrustProxy bool
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
}

// DefaultConfig returns a 1 MiB body cap and ignores proxy headers.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: 1 << 20}
}

func (c Config) withDefaults() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return c
}
