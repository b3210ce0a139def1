package server

import "time"

// Config holds server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// WorkspaceTTL is how long merge outputs stay downloadable.
	WorkspaceTTL time.Duration

	// MaxUploadBytes caps the size of a multipart upload.
	MaxUploadBytes int64

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		WorkspaceTTL:   30 * time.Minute,
		MaxUploadBytes: 64 << 20,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
	}
}
