package server

import "time"

// HTTP server constants
const (
	// HTTP timeouts. HTTPWriteTimeout is a floor; see writeTimeout.
	HTTPReadTimeout  = 15 * time.Second
	HTTPWriteTimeout = 30 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Time left for encoding and writing a response after analysis ends
	HTTPWriteSlack = 5 * time.Second

	// Shutdown timeout
	HTTPShutdownTimeout = 30 * time.Second

	// Request body limits
	MaxImageBytes = 10 << 20
	MaxJSONBytes  = 1 << 20
)
