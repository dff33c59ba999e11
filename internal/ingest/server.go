// Package ingest receives asynchronous push records from the external
// automation process and funnels them into the adapter.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

// Callback receives every successfully decoded push record.
type Callback func(*sdk.PushRecord)

// Server is one push delivery endpoint. The two variants (discrete HTTP
// POST bodies, framed WebSocket messages) are interchangeable; callers pick
// one at construction time and the session manager advertises the matching
// hook protocol code when registering.
type Server interface {
	// Start begins listening. It returns once the listener is bound.
	Start() error
	// Shutdown stops the listener, waiting up to ctx for in-flight work.
	Shutdown(ctx context.Context) error
	// Protocol returns the hook protocol code to advertise (2 or 3).
	Protocol() int
	// CallbackURL returns the URL the external process should push to.
	CallbackURL() string
}

// New creates the server variant matching protocol ("http" or "ws").
func New(protocol, host string, port int, cb Callback, log *slog.Logger) (Server, error) {
	switch protocol {
	case "http":
		return NewHTTPServer(host, port, cb, log), nil
	case "ws":
		return NewWSServer(host, port, cb, log), nil
	default:
		return nil, fmt.Errorf("ingest: unknown protocol %q", protocol)
	}
}
