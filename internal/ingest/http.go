package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

const httpRecvPath = "/api/msg/recv"

// HTTPServer accepts discrete push records as JSON POST bodies.
type HTTPServer struct {
	host string
	port int
	cb   Callback
	log  *slog.Logger

	srv *http.Server
	ln  net.Listener
}

// NewHTTPServer creates an HTTP push listener; call Start to bind it.
func NewHTTPServer(host string, port int, cb Callback, log *slog.Logger) *HTTPServer {
	return &HTTPServer{
		host: host,
		port: port,
		cb:   cb,
		log:  log,
	}
}

// Start binds the listener and serves in the background.
func (s *HTTPServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+httpRecvPath, s.handleRecv)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind push listener %s: %w", addr, err)
	}
	s.ln = ln

	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("push listener error", "error", err)
		}
	}()

	s.log.Info("push listener started", "addr", addr, "protocol", "http")
	return nil
}

// handleRecv decodes one pushed record. Malformed bodies are dropped with a
// logged error and a failure status; the listener itself never dies.
func (s *HTTPServer) handleRecv(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.Error("read push body failed", "error", err)
		s.fail(w)
		return
	}

	rec, err := sdk.DecodePushRecord(body)
	if err != nil {
		s.log.Error("decode push record failed", "error", err)
		s.fail(w)
		return
	}

	s.cb(rec)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (s *HTTPServer) fail(w http.ResponseWriter) {
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, "error")
}

// Shutdown stops the listener.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Protocol returns the HTTP hook protocol code.
func (s *HTTPServer) Protocol() int { return sdk.HookProtocolHTTP }

// CallbackURL returns the URL advertised during hook registration.
func (s *HTTPServer) CallbackURL() string {
	return fmt.Sprintf("http://%s:%d%s", s.host, s.port, httpRecvPath)
}

var _ Server = (*HTTPServer)(nil)
