package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openwx/wechatsdk-bridge/internal/sdk"
)

const wsRecvPath = "/ws/msg/recv"

// WSServer accepts push records as individual text frames over a persistent
// WebSocket connection from the automation process.
type WSServer struct {
	host string
	port int
	cb   Callback
	log  *slog.Logger

	upgrader websocket.Upgrader
	srv      *http.Server
	ln       net.Listener

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewWSServer creates a WebSocket push listener; call Start to bind it.
func NewWSServer(host string, port int, cb Callback, log *slog.Logger) *WSServer {
	return &WSServer{
		host: host,
		port: port,
		cb:   cb,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The SDK process connects from localhost without an Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Start binds the listener and serves in the background.
func (s *WSServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(wsRecvPath, s.handleConn)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind push listener %s: %w", addr, err)
	}
	s.ln = ln

	s.srv = &http.Server{
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("push listener error", "error", err)
		}
	}()

	s.log.Info("push listener started", "addr", addr, "protocol", "ws")
	return nil
}

func (s *WSServer) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	s.log.Info("sdk push connection established", "remote", conn.RemoteAddr().String())
	go s.readLoop(conn)
}

// readLoop consumes frames until the connection drops. A malformed frame is
// dropped with a logged error; the connection stays up.
func (s *WSServer) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()

		conn.Close()
		s.log.Info("sdk push connection closed", "remote", conn.RemoteAddr().String())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Error("websocket read failed", "error", err)
			}
			return
		}

		rec, err := sdk.DecodePushRecord(data)
		if err != nil {
			s.log.Error("decode push record failed", "error", err)
			continue
		}

		s.cb(rec)
	}
}

// Shutdown closes all connections and stops the listener.
func (s *WSServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Protocol returns the WebSocket hook protocol code.
func (s *WSServer) Protocol() int { return sdk.HookProtocolWS }

// CallbackURL returns the URL advertised during hook registration.
func (s *WSServer) CallbackURL() string {
	return fmt.Sprintf("ws://%s:%d%s", s.host, s.port, wsRecvPath)
}

var _ Server = (*WSServer)(nil)
