// Package session owns the login/logout state machine. The automation
// process never pushes a "logged in" notification, so login is discovered by
// polling the user-info opcode on a fixed interval.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openwx/wechatsdk-bridge/internal/ingest"
	"github.com/openwx/wechatsdk-bridge/internal/sdk"
	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

// DefaultPollInterval is the login polling cadence.
const DefaultPollInterval = 30 * time.Second

// State represents the session's position in the login lifecycle.
type State int

const (
	StateDisconnected State = iota
	StatePolling
	StateAwaitingScan
	StateLoggedIn
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateAwaitingScan:
		return "awaiting_scan"
	case StateLoggedIn:
		return "logged_in"
	default:
		return "disconnected"
	}
}

// API is the slice of the transport client the session manager needs.
type API interface {
	UserInfo(ctx context.Context) (*sdk.UserInfo, error)
	QRCode(ctx context.Context) ([]byte, error)
	HookMsg(ctx context.Context, protocol int, url string) (string, error)
	UnhookMsg(ctx context.Context, cookie string) error
}

// QRDecoder turns QR code image pixels into the encoded URL.
type QRDecoder interface {
	Decode(img []byte) (string, error)
}

// Callbacks are invoked on session transitions. Nil callbacks are skipped.
type Callbacks struct {
	OnScan    func(qrcodeURL string, status puppet.ScanStatus, data string)
	OnLogin   func(user *sdk.UserInfo)
	OnLogout  func(reason string)
	OnMessage func(msg *sdk.RecvMsg)
	OnError   func(err error)
}

// Config assembles a Manager.
type Config struct {
	API          API
	Server       ingest.Server
	Decoder      QRDecoder
	Callbacks    Callbacks
	PollInterval time.Duration
	Log          *slog.Logger
}

// Manager drives login discovery and hook registration.
type Manager struct {
	api          API
	srv          ingest.Server
	qr           QRDecoder
	cbs          Callbacks
	pollInterval time.Duration
	log          *slog.Logger

	mu         sync.RWMutex
	state      State
	self       *sdk.UserInfo
	hookCookie string

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager from cfg.
func NewManager(cfg Config) *Manager {
	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	return &Manager{
		api:          cfg.API,
		srv:          cfg.Server,
		qr:           cfg.Decoder,
		cbs:          cfg.Callbacks,
		pollInterval: interval,
		log:          cfg.Log,
		stopCh:       make(chan struct{}),
	}
}

// Start binds the push listener, registers the hook and begins polling for
// login. A hook registration failure is surfaced as an error callback but
// does not abort startup: the session keeps polling, it just cannot receive
// pushed messages.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.srv.Start(); err != nil {
		return fmt.Errorf("start push listener: %w", err)
	}

	url := m.srv.CallbackURL()
	m.log.Info("registering push hook", "url", url, "protocol", m.srv.Protocol())

	cookie, err := m.api.HookMsg(ctx, m.srv.Protocol(), url)
	if err != nil {
		m.log.Error("hook registration failed", "error", err)
		m.emitError(fmt.Errorf("hook registration failed: %w", err))
	} else {
		m.mu.Lock()
		m.hookCookie = cookie
		m.mu.Unlock()
		m.log.Info("push hook registered")
	}

	m.setState(StatePolling)
	go m.pollLoop(ctx)

	return nil
}

// Stop cancels polling, unregisters the hook best-effort and shuts the push
// listener down. Safe to call more than once.
func (m *Manager) Stop(ctx context.Context) {
	m.stopOnce.Do(func() {
		close(m.stopCh)

		m.mu.Lock()
		cookie := m.hookCookie
		m.hookCookie = ""
		m.mu.Unlock()

		if cookie != "" {
			if err := m.api.UnhookMsg(ctx, cookie); err != nil {
				m.log.Warn("hook unregistration failed", "error", err)
			} else {
				m.log.Info("push hook unregistered")
			}
		}

		if err := m.srv.Shutdown(ctx); err != nil {
			m.log.Warn("push listener shutdown failed", "error", err)
		}

		m.setState(StateDisconnected)
		if m.cbs.OnLogout != nil {
			m.cbs.OnLogout("stopped")
		}
	})
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LoggedIn reports whether login has been discovered.
func (m *Manager) LoggedIn() bool {
	return m.State() == StateLoggedIn
}

// Self returns the logged-in account profile, or nil.
func (m *Manager) Self() *sdk.UserInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self
}

// HandlePush routes one decoded push record. Scan records bypass message
// normalization entirely; message records may arrive before the login poll
// fires, in which case they double as a login discovery signal.
func (m *Manager) HandlePush(ctx context.Context, rec *sdk.PushRecord) {
	switch rec.Kind {
	case sdk.RecordScan:
		m.handleScan(rec.Scan, string(rec.Raw))

	case sdk.RecordMessage:
		if !m.LoggedIn() {
			m.checkLogin(ctx, false)
		}
		if m.cbs.OnMessage != nil {
			m.cbs.OnMessage(rec.Message)
		}

	default:
		m.log.Warn("dropping unrecognized push record", "raw", string(rec.Raw))
	}
}

func (m *Manager) handleScan(scan *sdk.RecvScanRecord, raw string) {
	var status puppet.ScanStatus
	switch scan.State {
	case 0:
		status = puppet.ScanWaiting
	case 1:
		status = puppet.ScanScanned
	case 2:
		status = puppet.ScanConfirmed
	default:
		status = puppet.ScanUnknown
	}

	m.log.Info("scan state changed", "state", scan.State, "status", status.String())
	if m.cbs.OnScan != nil {
		m.cbs.OnScan("", status, raw)
	}
}

// pollLoop runs checkLogin until login succeeds or the manager stops. The
// first check also requests a QR code so the host can render it immediately.
func (m *Manager) pollLoop(ctx context.Context) {
	m.checkLogin(ctx, true)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.LoggedIn() {
				return
			}
			m.checkLogin(ctx, false)
		}
	}
}

// checkLogin queries login state once. Idempotent: after the first
// successful discovery every further call returns without emitting.
func (m *Manager) checkLogin(ctx context.Context, initial bool) {
	if m.LoggedIn() {
		return
	}

	user, err := m.api.UserInfo(ctx)
	if err != nil {
		m.log.Error("check login failed", "error", err)
		return
	}

	if user.IsLogin {
		m.mu.Lock()
		if m.state == StateLoggedIn {
			m.mu.Unlock()
			return
		}
		m.state = StateLoggedIn
		m.self = user
		m.mu.Unlock()

		m.log.Info("login discovered", "user", user.UserName)
		if m.cbs.OnLogin != nil {
			m.cbs.OnLogin(user)
		}
		return
	}

	m.log.Info("not logged in yet")

	if !initial {
		return
	}

	img, err := m.api.QRCode(ctx)
	if err != nil {
		m.log.Error("get login qrcode failed", "error", err)
		return
	}

	url, err := m.qr.Decode(img)
	if err != nil {
		m.log.Error("decode login qrcode failed", "error", err)
		return
	}

	m.setState(StateAwaitingScan)
	m.log.Info("login qrcode ready", "url", url)
	if m.cbs.OnScan != nil {
		m.cbs.OnScan(url, puppet.ScanWaiting, "")
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) emitError(err error) {
	if m.cbs.OnError != nil {
		m.cbs.OnError(err)
	}
}
