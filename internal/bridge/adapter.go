// Package bridge assembles the transport client, push ingestion, session
// state machine, normalizer, roster and media pipeline behind a single event
// surface.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openwx/wechatsdk-bridge/internal/archive"
	"github.com/openwx/wechatsdk-bridge/internal/cache"
	"github.com/openwx/wechatsdk-bridge/internal/config"
	"github.com/openwx/wechatsdk-bridge/internal/ingest"
	"github.com/openwx/wechatsdk-bridge/internal/media"
	"github.com/openwx/wechatsdk-bridge/internal/normalize"
	"github.com/openwx/wechatsdk-bridge/internal/roster"
	"github.com/openwx/wechatsdk-bridge/internal/sdk"
	"github.com/openwx/wechatsdk-bridge/internal/session"
	"github.com/openwx/wechatsdk-bridge/pkg/puppet"
)

const roomInviteMarker = "邀请你加入群聊"

// commandAPI is the slice of the transport client the adapter's outbound
// surface uses.
type commandAPI interface {
	SendText(ctx context.Context, to, content string, atList []string) (*sdk.SendResult, error)
	SendImage(ctx context.Context, to, path string) (*sdk.SendResult, error)
	SendFile(ctx context.Context, to, path string) (*sdk.SendResult, error)
	SendContactCard(ctx context.Context, to, contactID string) (*sdk.SendResult, error)
	SendLocation(ctx context.Context, to string, latitude, longitude float64, label string) (*sdk.SendResult, error)
	SendPat(ctx context.Context, roomID, memberID string) error
	SendEmoji(ctx context.Context, to, md5 string, totalLen int64) (*sdk.SendResult, error)
	SendAppMsg(ctx context.Context, to, xml string) (*sdk.SendResult, error)
	CreateChatRoom(ctx context.Context, memberIDs []string) (string, error)
	DestroyChatRoom(ctx context.Context, roomID string) error
	QuitChatRoom(ctx context.Context, roomID string) error
	ModifyTopic(ctx context.Context, roomID, topic string) error
	ModifyAnnouncement(ctx context.Context, roomID, text string) error
	AddMembers(ctx context.Context, roomID string, memberIDs []string) error
	RemoveMembers(ctx context.Context, roomID string, memberIDs []string) error
	InviteMembers(ctx context.Context, roomID string, memberIDs []string) error
	AddAdmins(ctx context.Context, roomID string, memberIDs []string) error
	RemoveAdmins(ctx context.Context, roomID string, memberIDs []string) error
	Exit(ctx context.Context) error
}

// largeRoomThreshold is the member count past which direct member adds stop
// working and invitations must be sent instead.
const largeRoomThreshold = 40

const (
	spillQueueDepth     = 256
	archiveWriteTimeout = 5 * time.Second
)

// Adapter is the main entry point that ties all components together.
type Adapter struct {
	cfg *config.Config
	log *slog.Logger

	bus        *puppet.Bus
	client     *sdk.Client
	api        commandAPI
	session    *session.Manager
	roster     *roster.Roster
	reconciler *roster.Reconciler
	normalizer *normalize.Normalizer
	media      *media.Downloader
	archive    *archive.Store
	messages   *cache.Store[*puppet.Message]
	limiter    *rate.Limiter

	spill   chan *puppet.Message
	spillWG sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates an Adapter from the given configuration. The push listener and
// session polling are not started until Start.
func New(cfg *config.Config, log *slog.Logger) (*Adapter, error) {
	a := &Adapter{
		cfg: cfg,
		log: log,
		bus: puppet.NewBus(),
	}

	a.client = sdk.NewClient(cfg.API.URL, log)
	a.api = a.client
	a.normalizer = normalize.New(log)
	a.media = media.NewDownloader(a.client, cfg.Media.DataDir, log)
	a.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.MessagesPerMinute)/60), 1)

	var err error
	a.roster, err = roster.New(a.client, cfg.Cache.Contacts, cfg.Cache.Rooms, log)
	if err != nil {
		return nil, fmt.Errorf("initialize roster: %w", err)
	}
	a.reconciler = roster.NewReconciler(a.roster, log)

	if cfg.Archive.Enabled {
		a.archive, err = archive.Open(cfg.Archive.URI, cfg.Archive.MaxOpenConns, cfg.Archive.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("initialize archive: %w", err)
		}
		a.spill = make(chan *puppet.Message, spillQueueDepth)
		a.spillWG.Add(1)
		go a.spillLoop()
	}

	// Evicted messages spill to the archive so MessageByID keeps working
	// for ids that aged out of memory.
	a.messages, err = cache.New[*puppet.Message](cfg.Cache.Messages, a.spillEvicted)
	if err != nil {
		return nil, fmt.Errorf("initialize message cache: %w", err)
	}

	srv, err := ingest.New(cfg.API.Protocol, cfg.Listener.Host, cfg.Listener.Port, a.handlePush, log)
	if err != nil {
		return nil, fmt.Errorf("initialize push listener: %w", err)
	}

	a.session = session.NewManager(session.Config{
		API:     a.client,
		Server:  srv,
		Decoder: session.ZxingDecoder{},
		Log:     log.With("component", "session"),
		Callbacks: session.Callbacks{
			OnScan:    a.onScan,
			OnLogin:   a.onLogin,
			OnLogout:  a.onLogout,
			OnMessage: a.onRawMessage,
			OnError:   a.onError,
		},
	})

	return a, nil
}

// spillEvicted queues an evicted message for archiving. The cache invokes it
// with its internal lock held, so no blocking work may happen here; when the
// queue is full the message is dropped rather than stalling cache access.
func (a *Adapter) spillEvicted(id string, m *puppet.Message) {
	if a.spill == nil {
		return
	}
	select {
	case a.spill <- m:
	default:
		a.log.Warn("archive spill queue full, dropping message", "id", id)
	}
}

// spillLoop drains the spill queue into the archive until the queue closes.
func (a *Adapter) spillLoop() {
	defer a.spillWG.Done()
	for m := range a.spill {
		ctx, cancel := context.WithTimeout(context.Background(), archiveWriteTimeout)
		if err := a.archive.Insert(ctx, m); err != nil {
			a.log.Warn("message archive spill failed", "id", m.ID, "error", err)
		}
		cancel()
	}
}

// Bus returns the event bus consumers subscribe on.
func (a *Adapter) Bus() *puppet.Bus {
	return a.bus
}

// Start binds the push listener and begins login discovery.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter is already running")
	}

	a.log.Info("starting adapter", "api", a.cfg.API.URL, "protocol", a.cfg.API.Protocol)

	if err := a.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	a.running = true
	return nil
}

// Stop shuts everything down in reverse dependency order. Callers decide
// when to stop; the adapter installs no signal handlers of its own.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.log.Info("stopping adapter")
	a.session.Stop(ctx)

	// Drain the message cache through the eviction hook, then let the spill
	// writer finish before the archive pool closes.
	if a.archive != nil {
		a.messages.Purge()
		close(a.spill)
		a.spillWG.Wait()
		if err := a.archive.Close(); err != nil {
			a.log.Error("archive close error", "error", err)
		}
	}

	a.running = false
	a.log.Info("adapter stopped")
	return nil
}

// LoggedIn reports whether login has been discovered.
func (a *Adapter) LoggedIn() bool {
	return a.session.LoggedIn()
}

// SelfID returns the logged-in account id, or "".
func (a *Adapter) SelfID() string {
	if u := a.session.Self(); u != nil {
		return u.UserName
	}
	return ""
}

// --- session callbacks ---

func (a *Adapter) onScan(qrcodeURL string, status puppet.ScanStatus, data string) {
	a.bus.Publish(&puppet.EventScan{QRCodeURL: qrcodeURL, Status: status, Data: data})
}

func (a *Adapter) onLogin(user *sdk.UserInfo) {
	self := &puppet.Contact{
		ID:        user.UserName,
		Name:      user.NickName,
		Alias:     user.Alias,
		Avatar:    user.BigHeadImgURL,
		Kind:      roster.KindOf(user.UserName),
		Gender:    user.Sex,
		City:      user.City,
		Province:  user.Province,
		Signature: user.Signature,
		Friend:    true,
	}
	if self.Avatar == "" {
		self.Avatar = user.SmallHeadImgURL
	}

	a.bus.Publish(&puppet.EventLogin{User: *self})

	// Hydrate the roster in the background so contact lookups do not all
	// fault in one at a time.
	go func() {
		ctx := context.Background()
		if err := a.roster.LoadAll(ctx); err != nil {
			a.log.Error("roster load failed", "error", err)
			a.bus.Publish(&puppet.EventError{Message: "roster load failed", Data: err.Error()})
			return
		}
		a.bus.Publish(&puppet.EventReady{})
	}()
}

func (a *Adapter) onLogout(reason string) {
	a.bus.Publish(&puppet.EventLogout{Reason: reason})
}

func (a *Adapter) onError(err error) {
	a.bus.Publish(&puppet.EventError{Message: err.Error()})
}

// handlePush is the ingest callback: every decoded push record funnels
// through the session manager first.
func (a *Adapter) handlePush(rec *sdk.PushRecord) {
	a.session.HandlePush(context.Background(), rec)
}

// onRawMessage normalizes one pushed message, caches it and publishes the
// derived events.
func (a *Adapter) onRawMessage(raw *sdk.RecvMsg) {
	msg := a.normalizer.Normalize(raw)
	a.messages.Put(msg.ID, msg)

	ctx := context.Background()

	if msg.Kind == puppet.MessageURL && strings.Contains(raw.Content, roomInviteMarker) {
		a.bus.Publish(&puppet.EventRoomInvite{RoomInvitationID: msg.ID})
		return
	}

	if msg.Kind == puppet.MessageSystemNotice && msg.RoomID != "" {
		a.reconcileRoomNotice(ctx, msg)
	}

	a.bus.Publish(&puppet.EventMessage{MessageID: msg.ID})
}

// reconcileRoomNotice folds a room system notice into the cached room state
// and publishes the matching room event. Unrecognized notices surface only
// as plain messages.
func (a *Adapter) reconcileRoomNotice(ctx context.Context, msg *puppet.Message) {
	n := a.reconciler.ParseRoomSystemNotice(ctx, msg.RoomID, msg.Text, a.SelfID())
	if n == nil {
		return
	}

	switch n.Kind {
	case roster.NoticeTopic:
		a.bus.Publish(&puppet.EventRoomTopic{
			RoomID:     n.RoomID,
			OperatorID: n.OperatorID,
			Topic:      n.Topic,
			OldTopic:   n.OldTopic,
		})
	case roster.NoticeAdminAdd:
		a.bus.Publish(&puppet.EventRoomAdmin{
			RoomID:     n.RoomID,
			OperatorID: n.OperatorID,
			AdminIDs:   n.MemberIDs,
		})
	case roster.NoticeAdminRemove:
		a.bus.Publish(&puppet.EventRoomAdmin{
			RoomID:     n.RoomID,
			OperatorID: n.OperatorID,
			AdminIDs:   n.MemberIDs,
			Removed:    true,
		})
	case roster.NoticeJoin:
		a.bus.Publish(&puppet.EventRoomJoin{
			RoomID:    n.RoomID,
			InviterID: n.OperatorID,
			MemberIDs: n.MemberIDs,
		})
	case roster.NoticeLeave:
		a.bus.Publish(&puppet.EventRoomLeave{
			RoomID:     n.RoomID,
			OperatorID: n.OperatorID,
			MemberIDs:  n.MemberIDs,
		})
	}
}

// --- lookups ---

// MessageByID returns a previously seen message from the in-memory cache,
// falling back to the archive when enabled. Unknown ids return nil.
func (a *Adapter) MessageByID(ctx context.Context, id string) (*puppet.Message, error) {
	if m, ok := a.messages.Get(id); ok {
		return m, nil
	}
	if a.archive == nil {
		return nil, nil
	}
	return a.archive.GetByID(ctx, id)
}

// Contact resolves a contact by id.
func (a *Adapter) Contact(ctx context.Context, id string) (*puppet.Contact, error) {
	return a.roster.ResolveContact(ctx, id)
}

// Room resolves a room by id.
func (a *Adapter) Room(ctx context.Context, id string) (*puppet.Room, error) {
	return a.roster.ResolveRoom(ctx, id)
}

// ContactIDs lists all cached contact ids.
func (a *Adapter) ContactIDs() []string { return a.roster.ContactIDs() }

// RoomIDs lists all cached room ids.
func (a *Adapter) RoomIDs() []string { return a.roster.RoomIDs() }

// MessageMedia fetches and caches the media payload referenced by a cached
// message, at the requested quality.
func (a *Adapter) MessageMedia(ctx context.Context, messageID string, quality media.Quality) (string, error) {
	msg, err := a.MessageByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("unknown message id %s", messageID)
	}
	return a.media.Fetch(ctx, msg.ID, msg.Text, quality)
}
