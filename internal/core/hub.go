package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-rooms/internal/presence"
	"github.com/vovakirdan/wirechat-rooms/internal/ratelimit"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ErrHubStopped is returned by queries issued after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// Options tunes hub behaviour.
type Options struct {
	HistoryLimit      int
	MaxMessageChars   int
	StoreTimeout      time.Duration
	HeartbeatInterval time.Duration
	OfflineAfter      time.Duration
	SweepInterval     time.Duration
	MessagesPerMinute int
	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		HistoryLimit:      100,
		MaxMessageChars:   2000,
		StoreTimeout:      5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		OfflineAfter:      30 * time.Second,
		SweepInterval:     10 * time.Second,
		MessagesPerMinute: 60,
	}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections   int      `json:"connections"`
	OnlineUsers   []string `json:"online_users"`
	Groups        int      `json:"groups"`
	Subscriptions int      `json:"subscriptions"`
}

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub owns sessions, room groups and presence. Every command is handled on the
// goroutine running Run, one at a time.
type Hub struct {
	store    store.Store
	opts     Options
	log      *zerolog.Logger
	presence *presence.Tracker
	throttle *ratelimit.MemoryLimiter

	sessions *sessionTable
	groups   map[string]*Group

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	queries    chan func()
	done       chan struct{}

	ctx context.Context
}

// NewHub creates a new chat hub instance.
func NewHub(st store.Store, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	defaults := DefaultOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = defaults.MaxMessageChars
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaults.StoreTimeout
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if opts.OfflineAfter <= 0 {
		opts.OfflineAfter = defaults.OfflineAfter
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaults.SweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	throttle := ratelimit.NewMemoryLimiter(ratelimit.Config{Limit: opts.MessagesPerMinute, Window: time.Minute})
	throttle.WithClock(opts.Clock)

	return &Hub{
		store:      st,
		opts:       opts,
		log:        logger,
		presence:   presence.NewTracker(opts.OfflineAfter),
		throttle:   throttle,
		sessions:   newSessionTable(),
		groups:     make(map[string]*Group),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}
}

// Run processes commands until ctx is canceled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	h.ctx = ctx

	if err := h.prepareStore(); err != nil {
		return err
	}

	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()

	h.log.Info().Msg("hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Int("connections", h.sessions.len()).Msg("hub stopping")
			return nil
		case c := <-h.register:
			h.sessions.add(c)
		case c := <-h.unregister:
			h.disconnect(c)
		case env := <-h.inbox:
			h.handle(env)
		case fn := <-h.queries:
			fn()
		case <-ticker.C:
			h.sweep()
		}
	}
}

// RegisterClient adds a connection and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		return
	}
	go h.pump(c)
}

// UnregisterClient removes a connection, emitting disconnect notices.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stats reports current connection and group counts.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	result := make(chan Stats, 1)
	query := func() {
		subscriptions := 0
		for _, g := range h.groups {
			subscriptions += g.Len()
		}
		result <- Stats{
			Connections:   h.sessions.len(),
			OnlineUsers:   h.sessions.users(),
			Groups:        len(h.groups),
			Subscriptions: subscriptions,
		}
	}
	select {
	case h.queries <- query:
	case <-h.done:
		return Stats{}, ErrHubStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case st := <-result:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.quit:
				return
			case <-h.done:
				return
			}
		case <-c.quit:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) prepareStore() error {
	ctx, cancel := h.storeCtx()
	defer cancel()

	if err := h.store.MarkAllOffline(ctx); err != nil {
		return err
	}
	return store.EnsureHomeRoom(ctx, h.store)
}

func (h *Hub) handle(env envelope) {
	s, ok := h.sessions.get(env.client.ID)
	if !ok {
		h.log.Debug().Str("client_id", env.client.ID).Msg("command from unknown connection")
		return
	}
	cmd := env.cmd

	if cmd.Kind == CommandBind {
		h.bind(s, cmd)
		return
	}
	if !s.Bound() {
		if cmd.Kind != CommandPing {
			deliver(s.Client, errorEvent(ErrCodeUnauthorized, "login required"))
		}
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.joinRoom(s, cmd.RoomID)
	case CommandSendRoomMessage:
		h.chat(s, cmd.RoomID, cmd.Text)
	case CommandCreateRoom:
		h.createRoom(s, cmd.Name, cmd.Invitees)
	case CommandInvite:
		h.invite(s, cmd.RoomID, cmd.Invitee)
	case CommandAcceptInvite:
		h.acceptInvite(s, cmd.RoomID)
	case CommandDeclineInvite:
		h.declineInvite(s, cmd.RoomID)
	case CommandLeaveRoom:
		h.leaveRoom(s, cmd.RoomID)
	case CommandRenameRoom:
		h.renameRoom(s, cmd.RoomID, cmd.Name)
	case CommandListRooms:
		h.sendRooms(s)
	case CommandListUsers:
		h.sendRoster(s)
	case CommandPing:
		h.heartbeat(s.Username)
	default:
		deliver(s.Client, errorEvent(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(h.ctx, h.opts.StoreTimeout)
}

func (h *Hub) now() time.Time {
	return h.opts.Clock()
}

func (h *Hub) internalError(s *Session, op string, err error) {
	h.log.Error().Err(err).Str("op", op).Str("user", s.Username).Msg("store operation failed")
	deliver(s.Client, errorEvent(ErrCodeInternal, "operation failed"))
}
