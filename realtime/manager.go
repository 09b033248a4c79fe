package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-embedded-app/internal/config"
)

// Revoker records that a user's session must end.
type Revoker interface {
	Revoke(ctx context.Context, userID string) error
}

type ManagerConfig struct {
	Enabled    bool
	Path       string
	Origin     string
	AppID      string
	MaxRetries int
	RetryDelay time.Duration
}

// ManagerConfigFrom reads the realtime settings from application configuration.
func ManagerConfigFrom(cfg interface {
	config.RealtimeConfig
	GetAppID() string
	GetBaseURL() string
}) ManagerConfig {
	return ManagerConfig{
		Enabled:    cfg.GetRealtimeEnabled(),
		Path:       cfg.GetRealtimePath(),
		Origin:     cfg.GetBaseURL(),
		AppID:      cfg.GetAppID(),
		MaxRetries: cfg.GetRealtimeMaxRetries(),
		RetryDelay: cfg.GetRealtimeRetryDelay(),
	}
}

// Manager keeps at most one channel per user and turns logout and uninstall
// events into revocations. It receives events from its channels directly, so
// a slow hub subscriber cannot make it miss one.
type Manager struct {
	cfg     ManagerConfig
	hub     *Hub
	revoker Revoker

	mu       sync.Mutex
	channels map[string]*Channel

	ctx      context.Context
	cancel   context.CancelFunc
	stopping sync.WaitGroup
	onRevoke func(userID string, kind Kind)
}

type ManagerOption func(*Manager)

// WithRevokeHook is called after a realtime event revoked a user.
func WithRevokeHook(fn func(userID string, kind Kind)) ManagerOption {
	return func(m *Manager) {
		m.onRevoke = fn
	}
}

func NewManager(ctx context.Context, cfg ManagerConfig, hub *Hub, revoker Revoker, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		cfg:      cfg,
		hub:      hub,
		revoker:  revoker,
		channels: make(map[string]*Channel),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Hub() *Hub {
	return m.hub
}

// Start opens a channel for creds.UserID unless one is already running, in
// which case the running channel takes the new credentials for its next
// handshake. It returns nil when realtime is disabled or the user is unknown.
func (m *Manager) Start(platformURL string, creds Credentials) (*Channel, error) {
	if !m.cfg.Enabled || creds.UserID == "" {
		return nil, nil
	}
	wsURL, err := WebsocketURL(platformURL, m.cfg.Path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return nil, fmt.Errorf("[realtime Manager.Start] %w", m.ctx.Err())
	}
	if ch, ok := m.channels[creds.UserID]; ok {
		ch.UpdateCredentials(creds)
		return ch, nil
	}
	ch := NewChannel(ChannelConfig{
		URL:        wsURL,
		Origin:     m.cfg.Origin,
		AppID:      m.cfg.AppID,
		MaxRetries: m.cfg.MaxRetries,
		RetryDelay: m.cfg.RetryDelay,
		Notify:     m.handle,
	}, creds, m.hub)
	m.channels[creds.UserID] = ch
	ch.Start(m.ctx)
	log.Info().Str("user", creds.UserID).Str("url", wsURL).Msg("realtime channel started")
	return ch, nil
}

func (m *Manager) Get(userID string) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[userID]
	return ch, ok
}

// Stop closes the user's channel, if any.
func (m *Manager) Stop(userID string) {
	m.mu.Lock()
	ch, ok := m.channels[userID]
	delete(m.channels, userID)
	m.mu.Unlock()
	if ok {
		ch.Stop()
	}
}

// Close stops every channel.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	channels := m.channels
	m.channels = make(map[string]*Channel)
	m.mu.Unlock()
	for _, ch := range channels {
		ch.Stop()
	}
	m.stopping.Wait()
}

// handle runs on the channel's read goroutine.
func (m *Manager) handle(ev Event) {
	switch {
	case ev.Kind.Revokes():
		m.revoke(ev)
	case ev.Kind == AuthError:
		log.Warn().Err(ev.Err).Str("user", ev.Owner).Msg("stopping rejected realtime channel")
		m.stopAsync(ev)
	case ev.Kind == Closed:
		m.forget(ev)
	}
}

func (m *Manager) revoke(ev Event) {
	if ev.Owner == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 5*time.Second)
	defer cancel()
	if err := m.revoker.Revoke(ctx, ev.Owner); err != nil {
		log.Err(err).Str("user", ev.Owner).Stringer("kind", ev.Kind).Msg("failed to record revocation")
	} else {
		log.Info().Str("user", ev.Owner).Stringer("kind", ev.Kind).Msg("session revoked by platform")
		if m.onRevoke != nil {
			m.onRevoke(ev.Owner, ev.Kind)
		}
	}
	m.stopAsync(ev)
}

// stopAsync drops and stops the channel that produced ev. Stop waits for the
// read goroutine, so it cannot run on it.
func (m *Manager) stopAsync(ev Event) {
	m.mu.Lock()
	ch, ok := m.channels[ev.Owner]
	if !ok || ch.ID() != ev.ChannelID {
		m.mu.Unlock()
		return
	}
	delete(m.channels, ev.Owner)
	m.stopping.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.stopping.Done()
		ch.Stop()
	}()
}

// forget drops a channel that ended on its own, unless it was already replaced.
func (m *Manager) forget(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[ev.Owner]; ok && ch.ID() == ev.ChannelID {
		delete(m.channels, ev.Owner)
	}
}
