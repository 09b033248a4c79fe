package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/websocket"
)

var (
	ErrNotConnected = errors.New("realtime channel not connected")
	ErrAuthRejected = errors.New("realtime handshake rejected")
)

// Credentials identify the session on the platform's realtime endpoint.
type Credentials struct {
	UserID         string
	InstallationID string
	AccessToken    string
}

type ChannelConfig struct {
	URL        string // ws:// or wss:// endpoint
	Origin     string
	AppID      string
	MaxRetries int
	RetryDelay time.Duration
	// Notify, when set, receives every event on the read goroutine before
	// it is fanned out on the hub. It must not call Stop on the same channel.
	Notify func(Event)
}

// Channel is one websocket connection to the platform for one session.
type Channel struct {
	id     string
	userID string
	cfg    ChannelConfig
	hub    *Hub

	mu            sync.Mutex
	creds         Credentials
	conn          *websocket.Conn
	authenticated bool
	authErr       error
	cancel        context.CancelFunc
	done          chan struct{}
	outbox        []envelope
}

func NewChannel(cfg ChannelConfig, creds Credentials, hub *Hub) *Channel {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Channel{
		id:     uuid.NewString(),
		userID: creds.UserID,
		cfg:    cfg,
		creds:  creds,
		hub:    hub,
		done:   make(chan struct{}),
	}
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) UserID() string {
	return c.userID
}

// UpdateCredentials replaces the token and installation used by later handshakes.
// The user cannot change.
func (c *Channel) UpdateCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds.InstallationID = creds.InstallationID
	c.creds.AccessToken = creds.AccessToken
}

func (c *Channel) credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// Start connects in the background. Connection failures are reported as events.
func (c *Channel) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.run(ctx)
}

// Stop closes the connection and waits for the background loop to exit.
func (c *Channel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	<-c.done
}

// Done is closed when the channel stops for good.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Connected reports whether the socket is open and the platform has not
// rejected the handshake.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.authErr == nil
}

// Authenticated reports whether the platform confirmed the current connection.
func (c *Channel) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// AuthErr is the last auth:error received, or nil.
func (c *Channel) AuthErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authErr
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer c.setConn(nil)

	conn, _, err := c.connect(ctx)
	if err != nil {
		c.publish(Event{Kind: Closed, Err: err})
		return
	}
	for {
		err := c.readLoop(conn)
		_ = conn.Close()
		c.setConn(nil)
		if ctx.Err() != nil {
			c.publish(Event{Kind: Closed})
			return
		}
		c.publish(Event{Kind: Disconnected, Err: err})

		var attempts int
		conn, attempts, err = c.connect(ctx)
		if err != nil {
			log.Warn().Err(err).Str("user", c.userID).Msg("realtime reconnection gave up")
			c.publish(Event{Kind: Closed, Err: err})
			return
		}
		c.publish(Event{Kind: Reconnected, Attempt: attempts})
	}
}

// connect dials and sends the auth:connect handshake, retrying with a constant delay.
func (c *Channel) connect(ctx context.Context) (*websocket.Conn, int, error) {
	attempts := 0
	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		attempts++
		conn, err := c.dial(ctx)
		if err != nil {
			return nil, err
		}
		creds := c.credentials()
		if err := c.send(conn, EventConnect, connectData{
			UserID:         creds.UserID,
			InstallationID: creds.InstallationID,
			AccessToken:    creds.AccessToken,
		}); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.MaxRetries)),
	)
	if err != nil {
		return nil, attempts, fmt.Errorf("[realtime connect] %d attempts: %w", attempts, err)
	}
	c.setConn(conn)
	if ctx.Err() != nil {
		_ = conn.Close()
		return nil, attempts, ctx.Err()
	}
	c.flush(conn)
	return conn, attempts, nil
}

// flush sends messages queued while the channel was not connected.
func (c *Channel) flush(conn *websocket.Conn) {
	c.mu.Lock()
	queued := c.outbox
	c.outbox = nil
	c.mu.Unlock()
	for _, env := range queued {
		if err := websocket.JSON.Send(conn, env); err != nil {
			log.Warn().Err(err).Str("user", c.userID).Str("event", env.Event).Msg("dropping queued realtime message")
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	wsCfg, err := websocket.NewConfig(c.cfg.URL, c.cfg.Origin)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return wsCfg.DialContext(ctx)
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		var env envelope
		if err := websocket.JSON.Receive(conn, &env); err != nil {
			return err
		}
		kind, payload, err := decodeEvent(env)
		if err != nil {
			log.Debug().Err(err).Str("event", env.Event).Msg("ignoring realtime message")
			continue
		}
		if kind == AppUninstalled && payload.AppID != c.cfg.AppID {
			continue
		}
		ev := Event{Kind: kind, Payload: payload}
		switch kind {
		case Authenticated:
			c.setAuth(true, nil)
		case AuthError:
			ev.Err = fmt.Errorf("%w: %s", ErrAuthRejected, payload.Message)
			c.setAuth(false, ev.Err)
			log.Warn().Str("user", c.userID).Str("message", payload.Message).Msg("realtime handshake rejected")
		}
		c.publish(ev)
	}
}

func (c *Channel) publish(ev Event) {
	ev.Owner = c.userID
	ev.ChannelID = c.id
	ev.At = time.Now()
	log.Debug().Str("user", ev.Owner).Stringer("kind", ev.Kind).Msg("realtime event")
	if c.cfg.Notify != nil {
		c.cfg.Notify(ev)
	}
	c.hub.Publish(ev)
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.authenticated = false
	if conn != nil {
		c.authErr = nil
	}
	c.mu.Unlock()
}

func (c *Channel) setAuth(ok bool, err error) {
	c.mu.Lock()
	c.authenticated = ok
	c.authErr = err
	c.mu.Unlock()
}

func (c *Channel) send(conn *websocket.Conn, event string, data any) error {
	raw, err := jsonRaw(data)
	if err != nil {
		return backoff.Permanent(err)
	}
	return websocket.JSON.Send(conn, envelope{Event: event, Data: raw})
}

func (c *Channel) emit(event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return c.send(conn, event, data)
}

// announce sends now when connected, otherwise after the next handshake.
func (c *Channel) announce(event string, data any) error {
	raw, err := jsonRaw(data)
	if err != nil {
		return err
	}
	env := envelope{Event: event, Data: raw}
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.outbox = append(c.outbox, env)
	}
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return websocket.JSON.Send(conn, env)
}

type appEventData struct {
	UserID         string `json:"userId"`
	InstallationID string `json:"installationId"`
	AppID          string `json:"appId"`
}

// EmitLogout tells the platform this session logged out.
func (c *Channel) EmitLogout() error {
	return c.emit(EventLogout, Payload{UserID: c.userID})
}

// EmitAppInstalled is queued until the handshake completes.
func (c *Channel) EmitAppInstalled() error {
	return c.announce(EmitAppInstalledEvent, c.appEvent())
}

func (c *Channel) EmitAppUninstalled() error {
	return c.announce(EmitAppUninstalledEvent, c.appEvent())
}

func (c *Channel) appEvent() appEventData {
	creds := c.credentials()
	return appEventData{UserID: c.userID, InstallationID: creds.InstallationID, AppID: c.cfg.AppID}
}

// WebsocketURL converts a platform base URL into its realtime endpoint.
func WebsocketURL(platformURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(platformURL, "/"))
	if err != nil {
		return "", fmt.Errorf("[realtime WebsocketURL] %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("[realtime WebsocketURL] unsupported scheme %q", u.Scheme)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path += path
	return u.String(), nil
}
