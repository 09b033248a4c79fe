package realtime_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/jrsteele09/go-embedded-app/realtime"
	"github.com/jrsteele09/go-embedded-app/revocation"
)

const (
	testAppID   = "com.embedded.analytics"
	waitTimeout = 3 * time.Second
)

type wireMessage struct {
	Event string            `json:"event"`
	Data  map[string]string `json:"data"`
}

// fakeRealtime is a platform realtime endpoint. Every accepted connection is
// handed to the test after its handshake has been read.
type fakeRealtime struct {
	*httptest.Server
	handshakes chan wireMessage
	conns      chan *websocket.Conn
	received   chan wireMessage
}

func newFakeRealtime(t *testing.T) *fakeRealtime {
	t.Helper()
	f := &fakeRealtime{
		handshakes: make(chan wireMessage, 8),
		conns:      make(chan *websocket.Conn, 8),
		received:   make(chan wireMessage, 8),
	}
	f.Server = httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		var hello wireMessage
		if err := websocket.JSON.Receive(ws, &hello); err != nil {
			return
		}
		f.handshakes <- hello
		f.conns <- ws
		for {
			var msg wireMessage
			if err := websocket.JSON.Receive(ws, &msg); err != nil {
				return
			}
			f.received <- msg
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeRealtime) wsURL(t *testing.T) string {
	t.Helper()
	u, err := realtime.WebsocketURL(f.URL, "/realtime")
	require.NoError(t, err)
	return u
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(ws, map[string]any{"event": event, "data": data}))
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting")
	}
	var zero T
	return zero
}

func waitEvent(t *testing.T, events <-chan realtime.Event, kind realtime.Kind) realtime.Event {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func newChannel(t *testing.T, url string, hub *realtime.Hub, retries int) *realtime.Channel {
	t.Helper()
	ch := realtime.NewChannel(realtime.ChannelConfig{
		URL:        url,
		Origin:     "http://app.test",
		AppID:      testAppID,
		MaxRetries: retries,
		RetryDelay: 10 * time.Millisecond,
	}, realtime.Credentials{UserID: "u1", InstallationID: "inst-1", AccessToken: "access-1"}, hub)
	ch.Start(context.Background())
	t.Cleanup(ch.Stop)
	return ch
}

func TestChannel_HandshakeAndEvents(t *testing.T) {
	f := newFakeRealtime(t)
	hub := realtime.NewHub(16)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ch := newChannel(t, f.wsURL(t), hub, 3)

	hello := waitFor(t, f.handshakes)
	assert.Equal(t, realtime.EventConnect, hello.Event)
	assert.Equal(t, map[string]string{"userId": "u1", "installationId": "inst-1", "accessToken": "access-1"}, hello.Data)
	ws := waitFor(t, f.conns)
	require.Eventually(t, ch.Connected, waitTimeout, 10*time.Millisecond)

	send(t, ws, realtime.EventConnected, map[string]string{"userId": "u1"})
	ev := waitEvent(t, events, realtime.Authenticated)
	assert.Equal(t, "u1", ev.Owner)
	assert.Equal(t, ch.ID(), ev.ChannelID)
	assert.True(t, ch.Authenticated())
	assert.True(t, ch.Connected())

	send(t, ws, realtime.EventError, "bad token")
	ev = waitEvent(t, events, realtime.AuthError)
	assert.Equal(t, "bad token", ev.Payload.Message)
	require.ErrorIs(t, ev.Err, realtime.ErrAuthRejected)
	assert.False(t, ch.Authenticated())
	assert.False(t, ch.Connected(), "a rejected handshake is not a usable connection")
	require.ErrorIs(t, ch.AuthErr(), realtime.ErrAuthRejected)
	assert.Contains(t, ch.AuthErr().Error(), "bad token")

	// Uninstalls of other apps are filtered out; the marker event proves ordering.
	send(t, ws, realtime.EventAppUninstalled, map[string]string{"appId": "other.app", "userId": "u1"})
	send(t, ws, realtime.EventUserConnected, map[string]string{"userId": "u1"})
	ev = waitFor(t, events)
	assert.Equal(t, realtime.UserConnected, ev.Kind)

	send(t, ws, realtime.EventAppUninstalled, map[string]string{"appId": testAppID, "userId": "u1", "installationId": "inst-1"})
	ev = waitEvent(t, events, realtime.AppUninstalled)
	assert.Equal(t, "inst-1", ev.Payload.InstallationID)

	send(t, ws, "auth:unknown", nil)
	send(t, ws, realtime.EventLogout, map[string]string{"userId": "u1"})
	assert.Equal(t, realtime.Logout, waitFor(t, events).Kind)
}

func TestChannel_Emit(t *testing.T) {
	f := newFakeRealtime(t)
	hub := realtime.NewHub(16)
	ch := newChannel(t, f.wsURL(t), hub, 3)
	waitFor(t, f.handshakes)
	waitFor(t, f.conns)
	require.Eventually(t, ch.Connected, waitTimeout, 10*time.Millisecond)

	require.NoError(t, ch.EmitAppInstalled())
	msg := waitFor(t, f.received)
	assert.Equal(t, "app:installed", msg.Event)
	assert.Equal(t, map[string]string{"userId": "u1", "installationId": "inst-1", "appId": testAppID}, msg.Data)

	require.NoError(t, ch.EmitAppUninstalled())
	assert.Equal(t, "app:uninstalled", waitFor(t, f.received).Event)

	require.NoError(t, ch.EmitLogout())
	msg = waitFor(t, f.received)
	assert.Equal(t, "auth:logout", msg.Event)
	assert.Equal(t, "u1", msg.Data["userId"])
}

func TestChannel_EmitWhenNotConnected(t *testing.T) {
	hub := realtime.NewHub(1)
	ch := realtime.NewChannel(realtime.ChannelConfig{URL: "ws://127.0.0.1:1/realtime", Origin: "http://app.test"}, realtime.Credentials{UserID: "u1"}, hub)
	require.ErrorIs(t, ch.EmitLogout(), realtime.ErrNotConnected)
}

func TestChannel_AnnouncementQueuedUntilConnected(t *testing.T) {
	f := newFakeRealtime(t)
	hub := realtime.NewHub(16)
	ch := realtime.NewChannel(realtime.ChannelConfig{
		URL:        f.wsURL(t),
		Origin:     "http://app.test",
		AppID:      testAppID,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	}, realtime.Credentials{UserID: "u1", InstallationID: "inst-1"}, hub)
	require.NoError(t, ch.EmitAppInstalled())

	ch.Start(context.Background())
	t.Cleanup(ch.Stop)

	waitFor(t, f.handshakes)
	assert.Equal(t, "app:installed", waitFor(t, f.received).Event)
}

func TestChannel_Reconnects(t *testing.T) {
	f := newFakeRealtime(t)
	hub := realtime.NewHub(16)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	newChannel(t, f.wsURL(t), hub, 3)
	waitFor(t, f.handshakes)
	ws := waitFor(t, f.conns)

	require.NoError(t, ws.Close())
	ev := waitEvent(t, events, realtime.Disconnected)
	assert.Equal(t, "u1", ev.Owner)

	ev = waitEvent(t, events, realtime.Reconnected)
	assert.GreaterOrEqual(t, ev.Attempt, 1)
	hello := waitFor(t, f.handshakes)
	assert.Equal(t, realtime.EventConnect, hello.Event, "handshake is repeated after reconnecting")
}

func TestChannel_GivesUp(t *testing.T) {
	f := newFakeRealtime(t)
	url := f.wsURL(t)
	f.Close()

	hub := realtime.NewHub(16)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	start := time.Now()
	ch := newChannel(t, url, hub, 3)
	ev := waitEvent(t, events, realtime.Closed)
	require.Error(t, ev.Err)
	assert.Contains(t, ev.Err.Error(), "3 attempts")
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	waitFor(t, ch.Done())
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in, path, want string
		wantErr        bool
	}{
		{in: "http://p.test", path: "/realtime", want: "ws://p.test/realtime"},
		{in: "https://p.test/", path: "realtime", want: "wss://p.test/realtime"},
		{in: "https://p.test/base", path: "/socket", want: "wss://p.test/base/socket"},
		{in: "ftp://p.test", path: "/realtime", wantErr: true},
	}
	for _, tt := range tests {
		got, err := realtime.WebsocketURL(tt.in, tt.path)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func newManager(t *testing.T, store *revocation.MemoryStore, enabled bool, opts ...realtime.ManagerOption) *realtime.Manager {
	t.Helper()
	m := realtime.NewManager(context.Background(), realtime.ManagerConfig{
		Enabled:    enabled,
		Path:       "/realtime",
		Origin:     "http://app.test",
		AppID:      testAppID,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}, realtime.NewHub(16), store, opts...)
	t.Cleanup(m.Close)
	return m
}

func TestManager_RevokesOnPlatformEvents(t *testing.T) {
	for _, tc := range []struct {
		event string
		data  map[string]string
		kind  realtime.Kind
	}{
		{event: realtime.EventLogout, data: map[string]string{"userId": "u1"}, kind: realtime.Logout},
		{event: realtime.EventAppUninstalled, data: map[string]string{"userId": "u1", "appId": testAppID}, kind: realtime.AppUninstalled},
	} {
		t.Run(tc.event, func(t *testing.T) {
			f := newFakeRealtime(t)
			store := revocation.NewMemoryStore(time.Hour)
			hooked := make(chan realtime.Kind, 1)
			m := newManager(t, store, true, realtime.WithRevokeHook(func(userID string, kind realtime.Kind) {
				assert.Equal(t, "u1", userID)
				hooked <- kind
			}))

			ch, err := m.Start(f.URL, realtime.Credentials{UserID: "u1", InstallationID: "inst-1", AccessToken: "a"})
			require.NoError(t, err)
			require.NotNil(t, ch)
			waitFor(t, f.handshakes)
			ws := waitFor(t, f.conns)

			send(t, ws, tc.event, tc.data)
			assert.Equal(t, tc.kind, waitFor(t, hooked))

			revoked, err := store.IsRevoked(context.Background(), "u1")
			require.NoError(t, err)
			assert.True(t, revoked)
			require.Eventually(t, func() bool {
				_, ok := m.Get("u1")
				return !ok
			}, waitTimeout, 10*time.Millisecond)
			waitFor(t, ch.Done())
		})
	}
}

func TestManager_OneChannelPerUser(t *testing.T) {
	f := newFakeRealtime(t)
	m := newManager(t, revocation.NewMemoryStore(0), true)

	creds := realtime.Credentials{UserID: "u1", AccessToken: "a"}
	first, err := m.Start(f.URL, creds)
	require.NoError(t, err)
	second, err := m.Start(f.URL, creds)
	require.NoError(t, err)
	assert.Same(t, first, second)

	m.Stop("u1")
	_, ok := m.Get("u1")
	assert.False(t, ok)
	waitFor(t, first.Done())
}

func TestManager_SkipsWhenDisabledOrAnonymous(t *testing.T) {
	ch, err := newManager(t, revocation.NewMemoryStore(0), false).Start("http://p.test", realtime.Credentials{UserID: "u1"})
	require.NoError(t, err)
	assert.Nil(t, ch)

	ch, err = newManager(t, revocation.NewMemoryStore(0), true).Start("http://p.test", realtime.Credentials{})
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestManager_ForgetsChannelThatGaveUp(t *testing.T) {
	f := newFakeRealtime(t)
	platformURL := f.URL
	f.Close()

	m := newManager(t, revocation.NewMemoryStore(0), true)
	ch, err := m.Start(platformURL, realtime.Credentials{UserID: "u1"})
	require.NoError(t, err)
	waitFor(t, ch.Done())
	require.Eventually(t, func() bool {
		_, ok := m.Get("u1")
		return !ok
	}, waitTimeout, 10*time.Millisecond)
}

func TestManager_StopsChannelRejectedByPlatform(t *testing.T) {
	f := newFakeRealtime(t)
	store := revocation.NewMemoryStore(time.Hour)
	m := newManager(t, store, true)

	ch, err := m.Start(f.URL, realtime.Credentials{UserID: "u1", AccessToken: "expired"})
	require.NoError(t, err)
	waitFor(t, f.handshakes)
	ws := waitFor(t, f.conns)

	send(t, ws, realtime.EventError, map[string]string{"message": "token expired"})

	waitFor(t, ch.Done())
	require.Eventually(t, func() bool {
		_, ok := m.Get("u1")
		return !ok
	}, waitTimeout, 10*time.Millisecond)
	assert.False(t, ch.Connected())
	require.ErrorIs(t, ch.AuthErr(), realtime.ErrAuthRejected)
	revoked, err := store.IsRevoked(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, revoked, "a rejected handshake is not a revocation")
}

func TestManager_RestartUsesRefreshedCredentials(t *testing.T) {
	f := newFakeRealtime(t)
	m := newManager(t, revocation.NewMemoryStore(0), true)

	first, err := m.Start(f.URL, realtime.Credentials{UserID: "u1", InstallationID: "inst-1", AccessToken: "access-old"})
	require.NoError(t, err)
	assert.Equal(t, "access-old", waitFor(t, f.handshakes).Data["accessToken"])
	ws := waitFor(t, f.conns)

	second, err := m.Start(f.URL, realtime.Credentials{UserID: "u1", InstallationID: "inst-2", AccessToken: "access-new"})
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, ws.Close())
	hello := waitFor(t, f.handshakes)
	assert.Equal(t, "access-new", hello.Data["accessToken"])
	assert.Equal(t, "inst-2", hello.Data["installationId"])
	assert.Equal(t, "u1", hello.Data["userId"])
}

func TestManager_RevokesWhenHubSubscriberIsFull(t *testing.T) {
	f := newFakeRealtime(t)
	store := revocation.NewMemoryStore(time.Hour)
	hub := realtime.NewHub(1)
	_, unsubscribe := hub.Subscribe() // never drained
	defer unsubscribe()

	hooked := make(chan realtime.Kind, 1)
	m := realtime.NewManager(context.Background(), realtime.ManagerConfig{
		Enabled:    true,
		Path:       "/realtime",
		Origin:     "http://app.test",
		AppID:      testAppID,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	}, hub, store, realtime.WithRevokeHook(func(_ string, kind realtime.Kind) {
		hooked <- kind
	}))
	t.Cleanup(m.Close)

	ch, err := m.Start(f.URL, realtime.Credentials{UserID: "u1", AccessToken: "a"})
	require.NoError(t, err)
	waitFor(t, f.handshakes)
	ws := waitFor(t, f.conns)

	for range 3 {
		send(t, ws, realtime.EventUserConnected, map[string]string{"userId": "u1"})
	}
	require.Eventually(t, func() bool { return hub.Dropped() > 0 }, waitTimeout, 10*time.Millisecond)

	send(t, ws, realtime.EventLogout, map[string]string{"userId": "u1"})

	assert.Equal(t, realtime.Logout, waitFor(t, hooked))
	revoked, err := store.IsRevoked(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, revoked)
	waitFor(t, ch.Done())
}
