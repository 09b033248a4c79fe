// Package realtime keeps a push connection to the platform per standalone
// session and turns platform auth events into revocations.
package realtime

import (
	"encoding/json"
	"errors"
	"time"
)

// Wire event names.
const (
	EventConnect          = "auth:connect"
	EventConnected        = "auth:connected"
	EventError            = "auth:error"
	EventLogout           = "auth:logout"
	EventAppInstalled     = "auth:app-installed"
	EventAppUninstalled   = "auth:app-uninstalled"
	EventUserConnected    = "auth:user-connected"
	EventUserDisconnected = "auth:user-disconnected"

	EmitAppInstalledEvent   = "app:installed"
	EmitAppUninstalledEvent = "app:uninstalled"
)

type Kind int

const (
	Authenticated Kind = iota + 1
	AuthError
	Logout
	AppInstalled
	AppUninstalled
	UserConnected
	UserDisconnected
	Disconnected
	Reconnected
	Closed // reconnection gave up or the channel was stopped
)

var kindNames = map[Kind]string{
	Authenticated:    "authenticated",
	AuthError:        "auth_error",
	Logout:           "logout",
	AppInstalled:     "app_installed",
	AppUninstalled:   "app_uninstalled",
	UserConnected:    "user_connected",
	UserDisconnected: "user_disconnected",
	Disconnected:     "disconnected",
	Reconnected:      "reconnected",
	Closed:           "closed",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Revokes reports whether the event ends the owner's session.
func (k Kind) Revokes() bool {
	return k == Logout || k == AppUninstalled
}

// Payload is the data member of platform auth events.
type Payload struct {
	UserID         string `json:"userId,omitempty"`
	InstallationID string `json:"installationId,omitempty"`
	AppID          string `json:"appId,omitempty"`
	Message        string `json:"message,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// Event is published on the Hub. Owner is the user whose channel produced it.
type Event struct {
	Kind      Kind
	Owner     string
	ChannelID string
	Payload   Payload
	Attempt   int
	Err       error
	At        time.Time
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type connectData struct {
	UserID         string `json:"userId"`
	InstallationID string `json:"installationId"`
	AccessToken    string `json:"accessToken"`
}

var errUnknownEvent = errors.New("unknown event")

var inboundKinds = map[string]Kind{
	EventConnected:        Authenticated,
	EventError:            AuthError,
	EventLogout:           Logout,
	EventAppInstalled:     AppInstalled,
	EventAppUninstalled:   AppUninstalled,
	EventUserConnected:    UserConnected,
	EventUserDisconnected: UserDisconnected,
}

// decodeEvent maps a wire envelope to an event kind and payload. An auth:error
// payload may be a bare string.
func decodeEvent(env envelope) (Kind, Payload, error) {
	kind, ok := inboundKinds[env.Event]
	if !ok {
		return 0, Payload{}, errUnknownEvent
	}
	var p Payload
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return kind, p, nil
	}
	if err := json.Unmarshal(env.Data, &p); err != nil {
		var msg string
		if kind == AuthError && json.Unmarshal(env.Data, &msg) == nil {
			p.Message = msg
			return kind, p, nil
		}
		return 0, Payload{}, err
	}
	return kind, p, nil
}

func jsonRaw(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}
