package platform

import "time"

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges the code returned to the callback for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	// The platform may rotate the refresh token; when it does not, the old one is kept.
	RefreshTokenGrant GrantType = "refresh_token"
)

// DefaultScopes is the fixed scope set requested on install.
var DefaultScopes = []string{"read:users", "read:organizations", "read:apps", "read:transactions"}

const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/oauth/token"
	verifyPath    = "/api/apps/verify"
	userInfoPath  = "/api/v1/user"
	jwksPath      = "/.well-known/jwks.json"
)

// User is the platform's view of the installing user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Result is the outcome of a successful code exchange or refresh.
type Result struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time // zero when the platform sent no expires_in
	User         *User
	GrantType    GrantType
}

// UserID returns the id of the user the tokens were issued to, or "".
func (r *Result) UserID() string {
	if r == nil || r.User == nil {
		return ""
	}
	return r.User.ID
}

// Verification is the platform's answer to "is this app still installed for this token".
type Verification struct {
	Installed bool   `json:"installed"`
	UserID    string `json:"userId,omitempty"`
	User      *User  `json:"user,omitempty"`
}

// ExtraParams are folded into the redirect_uri so they come back on the callback.
type ExtraParams struct {
	InstallationID string
	PlatformURL    string
	EmbedMode      bool
	UserID         string
}

type verifyRequest struct {
	AppID       string `json:"appId"`
	AccessToken string `json:"accessToken"`
}
