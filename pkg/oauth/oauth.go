package oauth

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Provider represents a social OAuth provider as consumed by the authentication framework.
type Provider interface {
	// ID is the stable identifier of the provider, used in routes and storage.
	ID() string

	// Name is the human-readable name of the provider.
	Name() string

	// Issuer is the "iss" claim of the identity tokens this provider issues.
	Issuer() string

	// AuthURL returns the URL to the auth page of the provider.
	//
	// The "state" parameter is returned as is in the provider's callback
	// and can be used to correlate it with the original redirect.
	AuthURL(req AuthorizationRequest) (*url.URL, error)

	// ValidateAuthorizationCode converts the auth code to tokens.
	// If the provider issued an identity token, it is verified before returning.
	ValidateAuthorizationCode(ctx context.Context, req ExchangeRequest) (*Tokens, error)

	// GetUserInfo resolves the canonical user for the given tokens.
	// A nil result without error means that the authentication did not complete.
	GetUserInfo(ctx context.Context, tokens Tokens, opts ...UserInfoOption) (*UserInfo, error)

	// VerifyIDToken validates the identity token's claims and signature and returns the claims.
	VerifyIDToken(ctx context.Context, token string) (*IDTokenClaims, error)
}

// AuthorizationRequest holds the per-attempt inputs of the authorization URL.
type AuthorizationRequest struct {
	// State is opaque to the provider and must be unique per flow.
	State string
	// RedirectURI is used only when no redirect URI is configured on the provider.
	RedirectURI string
	// CodeVerifier is the PKCE secret. Only its challenge is sent to the provider.
	CodeVerifier string
	// Nonce binds the identity token to this request. Optional.
	Nonce string
}

// ExchangeRequest holds the inputs of the code-to-token exchange.
type ExchangeRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
	// Nonce is the session nonce issued with the authorization request, if any.
	Nonce string
}

// Tokens is the token set returned by the provider's token endpoint.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`

	// IDTokenClaims is populated only after the identity token has been verified.
	IDTokenClaims *IDTokenClaims `json:"-"`
}

// User is the canonical, provider-independent user record.
type User struct {
	// ID is the provider-scoped stable subject identifier.
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         *string `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Image         *string `json:"image,omitempty"`

	// Extra holds additional fields contributed by the MapProfileToUser hook.
	Extra map[string]any `json:"extra,omitempty"`
}

// UserInfo is the result of a successful GetUserInfo call.
type UserInfo struct {
	User User    `json:"user"`
	Data Profile `json:"data"`
}

// UserPatch overrides a subset of the canonical user fields. Nil fields are left untouched.
type UserPatch struct {
	ID            *string
	Name          *string
	Email         *string
	EmailVerified *bool
	Image         *string
	Extra         map[string]any
}

// Options configures a provider. It is copied on construction and never mutated afterwards.
type Options struct {
	ClientID     string
	ClientSecret string
	// RedirectURI, when set, takes precedence over the redirect URI passed at call time.
	RedirectURI string
	// Prompt is sent as the "prompt" parameter when not empty.
	Prompt string

	// DisablePKCE opts out of PKCE and the nonce parameter.
	DisablePKCE bool
	// DisableIDTokenVerification opts out of identity token verification.
	DisableIDTokenVerification bool

	// GetUserInfo fully replaces the profile fetch and normalization.
	GetUserInfo func(ctx context.Context, tokens Tokens) (*UserInfo, error)
	// MapProfileToUser returns fields that override the default mapping.
	MapProfileToUser func(ctx context.Context, profile Profile) (UserPatch, error)
	// VerifyNonce validates the nonce returned by the provider against the session nonce.
	VerifyNonce func(nonce, sessionNonce string) bool

	// Endpoints overrides the provider's endpoints. Zero values fall back to the defaults.
	Endpoints Endpoints
	// HTTPTimeout bounds every call to the provider. Defaults to 10 seconds.
	HTTPTimeout time.Duration
	// HTTPClient is used for the token and userinfo calls. Its timeout takes precedence over HTTPTimeout.
	HTTPClient *http.Client
	// KeySource supplies the keys for identity token verification.
	// When nil, a RemoteKeySet on the JWKS endpoint is created.
	KeySource KeySource
	// MinKeyRefreshInterval throttles key set refreshes of the default RemoteKeySet.
	MinKeyRefreshInterval time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Endpoints of an OAuth provider.
type Endpoints struct {
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string
	Issuer      string
}

// UserInfoOption configures a GetUserInfo call.
type UserInfoOption func(*userInfoOptions)

type userInfoOptions struct {
	sessionNonce string
}

// WithSessionNonce supplies the nonce that was issued with the authorization request.
func WithSessionNonce(nonce string) UserInfoOption {
	return func(o *userInfoOptions) { o.sessionNonce = nonce }
}
