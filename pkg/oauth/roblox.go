package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	robloxProviderID   = "roblox"
	robloxProviderName = "Roblox"

	// Source: https://apis.roblox.com/oauth/.well-known/openid-configuration
	robloxAuthURL     = "https://authorize.roblox.com/v1/authorize"
	robloxTokenURL    = "https://apis.roblox.com/oauth/v1/token"
	robloxUserInfoURL = "https://apis.roblox.com/oauth/v1/userinfo"
	robloxJWKSURL     = "https://apis.roblox.com/oauth/.well-known/jwks.json"
	robloxIssuer      = "https://apis.roblox.com/oauth/"

	defaultHTTPTimeout = 10 * time.Second
)

// robloxScopes are the scopes needed for identity and profile.
var robloxScopes = []string{"openid", "profile"}

// Roblox implements the Provider interface for Roblox.
//
// Read documentation here: https://create.roblox.com/docs/cloud/reference/oauth2
type Roblox struct {
	opts      Options
	endpoints Endpoints

	// authURL removes the need to repeatedly parse the auth URL.
	authURL    *url.URL
	httpClient *http.Client
	// verifier is nil when identity token verification is disabled.
	verifier *IDTokenVerifier
}

// NewRoblox instantiates a new Roblox provider instance.
//
// It accepts a context because, unless a KeySource is supplied, it periodically fetches Roblox's JSON Web Keys and
// the context can be used to cancel the underlying fetching goroutine.
func NewRoblox(ctx context.Context, opts Options) (*Roblox, error) {
	if opts.ClientID == "" {
		return nil, errors.New("client id is required")
	}

	endpoints := withDefaultEndpoints(opts.Endpoints)
	authURL, err := url.Parse(endpoints.AuthURL)
	if err != nil {
		return nil, fmt.Errorf("error in url.Parse call: %w", err)
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	roblox := &Roblox{
		opts:       opts,
		endpoints:  endpoints,
		authURL:    authURL,
		httpClient: newHTTPClient(opts.HTTPClient, opts.HTTPTimeout),
	}

	if opts.DisableIDTokenVerification {
		return roblox, nil
	}

	keys := opts.KeySource
	if keys == nil {
		if keys, err = NewRemoteKeySet(ctx, endpoints.JWKSURL, opts.MinKeyRefreshInterval); err != nil {
			return nil, fmt.Errorf("error in NewRemoteKeySet call: %w", err)
		}
	}

	roblox.verifier = NewIDTokenVerifier(endpoints.Issuer, opts.ClientID, keys, opts.Clock)
	return roblox, nil
}

func (r *Roblox) ID() string {
	return robloxProviderID
}

func (r *Roblox) Name() string {
	return robloxProviderName
}

func (r *Roblox) Issuer() string {
	return r.endpoints.Issuer
}

func (r *Roblox) AuthURL(req AuthorizationRequest) (*url.URL, error) {
	// Parameters are written in this order, so the same request always yields the same URL.
	params := [][2]string{
		{"client_id", r.opts.ClientID},
		{"redirect_uri", r.redirectURI(req.RedirectURI)},
		{"scope", strings.Join(robloxScopes, " ")},
		{"response_type", "code"},
		{"state", req.State},
	}

	if !r.opts.DisablePKCE {
		if req.CodeVerifier == "" {
			return nil, ErrMissingCodeVerifier
		}
		params = append(params,
			[2]string{"code_challenge", ChallengeS256(req.CodeVerifier)},
			[2]string{"code_challenge_method", "S256"},
		)
		if req.Nonce != "" {
			params = append(params, [2]string{"nonce", req.Nonce})
		}
	}

	if r.opts.Prompt != "" {
		params = append(params, [2]string{"prompt", r.opts.Prompt})
	}

	query := make([]string, 0, len(params))
	for _, p := range params {
		query = append(query, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}

	// Copy the auth URL value into local pointer. This must not modify the original URL.
	var u = &url.URL{}
	*u = *r.authURL
	u.RawQuery = strings.Join(query, "&")
	return u, nil
}

func (r *Roblox) ValidateAuthorizationCode(ctx context.Context, req ExchangeRequest) (*Tokens, error) {
	var opts []oauth2.AuthCodeOption
	if !r.opts.DisablePKCE {
		if req.CodeVerifier == "" {
			return nil, ErrMissingCodeVerifier
		}
		opts = append(opts, oauth2.VerifierOption(req.CodeVerifier))
	}

	// The oauth2 package picks up the HTTP client from the context.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)

	conf := r.oauthConfig(req.RedirectURI)
	token, err := conf.Exchange(ctx, req.Code, opts...)
	if err != nil {
		slog.ErrorContext(ctx, "token request failed", "err", err)
		// Network failures and timeouts surface as url errors.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, errors.Join(ErrTokenExchange, ErrTransport, fmt.Errorf("error in conf.Exchange call: %w", err))
		}
		return nil, errors.Join(ErrTokenExchange, fmt.Errorf("error in conf.Exchange call: %w", err))
	}

	tokens := &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		tokens.Scopes = strings.Fields(scope)
	}

	if tokens.IDToken == "" || r.verifier == nil {
		return tokens, nil
	}

	claims, err := r.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		return nil, fmt.Errorf("error in VerifyIDToken call: %w", err)
	}

	// The token must be bound to the session that started this flow.
	if r.opts.VerifyNonce != nil {
		if claims.Nonce == "" {
			return nil, errors.Join(ErrNonceMismatch, errors.New("nonce claim is missing"))
		}
		if err := r.checkNonce(claims.Nonce, req.Nonce); err != nil {
			return nil, err
		}
	}

	tokens.IDTokenClaims = claims
	return tokens, nil
}

func (r *Roblox) GetUserInfo(ctx context.Context, tokens Tokens, opts ...UserInfoOption) (*UserInfo, error) {
	// The override replaces the default behaviour entirely.
	if r.opts.GetUserInfo != nil {
		return r.opts.GetUserInfo(ctx, tokens)
	}

	var options userInfoOptions
	for _, opt := range opts {
		opt(&options)
	}

	profile, err := r.fetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch profile", "err", err)
		return nil, nil
	}

	if profile.Nonce != "" && r.opts.VerifyNonce != nil {
		if err := r.checkNonce(profile.Nonce, options.sessionNonce); err != nil {
			slog.ErrorContext(ctx, "profile nonce rejected", "err", err)
			return nil, nil
		}
	}

	user, err := r.normalize(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("error in normalize call: %w", err)
	}
	if user == nil {
		slog.ErrorContext(ctx, "profile has no subject identifier", "err", ErrProfileFetch)
		return nil, nil
	}

	return &UserInfo{User: *user, Data: *profile}, nil
}

// VerifyIDToken verifies the given identity token and returns its claims.
func (r *Roblox) VerifyIDToken(ctx context.Context, token string) (*IDTokenClaims, error) {
	if r.verifier == nil {
		return nil, errors.Join(ErrInvalidIDToken, errors.New("identity token verification is disabled"))
	}
	return r.verifier.Verify(ctx, token)
}

// checkNonce runs the VerifyNonce hook. A missing session nonce never passes.
func (r *Roblox) checkNonce(nonce, sessionNonce string) error {
	if sessionNonce == "" {
		return errors.Join(ErrNonceMismatch, errors.New("session nonce is missing"))
	}
	if !r.opts.VerifyNonce(nonce, sessionNonce) {
		return ErrNonceMismatch
	}
	return nil
}

// redirectURI resolves the redirect URI. The configured one always wins.
func (r *Roblox) redirectURI(requested string) string {
	if r.opts.RedirectURI != "" {
		return r.opts.RedirectURI
	}
	return requested
}

// oauthConfig returns the oauth2 configuration for a single exchange.
func (r *Roblox) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     r.opts.ClientID,
		ClientSecret: r.opts.ClientSecret,
		RedirectURL:  r.redirectURI(redirectURI),
		Scopes:       robloxScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   r.endpoints.AuthURL,
			TokenURL:  r.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// withDefaultEndpoints fills the zero fields of the given endpoints with Roblox's.
func withDefaultEndpoints(e Endpoints) Endpoints {
	defaultString(&e.AuthURL, robloxAuthURL)
	defaultString(&e.TokenURL, robloxTokenURL)
	defaultString(&e.UserInfoURL, robloxUserInfoURL)
	defaultString(&e.JWKSURL, robloxJWKSURL)
	defaultString(&e.Issuer, robloxIssuer)
	return e
}

// newHTTPClient returns a copy of the given client that always carries a timeout.
func newHTTPClient(client *http.Client, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if client == nil {
		return &http.Client{Timeout: timeout}
	}

	copied := *client
	if copied.Timeout == 0 {
		copied.Timeout = timeout
	}
	return &copied
}
