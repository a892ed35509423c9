package oauth

import (
	"errors"
)

var (
	// ErrTransport is returned when a call to the provider could not be completed (network failure or timeout).
	ErrTransport = errors.New("provider transport error")
	// ErrTokenExchange is returned when the authorization code could not be exchanged for tokens.
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrInvalidIDToken is returned when the signature, issuer, audience or validity window
	// of an identity token could not be verified.
	ErrInvalidIDToken = errors.New("invalid identity token")
	// ErrNonceMismatch is returned when the nonce echoed by the provider does not bind to the session.
	ErrNonceMismatch = errors.New("nonce mismatch")
	// ErrProfileFetch is returned when the userinfo call failed or returned no usable profile.
	ErrProfileFetch = errors.New("profile fetch failed")
	// ErrMissingCodeVerifier is returned when PKCE is enabled but no code verifier was supplied.
	ErrMissingCodeVerifier = errors.New("code verifier is required when pkce is enabled")
)
