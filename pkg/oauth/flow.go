package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Stage of an authorization attempt.
type Stage int

const (
	StageStart Stage = iota
	StageURLBuilt
	StageCodeReceived
	StageTokensExchanged
	StageIDTokenVerified
	StageProfileFetched
	StageNormalized
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageStart:           "start",
	StageURLBuilt:        "url_built",
	StageCodeReceived:    "code_received",
	StageTokensExchanged: "tokens_exchanged",
	StageIDTokenVerified: "id_token_verified",
	StageProfileFetched:  "profile_fetched",
	StageNormalized:      "normalized",
	StageDone:            "done",
	StageFailed:          "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ErrInvalidStage is returned when an attempt operation is called out of order.
var ErrInvalidStage = errors.New("operation not allowed at this stage")

// failureKinds are the errors an attempt's failure is classified by, most specific first.
var failureKinds = []error{
	ErrMissingCodeVerifier,
	ErrInvalidIDToken,
	ErrNonceMismatch,
	ErrTokenExchange,
	ErrProfileFetch,
	ErrTransport,
}

// Attempt is a single authorization attempt against a provider.
//
// It owns the attempt-scoped secrets (state, PKCE verifier and nonce) and is not safe for concurrent use.
// Nothing is retried: once failed, an attempt stays failed.
type Attempt struct {
	provider    Provider
	state       string
	redirectURI string
	pkce        PKCE
	nonce       string

	stage    Stage
	history  []Stage
	err      error
	tokens   *Tokens
	userInfo *UserInfo
}

// NewAttempt starts an attempt with fresh PKCE and nonce values.
func NewAttempt(provider Provider, state, redirectURI string) (*Attempt, error) {
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("error in GenerateNonce call: %w", err)
	}

	return &Attempt{
		provider:    provider,
		state:       state,
		redirectURI: redirectURI,
		pkce:        NewPKCE(),
		nonce:       nonce,
		stage:       StageStart,
		history:     []Stage{StageStart},
	}, nil
}

func (a *Attempt) State() string    { return a.state }
func (a *Attempt) Nonce() string    { return a.nonce }
func (a *Attempt) Stage() Stage     { return a.stage }
func (a *Attempt) Tokens() *Tokens  { return a.tokens }
func (a *Attempt) User() *UserInfo  { return a.userInfo }
func (a *Attempt) Provider() string { return a.provider.ID() }

// History returns the stages the attempt went through, in order.
func (a *Attempt) History() []Stage {
	return append([]Stage(nil), a.history...)
}

// Err returns the error the attempt failed with, if any.
func (a *Attempt) Err() error { return a.err }

// FailureKind returns the sentinel error that classifies the failure, or nil if the attempt has not failed.
func (a *Attempt) FailureKind() error {
	if a.err == nil {
		return nil
	}
	for _, kind := range failureKinds {
		if errors.Is(a.err, kind) {
			return kind
		}
	}
	return a.err
}

// AuthURL builds the provider's authorization URL for this attempt.
func (a *Attempt) AuthURL() (*url.URL, error) {
	if a.stage != StageStart && a.stage != StageURLBuilt {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStage, a.stage)
	}

	u, err := a.provider.AuthURL(AuthorizationRequest{
		State:        a.state,
		RedirectURI:  a.redirectURI,
		CodeVerifier: a.pkce.CodeVerifier,
		Nonce:        a.nonce,
	})
	if err != nil {
		return nil, a.fail(fmt.Errorf("error in provider.AuthURL call: %w", err))
	}

	if a.stage == StageStart {
		a.advance(StageURLBuilt)
	}
	return u, nil
}

// Complete runs the rest of the flow with the authorization code from the provider's callback.
func (a *Attempt) Complete(ctx context.Context, code string) (*UserInfo, error) {
	if a.stage != StageURLBuilt {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStage, a.stage)
	}
	a.advance(StageCodeReceived)

	tokens, err := a.provider.ValidateAuthorizationCode(ctx, ExchangeRequest{
		Code:         code,
		RedirectURI:  a.redirectURI,
		CodeVerifier: a.pkce.CodeVerifier,
		Nonce:        a.nonce,
	})
	if err != nil {
		return nil, a.fail(fmt.Errorf("error in provider.ValidateAuthorizationCode call: %w", err))
	}

	a.tokens = tokens
	a.advance(StageTokensExchanged)
	if tokens.IDTokenClaims != nil {
		a.advance(StageIDTokenVerified)
	}

	info, err := a.provider.GetUserInfo(ctx, *tokens, WithSessionNonce(a.nonce))
	if err != nil {
		return nil, a.fail(fmt.Errorf("error in provider.GetUserInfo call: %w", err))
	}
	if info == nil {
		return nil, a.fail(ErrProfileFetch)
	}

	// The provider fetches and normalizes in one call.
	a.advance(StageProfileFetched)
	a.advance(StageNormalized)

	a.userInfo = info
	a.advance(StageDone)
	return info, nil
}

func (a *Attempt) advance(stage Stage) {
	a.stage = stage
	a.history = append(a.history, stage)
}

// fail moves the attempt to the terminal failed stage.
func (a *Attempt) fail(err error) error {
	a.advance(StageFailed)
	a.err = err
	return err
}
