package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
	"github.com/shivanshkc/robloxauth/internal/utils/httputils"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

// stateExpiry is the max allowed time for a provider to invoke the callback API.
// If the provider is too late, the state will be expired and the flow will fail.
//
// This is a var and not a const so it can be modified for testing purposes.
var stateExpiry = time.Minute

var (
	errUnknownRedirectURL  = errutils.BadRequest().WithReasonStr("redirect_url is not allowed")
	errUnsupportedProvider = errutils.BadRequest().WithReasonStr("provider is not supported")
)

// stateValue is stored against the OAuth state for the duration of the flow.
type stateValue struct {
	// Attempt holds the PKCE verifier and the nonce. They never leave the server.
	Attempt           *oauth.Attempt
	ClientCallbackURL string
}

// Auth starts the OAuth flow by redirecting the caller to the specified provider's authentication page.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Provider is a path parameter and so it will always be present.
	providerName := mux.Vars(r)["provider"]
	// Once authentication is done, the flow will end on this URL.
	clientCallbackURL := r.URL.Query().Get("redirect_url")

	// Provider name validation.
	if err := validateProvider(providerName); err != nil {
		slog.ErrorContext(ctx, "invalid provider", "value", providerName, "error", err)
		httputils.WriteErr(w, errutils.BadRequest().WithReasonErr(err))
		return
	}

	// Client callback URL validation.
	if err := validateClientCallbackURL(clientCallbackURL); err != nil {
		slog.ErrorContext(ctx, "invalid client callback URL", "value", clientCallbackURL, "error", err)
		httputils.WriteErr(w, errutils.BadRequest().WithReasonErr(err))
		return
	}

	// Client callback URL must be one of the allowed ones.
	if !slices.Contains(h.config.AllowedRedirectURLs, clientCallbackURL) {
		slog.ErrorContext(ctx, "request contains unknown redirect_url", "value", clientCallbackURL)
		httputils.WriteErr(w, errUnknownRedirectURL)
		return
	}

	provider := h.providerByName(providerName)
	if provider == nil {
		slog.ErrorContext(ctx, "provider is not implemented", "provider", providerName)
		httputils.WriteErr(w, errUnsupportedProvider)
		return
	}

	// The state key doubles as the CSRF token of the flow.
	stateKey := uuid.NewString()
	attempt, err := oauth.NewAttempt(provider, stateKey, h.callbackURL(provider.ID()))
	if err != nil {
		slog.ErrorContext(ctx, "error in oauth.NewAttempt call", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	authURL, err := attempt.AuthURL()
	if err != nil {
		slog.ErrorContext(ctx, "error in attempt.AuthURL call", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	h.stateMap.Store(stateKey, stateValue{Attempt: attempt, ClientCallbackURL: clientCallbackURL})
	go h.expireState(stateKey, stateExpiry)

	headers := map[string]string{
		"Location": authURL.String(),
		// The following headers make sure that the browser is not allowed to render the page
		// in a <frame>, <iframe>, <embed> or <object> tag.
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "frame-ancestors 'none'",
	}

	// Redirect.
	httputils.Write(w, http.StatusFound, headers, nil)
}

// expireState deletes the state after the given expiry unless the callback consumed it first.
func (h *Handler) expireState(stateKey string, expiry time.Duration) {
	// Don't use the HTTP request's context here.
	ctx := context.Background()
	time.Sleep(expiry)

	if _, present := h.stateMap.LoadAndDelete(stateKey); !present {
		slog.DebugContext(ctx, "state utilized before expiry", "stateKey", stateKey)
		return
	}
	slog.WarnContext(ctx, "state expired", "stateKey", stateKey)
}
