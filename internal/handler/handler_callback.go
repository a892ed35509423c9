package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/shivanshkc/robloxauth/internal/repository"
	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
	"github.com/shivanshkc/robloxauth/internal/utils/httputils"
	"github.com/shivanshkc/robloxauth/internal/utils/miscutils"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

// sessionCookieName is the name of the cookie that holds the identity token.
const sessionCookieName = "session"

// Callback handles the provider's OAuth callback.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Obtain params from the request.
	providerName := mux.Vars(r)["provider"]
	stateKey, errAuth, code := r.URL.Query().Get("state"),
		r.URL.Query().Get("error"),
		r.URL.Query().Get("code")

	// State key validation.
	if err := validateState(stateKey); err != nil {
		slog.ErrorContext(ctx, "invalid state from provider", "value", stateKey, "error", err)
		// Since the state key is invalid, the state map can not be accessed, and so the redirect URL is unknown.
		// Therefore, we have to fall back to the first allowed redirect URL.
		errorRedirect(w, errInvalidState, h.config.AllowedRedirectURLs[0])
		return
	}

	// If the state value is found in the state map, it guarantees that it is not a CSRF attack.
	// Otherwise, either the provider took too long and the state expired,
	// or someone is trying to impersonate the provider.
	sValueAny, present := h.stateMap.LoadAndDelete(stateKey)
	if !present {
		slog.ErrorContext(ctx, "state key not found in the map, failing request", "stateKey", stateKey)
		errorRedirect(w, errutils.RequestTimeout(), h.config.AllowedRedirectURLs[0])
		return
	}

	sValue, ok := sValueAny.(stateValue)
	if !ok {
		slog.ErrorContext(ctx, "failed to assert to stateValue type", "stateValue", sValueAny)
		errorRedirect(w, errutils.InternalServerError(), h.config.AllowedRedirectURLs[0])
		return
	}

	// Provider name validation. The callback must come from the provider the flow was started with.
	if err := validateProvider(providerName); err != nil || providerName != sValue.Attempt.Provider() {
		slog.ErrorContext(ctx, "invalid provider in callback", "value", providerName, "error", err)
		errorRedirect(w, errutils.InternalServerError(), sValue.ClientCallbackURL)
		return
	}

	// If this error is not empty, then the OAuth flow has failed from the provider's side.
	if errAuth != "" {
		slog.ErrorContext(ctx, "provider called back with error", "error", errAuth)
		errorRedirect(w, errors.New(errAuth), sValue.ClientCallbackURL)
		return
	}

	// Authorization code validation.
	if err := validateAuthCode(code); err != nil {
		slog.ErrorContext(ctx, "invalid code in callback", "value", code, "error", err)
		errorRedirect(w, errutils.InternalServerError(), sValue.ClientCallbackURL)
		return
	}

	// Exchange, verify, fetch and normalize.
	info, err := sValue.Attempt.Complete(ctx, code)
	if err != nil {
		slog.ErrorContext(ctx, "authorization attempt failed", "stage", sValue.Attempt.Stage(),
			"kind", sValue.Attempt.FailureKind(), "error", err)
		errorRedirect(w, attemptError(sValue.Attempt.FailureKind()), sValue.ClientCallbackURL)
		return
	}

	// The verified identity token becomes the session.
	tokens := sValue.Attempt.Tokens()
	if tokens.IDToken == "" || tokens.IDTokenClaims == nil {
		slog.ErrorContext(ctx, "provider did not issue a verified identity token")
		errorRedirect(w, errutils.Unauthorized(), sValue.ClientCallbackURL)
		return
	}

	// Upsert user in the database asynchronously.
	go h.upsertUser(sValue.Attempt.Provider(), info.User)

	http.SetCookie(w, &http.Cookie{
		Name:  sessionCookieName,
		Value: tokens.IDToken,
		Path:  "/",
		// The cookie expires at the same time as the token.
		MaxAge: int(time.Until(tokens.IDTokenClaims.ExpiresAt).Seconds()),
		// Use secure mode when the application is running over HTTPS.
		Secure:   strings.HasPrefix(h.config.Application.BaseURL, "https://"),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	redirectURL, err := miscutils.WithQueryParam(sValue.ClientCallbackURL, "provider", providerName)
	if err != nil {
		slog.ErrorContext(ctx, "error in miscutils.WithQueryParam call", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	httputils.Write(w, http.StatusFound, map[string]string{"Location": redirectURL}, nil)
}

// upsertUser stores the canonical user. It does not use the request's context as it outlives the request.
func (h *Handler) upsertUser(providerName string, user oauth.User) {
	ctx := context.Background()

	record := repository.User{
		Provider:       providerName,
		ProviderUserID: user.ID,
		Name:           user.Name,
	}
	if user.Image != nil {
		record.PictureURL = *user.Image
	}

	if err := h.repo.UpsertUser(ctx, record); err != nil {
		slog.ErrorContext(ctx, "error in UpsertUser call", "error", err)
	}
}

// attemptError converts the failure kind of an attempt into the error shown to the client.
// Provider and transport details are never exposed.
func attemptError(kind error) error {
	switch {
	case errors.Is(kind, oauth.ErrInvalidIDToken), errors.Is(kind, oauth.ErrNonceMismatch):
		return errutils.Unauthorized()
	case errors.Is(kind, oauth.ErrTokenExchange),
		errors.Is(kind, oauth.ErrProfileFetch),
		errors.Is(kind, oauth.ErrTransport):
		return errutils.BadGateway()
	default:
		return errutils.InternalServerError()
	}
}

// errorRedirect redirects the caller (by writing 302 and the Location header to the response) and attaches
// the given error information as a query parameter.
func errorRedirect(w http.ResponseWriter, err error, targetURL string) {
	redirectURL, errURL := miscutils.WithQueryParam(targetURL, "error", err.Error())
	if errURL != nil {
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	httputils.Write(w, http.StatusFound, map[string]string{"Location": redirectURL}, nil)
}
