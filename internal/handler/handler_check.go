package handler

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/shivanshkc/robloxauth/internal/repository"
	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
	"github.com/shivanshkc/robloxauth/internal/utils/httputils"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

const (
	xAuthIDHeader       = "X-Auth-Id"
	xAuthProviderHeader = "X-Auth-Provider"
	xAuthNameHeader     = "X-Auth-Name"
	xAuthPictureHeader  = "X-Auth-Picture"
)

// Check performs an authentication check on the given request.
// Upon success, the identity of the caller is returned in the X-Auth-* headers.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Get cookie for authentication.
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		// Known error.
		if errors.Is(err, http.ErrNoCookie) {
			slog.ErrorContext(ctx, "no cookie in the request")
			httputils.WriteErr(w, errutils.Unauthorized())
			return
		}
		// Unexpected error.
		slog.ErrorContext(ctx, "failed to get cookie from request", "error", err)
		httputils.WriteErr(w, errutils.InternalServerError())
		return
	}

	// The issuer decides which provider verifies the token.
	providerName, err := oauth.ProviderFromToken(cookie.Value, slices.Collect(maps.Values(h.providers))...)
	if err != nil {
		slog.ErrorContext(ctx, "error in oauth.ProviderFromToken call", "error", err)
		httputils.WriteErr(w, errutils.Unauthorized())
		return
	}

	provider := h.providerByName(providerName)
	if provider == nil {
		slog.ErrorContext(ctx, "token issued by an unconfigured provider", "provider", providerName)
		httputils.WriteErr(w, errutils.Unauthorized())
		return
	}

	claims, err := provider.VerifyIDToken(ctx, cookie.Value)
	if err != nil {
		slog.ErrorContext(ctx, "error in provider.VerifyIDToken call", "error", err)
		httputils.WriteErr(w, errutils.Unauthorized())
		return
	}

	name, picture := claims.PreferredUsername, claims.Picture
	if name == "" {
		name = claims.Name
	}

	// The stored user carries the normalized profile. Until it is stored, the claims are used.
	user, err := h.repo.GetUser(ctx, providerName, claims.Subject)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		slog.InfoContext(ctx, "user not stored yet", "provider", providerName, "subject", claims.Subject)
	case err != nil:
		slog.ErrorContext(ctx, "error in GetUser call", "error", err)
	default:
		if user.Name != "" {
			name = user.Name
		}
		if user.PictureURL != "" {
			picture = user.PictureURL
		}
	}

	headers := map[string]string{
		xAuthIDHeader:       claims.Subject,
		xAuthProviderHeader: providerName,
		xAuthNameHeader:     name,
		xAuthPictureHeader:  picture,
	}

	httputils.Write(w, http.StatusOK, headers, nil)
}
