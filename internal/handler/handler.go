package handler

import (
	"net/http"
	"sync"

	"github.com/shivanshkc/robloxauth/internal/config"
	"github.com/shivanshkc/robloxauth/internal/repository"
	"github.com/shivanshkc/robloxauth/internal/utils/errutils"
	"github.com/shivanshkc/robloxauth/internal/utils/httputils"
	"github.com/shivanshkc/robloxauth/internal/utils/miscutils"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

// Handler encapsulates all REST handlers.
type Handler struct {
	config config.Config
	// stateMap holds the in-flight authorization attempts, keyed by the OAuth state.
	stateMap *sync.Map
	repo     repository.Repository

	providers map[string]oauth.Provider
}

// NewHandler creates a new Handler instance.
func NewHandler(config config.Config, repo repository.Repository, providers ...oauth.Provider) *Handler {
	h := &Handler{
		config:    config,
		stateMap:  &sync.Map{},
		repo:      repo,
		providers: make(map[string]oauth.Provider, len(providers)),
	}

	for _, provider := range providers {
		h.providers[provider.ID()] = provider
	}

	return h
}

// NotFound handler can be used to serve any unrecognized routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	httputils.WriteErr(w, errutils.NotFound())
}

// Health returns 200 if everything is running fine.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	info := map[string]string{"name": h.config.Application.Name}
	httputils.Write(w, http.StatusOK, nil, info)
}

// providerByName returns the provider for the given name, or nil if it is not configured.
func (h *Handler) providerByName(providerName string) oauth.Provider {
	return h.providers[providerName]
}

// callbackURL is where the provider sends the user back to.
func (h *Handler) callbackURL(providerName string) string {
	return miscutils.MustParseURL(h.config.Application.BaseURL).
		JoinPath("/api/auth", providerName, "callback").String()
}
