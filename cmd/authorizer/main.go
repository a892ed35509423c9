package main

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"os"

	"github.com/shivanshkc/robloxauth/internal/config"
	"github.com/shivanshkc/robloxauth/internal/database"
	"github.com/shivanshkc/robloxauth/internal/handler"
	"github.com/shivanshkc/robloxauth/internal/http"
	"github.com/shivanshkc/robloxauth/internal/middleware"
	"github.com/shivanshkc/robloxauth/internal/repository"
	"github.com/shivanshkc/robloxauth/pkg/logger"
	"github.com/shivanshkc/robloxauth/pkg/oauth"
)

func main() {
	// Initialize basic dependencies.
	conf := config.Load()
	logger.Init(os.Stdout, conf.Logger.Level, conf.Logger.Pretty)

	// Cancelling this context stops the background key set refreshes.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, conf)
	if err != nil {
		panic("error in database.Connect call: " + err.Error())
	}
	defer func() { _ = db.Close() }()

	roblox, err := oauth.NewRoblox(ctx, oauth.Options{
		ClientID:                   conf.Roblox.ClientID,
		ClientSecret:               conf.Roblox.ClientSecret,
		RedirectURI:                conf.Roblox.RedirectURI,
		Prompt:                     conf.Roblox.Prompt,
		DisablePKCE:                conf.Roblox.DisablePKCE,
		DisableIDTokenVerification: conf.Roblox.DisableIDTokenVerification,
		HTTPTimeout:                conf.Roblox.HTTPTimeout,
		MinKeyRefreshInterval:      conf.Roblox.JWKSMinRefreshInterval,
		// The nonce issued with the redirect must come back unchanged.
		VerifyNonce: func(nonce, sessionNonce string) bool {
			return subtle.ConstantTimeCompare([]byte(nonce), []byte(sessionNonce)) == 1
		},
	})
	if err != nil {
		panic("error in oauth.NewRoblox call: " + err.Error())
	}

	// Initialize the HTTP server.
	server := &http.Server{
		Config:     conf,
		Middleware: middleware.NewMiddleware(conf.AllowedRedirectURLs),
		Handler:    handler.NewHandler(conf, repository.NewRepository(db), roblox),
	}

	// This internally calls ListenAndServe.
	// This is a blocking call and will panic if the server is unable to start.
	server.Start()
	slog.Info("server stopped")
}
