package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config represents the configs model.
type Config struct {
	// Application is the model of application configs.
	Application struct {
		// Name of the application.
		Name string `yaml:"name"`
		// BaseURL of the application.
		// It can be http://localhost:8080 during development and https://domain.com in production.
		BaseURL string `yaml:"base_url"`
		// PProf enables the profiling endpoints.
		PProf bool `yaml:"pprof"`
	} `yaml:"application"`

	Database struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		// SSLMode is passed to Postgres as is.
		SSLMode string `yaml:"ssl_mode"`
	} `yaml:"database"`

	// HTTPServer is the model of the HTTP Server configs.
	HTTPServer struct {
		// Addr is the address of the HTTP server.
		Addr string `yaml:"addr"`
	} `yaml:"http_server"`

	// Logger is the model of the application logger configs.
	Logger struct {
		// Level of the logger.
		Level string `yaml:"level"`
		// Pretty is a flag that dictates whether the log output should be pretty (human-readable).
		Pretty bool `yaml:"pretty"`
	} `yaml:"logger"`

	// AllowedRedirectURLs is the list of URLs that Authorizer may redirect to after the OAuth flow is complete.
	// The first one is used when the flow fails before the requested URL is known.
	AllowedRedirectURLs []string `yaml:"allowed_redirect_urls"`

	// Roblox OAuth related configs.
	Roblox struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		// RedirectURI overrides the callback URL derived from the base URL.
		RedirectURI string `yaml:"redirect_uri"`
		// Prompt is sent to Roblox as is, for example "login consent select_account".
		Prompt                     string        `yaml:"prompt"`
		DisablePKCE                bool          `yaml:"disable_pkce"`
		DisableIDTokenVerification bool          `yaml:"disable_id_token_verification"`
		HTTPTimeout                time.Duration `yaml:"http_timeout"`
		JWKSMinRefreshInterval     time.Duration `yaml:"jwks_min_refresh_interval"`
	} `yaml:"roblox"`
}

// Load loads and returns the config value.
// It panics if the configs cannot be loaded or are invalid.
func Load() Config {
	conf, err := loadWithViper(configFilePath())
	if err != nil {
		panic("error in loadWithViper call: " + err.Error())
	}

	if err := conf.Validate(); err != nil {
		panic("invalid configs: " + err.Error())
	}

	return conf
}

// Validate checks the configs that the application cannot start without.
func (c Config) Validate() error {
	if len(c.AllowedRedirectURLs) == 0 {
		return errors.New("at least one allowed redirect URL is required")
	}

	for _, u := range append([]string{c.Application.BaseURL}, c.AllowedRedirectURLs...) {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid url %q: %w", u, err)
		}
	}

	if c.Roblox.ClientID == "" {
		return errors.New("roblox client id is required")
	}

	return nil
}

// LoadMock provides a mock instance of the config for testing purposes.
func LoadMock() Config {
	cfg := Config{}

	cfg.Application.Name = "example-application"
	cfg.Application.BaseURL = "http://localhost:8080"
	cfg.HTTPServer.Addr = "localhost:8080"

	cfg.Logger.Level = "debug"
	cfg.Logger.Pretty = true

	cfg.AllowedRedirectURLs = []string{"http://localhost:3000/callback"}

	cfg.Roblox.ClientID = "mock-client-id"
	cfg.Roblox.ClientSecret = "mock-client-secret"
	cfg.Roblox.HTTPTimeout = 10 * time.Second
	cfg.Roblox.JWKSMinRefreshInterval = time.Minute

	return cfg
}
