package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// envPrefix is the prefix of all environment variables that override configs.
	// For example, AUTHORIZER_ROBLOX_CLIENT_SECRET overrides roblox.client_secret.
	envPrefix = "AUTHORIZER"
	// configFileEnv holds the path of the config file.
	configFileEnv = "AUTHORIZER_CONFIG_FILE"
	// defaultConfigFile is used when configFileEnv is not set.
	defaultConfigFile = "./configs/configs.yaml"
)

// configFilePath returns the path of the config file to load.
func configFilePath() string {
	if path := os.Getenv(configFileEnv); path != "" {
		return path
	}
	return defaultConfigFile
}

// loadWithViper reads the configs from the given YAML file and the environment.
// A missing file is not an error, in which case the defaults and the environment are used.
func loadWithViper(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variables take precedence over the file.
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("error in v.ReadInConfig call: %w", err)
		}
		slog.Warn("config file not found, using defaults and environment", "path", path)
	}

	// The struct is tagged for YAML, so the decoder must use the same tags.
	var conf Config
	if err := v.Unmarshal(&conf, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return Config{}, fmt.Errorf("error in v.Unmarshal call: %w", err)
	}

	return conf, nil
}

// setDefaults registers every key, which also makes them overridable through the environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("application.name", "authorizer")
	v.SetDefault("application.base_url", "http://localhost:8080")
	v.SetDefault("application.pprof", false)

	v.SetDefault("database.addr", "localhost:5432")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "authorizer")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("http_server.addr", "localhost:8080")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty", false)

	v.SetDefault("allowed_redirect_urls", []string{})

	v.SetDefault("roblox.client_id", "")
	v.SetDefault("roblox.client_secret", "")
	v.SetDefault("roblox.redirect_uri", "")
	v.SetDefault("roblox.prompt", "login consent select_account")
	v.SetDefault("roblox.disable_pkce", false)
	v.SetDefault("roblox.disable_id_token_verification", false)
	v.SetDefault("roblox.http_timeout", "10s")
	v.SetDefault("roblox.jwks_min_refresh_interval", "1m")
}
