// Package config loads process settings for the native storefront binaries.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Server configures cmd/ui-server. Flags override these values.
type Server struct {
	Listen          string        `env:"STOREFRONT_LISTEN"           envDefault:"127.0.0.1:4173"`
	AssetsDir       string        `env:"STOREFRONT_ASSETS_DIR"       envDefault:"ui"`
	ManifestPath    string        `env:"STOREFRONT_VIEWS_MANIFEST"`
	WatchManifest   bool          `env:"STOREFRONT_WATCH_MANIFEST"   envDefault:"true"`
	APIProxy        string        `env:"STOREFRONT_API_PROXY"`
	LogDir          string        `env:"STOREFRONT_LOG_DIR"`
	LogLevel        string        `env:"STOREFRONT_LOG_LEVEL"        envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"STOREFRONT_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	MongoURI      string `env:"STOREFRONT_MONGO_URI"`
	MongoDatabase string `env:"STOREFRONT_MONGO_DATABASE" envDefault:"storefront"`

	Identity Identity
}

// Identity configures ID token verification.
type Identity struct {
	// SigningKey verifies bearer tokens on the profile API. Empty disables caller checks.
	SigningKey string `env:"STOREFRONT_ID_SIGNING_KEY"`
	Issuer     string `env:"STOREFRONT_ID_ISSUER"`
	Audience   string `env:"STOREFRONT_ID_AUDIENCE"`
}

// Headless configures viewctl boot.
type Headless struct {
	StatePath string `env:"STOREFRONT_STATE_PATH" envDefault:"storefront-state.db"`
	Namespace string `env:"STOREFRONT_STATE_NAMESPACE" envDefault:"default"`
	Identity  Identity
}

// LoadServer reads Server from the environment and validates it.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Server) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is required")
	}
	if c.AssetsDir == "" {
		return errors.New("config: assets dir is required")
	}
	if c.MongoURI != "" && c.APIProxy != "" {
		return errors.New("config: mongo uri and api proxy are mutually exclusive")
	}
	if c.Identity.SigningKey != "" && len(c.Identity.SigningKey) < 32 {
		return errors.New("config: id signing key must be at least 32 bytes")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("config: shutdown timeout must be positive")
	}
	return nil
}

// LoadHeadless reads Headless from the environment.
func LoadHeadless() (Headless, error) {
	var cfg Headless
	if err := ParseEnv(&cfg); err != nil {
		return Headless{}, err
	}
	return cfg, nil
}
