//go:build !js && !wasm

package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Its-donkey/storefront/internal/config"
	"github.com/Its-donkey/storefront/internal/identity"
	"github.com/Its-donkey/storefront/internal/profiles"
	uiserver "github.com/Its-donkey/storefront/internal/ui/server"
	"github.com/Its-donkey/storefront/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		// If a second signal arrives, force exit immediately.
		<-sigCh
		log.Println("second interrupt received, forcing shutdown")
		os.Exit(1)
	}()
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "address to serve the storefront UI")
	flag.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "directory holding index.html, main.wasm and view bundles")
	flag.StringVar(&cfg.ManifestPath, "views", cfg.ManifestPath, "view manifest YAML (defaults to the built-in manifest)")
	flag.BoolVar(&cfg.WatchManifest, "watch", cfg.WatchManifest, "reload the view manifest when it changes")
	flag.StringVar(&cfg.APIProxy, "api", cfg.APIProxy, "proxy /api to this base URL instead of serving profiles locally")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for the rotating JSON log file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "minimum log level")
	flag.StringVar(&cfg.MongoURI, "mongo", cfg.MongoURI, "MongoDB URI for profile records (memory store when empty)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	writers := []io.Writer{logging.NewConsoleWriter(os.Stdout)}
	var fileWriter *logging.FileWriter
	if cfg.LogDir != "" {
		fileWriter, err = logging.NewFileWriter(logging.FileOptions{Dir: cfg.LogDir, Filename: "ui-server.log"})
		if err != nil {
			log.Fatalf("log file: %v", err)
		}
		defer fileWriter.Close()
		writers = append(writers, fileWriter)
	}
	logger := logging.New("ui-server", logging.ParseLevel(cfg.LogLevel), writers...)

	opts := uiserver.Options{
		Listen:          cfg.Listen,
		AssetsDir:       cfg.AssetsDir,
		ManifestPath:    cfg.ManifestPath,
		WatchManifest:   cfg.WatchManifest && cfg.ManifestPath != "",
		APIProxy:        cfg.APIProxy,
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	if fileWriter != nil {
		opts.LogFile = fileWriter.Path()
	}

	if cfg.Identity.SigningKey != "" {
		verifier, err := identity.NewVerifier([]byte(cfg.Identity.SigningKey), cfg.Identity.Issuer, cfg.Identity.Audience)
		if err != nil {
			log.Fatalf("identity: %v", err)
		}
		opts.Authenticator = verifier.Authenticate
	} else {
		logger.Warn(logging.CategoryServer, "no id signing key configured; profile API accepts any caller", nil)
	}

	if cfg.MongoURI != "" {
		store, client, err := profiles.ConnectMongo(ctx, profiles.MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			AppName:  "storefront-ui-server",
			Logger:   logger,
		})
		if err != nil {
			log.Fatalf("profiles: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		opts.Profiles = store
	} else if cfg.APIProxy == "" {
		logger.Info(logging.CategoryServer, "using in-memory profile store", nil)
		opts.Profiles = profiles.NewMemoryStore()
	}

	srv, err := uiserver.New(opts)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server error: %v", err)
	}
}
