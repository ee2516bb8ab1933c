package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/fleetgate/internal/agent"
	"github.com/HerbHall/fleetgate/internal/auth"
	"github.com/HerbHall/fleetgate/internal/commands"
	"github.com/HerbHall/fleetgate/internal/config"
	"github.com/HerbHall/fleetgate/internal/devices"
	"github.com/HerbHall/fleetgate/internal/inventory"
	"github.com/HerbHall/fleetgate/internal/license"
	"github.com/HerbHall/fleetgate/internal/registry"
	"github.com/HerbHall/fleetgate/internal/server"
	"github.com/HerbHall/fleetgate/internal/sessions"
	"github.com/HerbHall/fleetgate/internal/store"
	"github.com/HerbHall/fleetgate/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("FleetGate server starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database
	dbPath := viperCfg.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}

	for name, migrate := range map[string]func(context.Context, *store.SQLiteStore) error{
		"license":   license.Migrate,
		"devices":   devices.Migrate,
		"commands":  commands.Migrate,
		"sessions":  sessions.Migrate,
		"inventory": inventory.Migrate,
		"auth":      auth.Migrate,
	} {
		if err := migrate(ctx, db); err != nil {
			logger.Fatal("migration failed",
				zap.String("module", name),
				zap.Error(err),
			)
		}
	}
	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	// License
	licenseService := license.NewService(db, logger.Named("license"))
	if err := licenseService.EnsureDefault(ctx, viperCfg.GetInt("license.max_devices")); err != nil {
		logger.Fatal("failed to ensure license", zap.Error(err))
	}

	// Core services
	connRegistry := registry.New(logger.Named("registry"))
	directory := devices.NewDirectory(devices.NewStore(db.DB()), licenseService, logger.Named("devices"))
	dispatcher := commands.NewDispatcher(commands.NewStore(db.DB()), connRegistry, directory, logger.Named("commands"))
	inventoryService := inventory.NewService(db, logger.Named("inventory"))
	sessionManager := sessions.NewManager(sessions.NewStore(db.DB()), dispatcher, connRegistry, logger.Named("sessions"))

	agentHandler := agent.NewHandler(connRegistry, directory, dispatcher, inventoryService,
		agent.OptionsFromConfig(viperCfg), logger.Named("agent"))

	// Auth (optional -- development setups can run the API open).
	var authHandler server.AuthRegistrar
	if viperCfg.GetBool("auth.enabled") {
		jwtSecret := viperCfg.GetString("auth.jwt_secret")
		if jwtSecret == "" {
			// Generate an ephemeral secret -- tokens won't survive restarts.
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				logger.Fatal("failed to generate JWT secret", zap.Error(err))
			}
			jwtSecret = hex.EncodeToString(b)
			logger.Warn("no auth.jwt_secret configured; using ephemeral secret (tokens will not survive restarts)",
				zap.String("component", "auth"),
			)
		}

		tokens := auth.NewTokenService([]byte(jwtSecret),
			viperCfg.GetDuration("auth.access_token_ttl"),
			viperCfg.GetDuration("auth.refresh_token_ttl"),
		)
		authService := auth.NewService(auth.NewUserStore(db.DB()), tokens, logger.Named("auth"))
		authHandler = auth.NewHandler(authService, logger.Named("auth"))
		logger.Info("auth service initialized", zap.String("component", "auth"))
	} else {
		logger.Warn("authentication disabled; API is open", zap.String("component", "auth"))
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", viperCfg.GetString("server.host"), viperCfg.GetInt("server.port"))
	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return db.DB().PingContext(ctx)
	})

	registrars := []server.RouteRegistrar{
		agentHandler,
		devices.NewHandler(directory, logger.Named("devices")),
		commands.NewHandler(dispatcher, connRegistry, logger.Named("commands")),
		inventory.NewHandler(inventoryService, logger.Named("inventory")),
		sessions.NewHandler(sessionManager, logger.Named("sessions")),
		license.NewHandler(licenseService, logger.Named("license")),
	}
	srv := server.New(addr, logger, readyCheck, authHandler, registrars...)

	// Session sweeper ends idle remote sessions in the background.
	go sessionManager.RunSweeper(ctx,
		viperCfg.GetDuration("sessions.sweep_interval"),
		viperCfg.GetDuration("sessions.inactivity_threshold"),
	)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("FleetGate server ready", zap.String("addr", addr))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("FleetGate server stopped")
}
