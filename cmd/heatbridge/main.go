package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heatbridge/config"
	"heatbridge/internal/api"
	"heatbridge/internal/bridge"
	"heatbridge/internal/logging"
	"heatbridge/internal/poller"
	"heatbridge/internal/qvantum"
	"heatbridge/internal/storage/sqlite"
)

const (
	shutdownTimeout   = 10 * time.Second
	startupTimeout    = 60 * time.Second
	defaultConfigPath = "config.json"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error

	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}

	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: cfg.Logging.Format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})

	// Initialize database
	logger.Info("Initializing SQLite database", "path", cfg.Database.Path)
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Initialize the cloud client and sign in before serving anything.
	// Startup with bad credentials should fail loudly, not poll forever.
	client := qvantum.NewClient(qvantum.Credentials{
		Email:               cfg.Qvantum.Username,
		Password:            cfg.Qvantum.Password,
		APIKey:              cfg.Qvantum.APIKey,
		APIEndpoint:         cfg.Qvantum.APIURL,
		InternalAPIEndpoint: cfg.Qvantum.APIURL,
		AuthServer:          cfg.Qvantum.AuthURL,
		TokenServer:         cfg.Qvantum.RefreshURL,
	}, logger)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer startupCancel()

	if err := client.Authenticate(startupCtx); err != nil {
		return fmt.Errorf("cloud sign-in failed: %w", err)
	}
	logger.Info("Signed in to Qvantum cloud", "account", cfg.Qvantum.Username)

	devices, err := client.GetDevices(startupCtx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no devices found on account %s", cfg.Qvantum.Username)
	}

	// Build the bridge with one normal and one fast poller per device
	hub := api.NewStreamHub(logger)
	commands := logging.NewCommandLogger(client, logger)
	br := bridge.New(commands, db, logger)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	var runners []*poller.Runner
	for _, device := range devices {
		logger.Info("Registering device",
			"device_id", device.ID,
			"name", device.Name,
			"model", device.Model,
		)

		normal := poller.NewCoordinator(client, db, device.ID, poller.KindNormal, logger)
		normal.AddListener(hub.Broadcast)
		normalRunner := poller.NewRunner(normal, cfg.Polling.NormalInterval.Std(), logger)

		var fast *poller.Coordinator
		var fastRunner *poller.Runner
		if !cfg.Qvantum.DisableFast {
			fast = poller.NewCoordinator(client, db, device.ID, poller.KindFast, logger)
			fast.AddListener(hub.Broadcast)
			fastRunner = poller.NewRunner(fast, cfg.Polling.FastInterval.Std(), logger)
		}

		br.AddDevice(device, normal, fast, normalRunner, fastRunner)

		// Prime the snapshot so the API has data as soon as it is up.
		// A failed first cycle is not fatal; the runner retries on its
		// interval.
		if err := normal.RunCycle(startupCtx); err != nil {
			logger.Warn("Initial poll cycle failed", "device_id", device.ID, "error", err)
		}

		normalRunner.Start(runCtx)
		runners = append(runners, normalRunner)
		if fastRunner != nil {
			fastRunner.Start(runCtx)
			runners = append(runners, fastRunner)
		}
	}

	// Initialize REST API
	router := api.NewRouter(api.RouterConfig{
		Bridge: br,
		Hub:    hub,
		APIKey: cfg.Security.APIKey,
		Logger: logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Starting graceful shutdown", "signal", sig.String())

		for _, runner := range runners {
			runner.Stop()
		}
		runCancel()
		hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("Graceful shutdown complete")
	}

	return nil
}
