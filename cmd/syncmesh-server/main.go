// Package main provides the entry point for syncmesh-server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/yndnr/syncmesh-go/internal/core/replication"
	"github.com/yndnr/syncmesh-go/internal/core/service"
	"github.com/yndnr/syncmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/syncmesh-go/internal/infra/confloader"
	"github.com/yndnr/syncmesh-go/internal/infra/shutdown"
	"github.com/yndnr/syncmesh-go/internal/server/config"
	"github.com/yndnr/syncmesh-go/internal/server/httpserver"
	"github.com/yndnr/syncmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/syncmesh-go/internal/server/localserver"
	"github.com/yndnr/syncmesh-go/internal/server/redisserver"
	"github.com/yndnr/syncmesh-go/internal/storage"
	"github.com/yndnr/syncmesh-go/internal/telemetry/logger"
	"github.com/yndnr/syncmesh-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		overrides   []string
	)
	flag.Func("set", "Override a config key, as key=value (repeatable)", func(arg string) error {
		if _, _, err := confloader.ParseOverride(arg); err != nil {
			return err
		}
		overrides = append(overrides, arg)
		return nil
	})
	flag.Parse()

	if *showVersion {
		fmt.Printf("syncmesh-server %s\n", buildinfo.String())
		return nil
	}

	loader := newLoader(*configFile, overrides)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting syncmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := metric.NewRegistry()

	engine, err := storage.NewBadgerEngine(cfg.KVConfig(), slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := engine.RegisterMetrics(registry.Registerer()); err != nil {
		_ = engine.Close()
		return fmt.Errorf("register storage metrics: %w", err)
	}

	nodeCfg := cfg.NodeConfig(slogLogger)
	nodeCfg.Recorder = registry
	nodeCfg.Journal = storage.NewJournal(engine)
	node := replication.NewNode(nodeCfg)
	registry.Registerer().MustRegister(metric.NewCollector(node))

	svc, err := initServices(ctx, cfg, node, slogLogger)
	if err != nil {
		node.Close()
		_ = engine.Close()
		return fmt.Errorf("init services: %w", err)
	}

	api := handler.New(handler.Config{
		Node:           node,
		Switch:         svc.Switch,
		Movement:       svc.Movement,
		Backup:         engine,
		CommandTimeout: cfg.Replication.CommandTimeout,
		Logger:         slogLogger,
	})
	routerCfg := httpserver.RouterConfig{
		Handler:    api,
		Metrics:    registry.Handler(),
		Observer:   registry,
		Logger:     slogLogger,
		RateLimit:  cfg.Server.HTTP.RateLimit,
		RateBurst:  cfg.Server.HTTP.RateBurst,
		AdminToken: cfg.Server.HTTP.AdminToken,
	}
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg), cfg.Server.HTTP.ReadHeaderTimeout)

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, slogLogger)

	// Hooks run in reverse order: listeners first, then the node, then storage.
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return engine.Close()
	})
	shutdownHandler.OnShutdown("node", func(context.Context) error {
		node.Close()
		return nil
	})
	shutdownHandler.OnShutdown("http", httpServer.Shutdown)

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		var err error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	if cfg.Server.RESP.Enabled {
		respCfg, err := cfg.RESPServerConfig()
		if err != nil {
			return err
		}
		respServer := redisserver.New(respCfg, node, svc.Movement, slogLogger)
		shutdownHandler.OnShutdown("resp", respServer.Shutdown)
		go func() {
			if err := respServer.ListenAndServe(ctx); err != nil {
				log.Error("RESP server error", "error", err)
				shutdownHandler.Trigger()
			}
		}()
	}

	if path := cfg.Server.Local.SocketPath; path != "" {
		// File permissions guard the socket, so it skips the admin token.
		localCfg := routerCfg
		localCfg.Metrics = nil
		localCfg.RateLimit = 0
		localCfg.AdminToken = ""
		localServer := localserver.New(path, httpserver.NewRouter(localCfg), slogLogger)
		shutdownHandler.OnShutdown("local", localServer.Shutdown)
		go func() {
			log.Info("local socket listening", "path", path)
			if err := localServer.ListenAndServe(); err != nil {
				log.Error("local server error", "error", err)
				shutdownHandler.Trigger()
			}
		}()
	}

	if path := loader.FilePath(); path != "" {
		watcher, err := watchConfig(loader, path, node, slogLogger)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
				return watcher.Close()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string, overrides []string) *confloader.Loader {
	opts := []confloader.Option{confloader.WithEnvPrefix(confloader.DefaultEnvPrefix)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)
	for _, arg := range overrides {
		key, value, _ := confloader.ParseOverride(arg)
		loader.Override(key, value)
	}
	return loader
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, log.Slog(), nil
}

// Services holds the domain services built on the node.
type Services struct {
	// Host is the headless session that holds authority on the server.
	Host     *replication.Session
	Switch   *service.SwitchService
	Movement *service.MovementService
}

// initServices declares the configured fields and hands their authority to
// the server's headless session.
func initServices(ctx context.Context, cfg *config.ServerConfig, node *replication.Node, log *slog.Logger) (*Services, error) {
	host, err := node.Connect(replication.Headless())
	if err != nil {
		return nil, err
	}

	specs, err := cfg.FieldSpecs()
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if _, err := node.DeclareField(ctx, spec); err != nil {
			return nil, fmt.Errorf("declare field %s: %w", spec.ID, err)
		}
		if cfg.Replication.HostAuthority {
			if _, err := host.ClaimAuthority(spec.ID); err != nil {
				return nil, fmt.Errorf("claim field %s: %w", spec.ID, err)
			}
		}
	}

	svc := &Services{
		Host:     host,
		Movement: service.NewMovementService(node, host, cfg.Replication.CommandTimeout, log),
	}

	if cfg.Switch.Enabled {
		svc.Switch = service.NewSwitchService(node, cfg.SwitchConfig(), log)
		if err := svc.Switch.Declare(ctx); err != nil {
			return nil, fmt.Errorf("declare switch: %w", err)
		}
		if cfg.Replication.HostAuthority {
			if _, err := host.ClaimAuthority(svc.Switch.FieldID()); err != nil {
				return nil, fmt.Errorf("claim switch: %w", err)
			}
		}
	}

	log.Info("services initialized",
		"host_session", host.ID(),
		"fields", len(specs),
		"switch", cfg.Switch.Enabled,
		"host_authority", cfg.Replication.HostAuthority)
	return svc, nil
}

// watchConfig reapplies the hot-reloadable settings (log level and queue
// tuning) whenever the config file changes.
func watchConfig(loader *confloader.Loader, path string, node *replication.Node, log *slog.Logger) (*confloader.Watcher, error) {
	reload := func(string) {
		cfg := config.Default()
		if err := loader.Load(cfg); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Error("reloaded config rejected", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		node.SetQueueConfig(cfg.Replication.QueueConfig())
		log.Info("config reloaded", "path", path, "log_level", cfg.Log.Level)
	}
	return confloader.NewWatcher(path, reload, confloader.WithWatcherLogger(log))
}
