package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clipd/internal/config"
	"clipd/internal/engine"
	"clipd/internal/history"
	"clipd/internal/imaging"
	"clipd/internal/ipc"
	"clipd/internal/logging"
	"clipd/internal/paste"
	"clipd/internal/permission"
	"clipd/internal/sysclip"
	"clipd/internal/vault"
	"clipd/internal/watcher"
)

// run wires the daemon together and blocks until a shutdown signal.
func run(configPath string) error {
	if configPath == "" {
		configPath = config.ConfigPath()
	}

	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()
	log := logger.Logger

	if created {
		log.Info("wrote default configuration", "path", configPath)
	}

	dataDir := config.DataDir()
	release, err := acquireLock(filepath.Join(dataDir, "clipd.lock"))
	if err != nil {
		return err
	}
	defer release()

	log.Info("starting clipd", "version", Version, "data_dir", dataDir)

	dev, err := sysclip.NewLive()
	if err != nil {
		return fmt.Errorf("init clipboard: %w", err)
	}

	gateway := vault.New(vault.SystemKeyring(dataDir), logger.WithComponent("vault"))

	store, err := history.Open(cfg.History.Path, history.Options{
		Cap:       cfg.History.Cap,
		Decrypter: gateway,
		Logger:    logger.WithComponent("history"),
	})
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	images := imaging.New(imaging.Config{
		MaxBytes:     int64(cfg.Images.MaxBytes),
		MaxEdge:      uint(cfg.Images.MaxEdge),
		ThumbEdge:    uint(cfg.Images.ThumbEdge),
		CacheEntries: cfg.Images.CacheEntries,
		CacheBytes:   int64(cfg.Images.CacheBytes),
		Workers:      cfg.Images.Workers,
	})

	watch := watcher.New(dev,
		time.Duration(cfg.Watcher.PollIntervalMs)*time.Millisecond,
		logger.WithComponent("watcher"))

	gate := permission.New(permission.SystemProbe(), dataDir, Version,
		logger.WithComponent("permission"))
	gate.EnsurePrompted()

	deliver := paste.New(dev,
		paste.RobotFocuser{}, paste.RobotInjector{}, paste.ScriptFallback{},
		paste.NopHotkeys{}, watch, gate,
		paste.Config{
			SettleDelay: time.Duration(cfg.Paste.SettleDelayMs) * time.Millisecond,
			Timeout:     time.Duration(cfg.Paste.TimeoutMs) * time.Millisecond,
		},
		logger.WithComponent("paste"))

	eng := engine.New(store, gateway, images, watch, deliver,
		paste.RobotFocuser{}, logger.WithComponent("engine"))
	eng.Start()
	defer eng.Stop()

	if cfg.Encryption.Enabled {
		if err := <-eng.EnableEncryption(); err != nil {
			log.Warn("encryption not enabled at startup", "error", err)
		}
	}

	var server *ipc.Server
	if cfg.IPC.Enabled {
		server, err = startIPC(cfg, eng, gate, logger)
		if err != nil {
			return fmt.Errorf("start ipc: %w", err)
		}
		defer server.Stop()

		events, cancelEvents := eng.Subscribe()
		defer cancelEvents()
		go func() {
			for ev := range events {
				server.Broadcast(ev)
			}
		}()
	}

	loader := config.NewLoader(configPath)
	if _, err := loader.Load(); err != nil {
		log.Warn("config reload watcher disabled", "error", err)
	} else {
		loader.OnChange(func(next *config.Config) {
			watch.SetInterval(time.Duration(next.Watcher.PollIntervalMs) * time.Millisecond)
			store.SetCap(next.History.Cap)
			log.Info("configuration reloaded",
				"poll_interval_ms", next.Watcher.PollIntervalMs,
				"history_cap", next.History.Cap)
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config reload watcher disabled", "error", err)
		} else {
			defer loader.Close()
			go func() {
				for err := range loader.Errors() {
					log.Warn("config reload rejected", "error", err)
				}
			}()
		}
	}

	log.Info("clipd running",
		"poll_interval_ms", cfg.Watcher.PollIntervalMs,
		"history_cap", cfg.History.Cap,
		"encryption", eng.EncryptionEnabled(),
		"permission_granted", gate.IsGranted())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	log.Info("shutting down", "signal", sig.String())
	return nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = cfg.Logging.Output
	lc.FilePath = cfg.Logging.FilePath
	return logging.New(lc)
}

func startIPC(cfg *config.Config, eng *engine.Engine, gate *permission.Gate,
	logger *logging.Logger) (*ipc.Server, error) {
	serverCfg := ipc.DefaultServerConfig(config.DataDir())
	serverCfg.Version = Version
	if cfg.IPC.SocketPath != "" {
		serverCfg.SocketPath = cfg.IPC.SocketPath
	}
	if cfg.IPC.MaxConnections > 0 {
		serverCfg.MaxConnections = cfg.IPC.MaxConnections
	}
	if cfg.IPC.TimeoutSec > 0 {
		serverCfg.ReadTimeout = time.Duration(cfg.IPC.TimeoutSec) * time.Second
	}

	handler := ipc.NewCommandHandler(eng, Version, gate.IsGranted)
	server := ipc.NewServer(serverCfg, handler, logger.WithComponent("ipc"))
	if err := server.Start(); err != nil {
		return nil, err
	}
	return server, nil
}
