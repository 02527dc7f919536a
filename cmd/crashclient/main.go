package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/crashline/internal/balance"
	"github.com/rickgao/crashline/internal/bet"
	"github.com/rickgao/crashline/internal/config"
	"github.com/rickgao/crashline/internal/connection"
	"github.com/rickgao/crashline/internal/database"
	"github.com/rickgao/crashline/internal/game"
	"github.com/rickgao/crashline/internal/metrics"
	"github.com/rickgao/crashline/internal/status"
	"github.com/rickgao/crashline/internal/version"
	"github.com/rickgao/crashline/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/crashclient.local.yaml", "path to config file")
	envFiles := flag.String("env", ".env", "comma-separated .env files loaded before the config")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "log as JSON")
	flag.Parse()

	// Set up structured logging
	opts := &slog.HandlerOptions{Level: parseLevel(*logLevel)}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if *logJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("starting crashclient",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := config.LoadEnvFiles(strings.Split(*envFiles, ",")...); err != nil {
		logger.Error("failed to load env files", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"ws_url", cfg.API.WSURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("crashclient failed", "error", err)
		os.Exit(1)
	}
	logger.Info("crashclient stopped")
}

func run(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var checks []status.Option

	// Balance: REST refresh plus optional Redis cache
	var cache balance.Cache
	if cfg.Cache.Enabled {
		rc, err := balance.NewRedisCache(ctx, balance.RedisConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Key:      "crashline:balance:" + cfg.Instance.ID,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		cache = rc
		checks = append(checks, status.WithHealthCheck("cache", rc.Health))
		logger.Info("balance cache connected", "addr", cfg.Cache.Addr)
	}

	var fetcher balance.Fetcher
	if cfg.API.RestURL != "" {
		fetcher = balance.NewClient(cfg.API.RestURL, cfg.API.Token,
			balance.WithLogger(logger),
			balance.WithTimeout(cfg.API.Timeout),
			balance.WithRetries(cfg.API.MaxRetries, time.Second),
		)
	}

	wallet := balance.NewTracker(balance.Config{
		Interval: cfg.Balance.RefreshInterval,
		Timeout:  cfg.Balance.RefreshTimeout,
	}, fetcher, cache, m, logger)

	// Audit trail
	var recorder game.Recorder
	var audit *writer.Audit
	if cfg.Database.Enabled {
		db := cfg.Database.Audit
		logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

		schema, err := database.Migrate(db)
		if err != nil {
			return err
		}
		logger.Info("audit schema ready", "version", schema)

		pool, err := database.Connect(ctx, db)
		if err != nil {
			return err
		}
		defer pool.Close()

		audit = writer.NewAudit(writer.AuditConfig{
			InstanceID: cfg.Instance.ID,
			Writer: writer.WriterConfig{
				BatchSize:     cfg.Writers.BatchSize,
				FlushInterval: cfg.Writers.FlushInterval,
			},
			BufferSize: cfg.Writers.BufferSize,
		}, pool, m, logger)
		recorder = audit
		checks = append(checks, status.WithHealthCheck("database", func(ctx context.Context) map[string]string {
			return database.Health(ctx, pool)
		}))
	}

	client := game.New(gameConfig(cfg), game.Deps{
		Logger:   logger,
		Metrics:  m,
		Balance:  wallet,
		Recorder: recorder,
	})

	if err := wallet.Start(ctx); err != nil {
		return err
	}
	defer stopWithTimeout(wallet.Stop)

	if audit != nil {
		if err := audit.Start(ctx); err != nil {
			return err
		}
		defer stopWithTimeout(audit.Stop)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return client.Run(gctx)
	})

	if cfg.Status.Enabled {
		opts := append(checks, status.WithLogger(logger))
		metricsPath := ""
		if m != nil {
			opts = append(opts, status.WithMetrics(m.Handler()))
			metricsPath = cfg.Metrics.Path
		}
		srv := status.New(status.Config{Addr: cfg.Status.Addr, MetricsPath: metricsPath}, client, opts...)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if err := client.Connect(cfg.API.WSURL, cfg.API.Token); err != nil {
		cancel()
		g.Wait()
		return err
	}

	logger.Info("crashclient running",
		"instance_id", cfg.Instance.ID,
		"status_addr", cfg.Status.Addr,
	)

	err := g.Wait()
	client.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func gameConfig(cfg *config.ClientConfig) game.Config {
	fingerprint := cfg.Betting.DeviceFingerprint
	if fingerprint == "" {
		fingerprint = uuid.NewString()
	}

	return game.Config{
		Session: connection.SessionConfig{
			ReconnectBase:   cfg.Session.ReconnectBase,
			ReconnectStep:   cfg.Session.ReconnectStep,
			ReconnectJitter: cfg.Session.ReconnectJitter,
			ReconnectCap:    cfg.Session.ReconnectCap,
			DisconnectGrace: cfg.Session.DisconnectGrace,
			Client: connection.ClientConfig{
				HandshakeTimeout: cfg.Session.HandshakeTimeout,
				PingInterval:     cfg.Session.PingInterval,
				PingTimeout:      cfg.Session.PingTimeout,
				WriteTimeout:     cfg.Session.WriteTimeout,
				BufferSize:       cfg.Session.BufferSize,
			},
		},
		Bet: bet.Config{
			MinStake:          cfg.Betting.MinStake,
			MaxStake:          cfg.Betting.MaxStake,
			SubmitInterval:    cfg.Betting.SubmitInterval,
			DeviceFingerprint: fingerprint,
		},
		AutoCashoutCooldown: cfg.Betting.AutoCashoutCooldown,
		FeedCapacity:        cfg.Feed.Capacity,
		HistoryCapacity:     cfg.History.Capacity,
	}
}

func stopWithTimeout(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
