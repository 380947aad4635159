// Command sessiongate serves the registration, login, session and settings
// HTTP API.
//
// Run:
//
//	SESSIONGATE_JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/sessiongate -config server.yaml
//
// Without -config the server listens on :8080 with an embedded Redis and a
// local SQLite file, reading the secret from SESSIONGATE_JWT_SECRET.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/credential"
	"github.com/MrEthical07/sessiongate/credential/mongodb"
	"github.com/MrEthical07/sessiongate/credential/sqlite"
	"github.com/MrEthical07/sessiongate/httpapi"
	"github.com/MrEthical07/sessiongate/internal/config"
	promexport "github.com/MrEthical07/sessiongate/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or TOML config file")
	addr := flag.String("addr", "", "listen address, overrides http.addr")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger := cfg.Logger()
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func loadConfig(path string) (*config.Server, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = os.Getenv("SESSIONGATE_JWT_SECRET")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Server, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, closeRedis, err := openRedis(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, err := openUserStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	engine, err := sessiongate.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(rdb).
		WithUserStore(users).
		WithLogger(logger).
		Build()
	if err != nil {
		_ = users.Close()
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	opts := httpapi.Options{
		Logger:       logger,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	}
	if cfg.Metrics.Enabled {
		opts.MetricsHandler = promexport.NewPrometheusExporter(engine).Handler()
		opts.MetricsPath = cfg.Metrics.Path
	}
	router := httpapi.NewServer(engine, opts).Router()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRedis(cfg config.RedisConfig, logger *logrus.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Addr
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("starting embedded redis: %w", err)
		}
		addr = mr.Addr()
		logger.WithField("addr", addr).Warn("redis.addr not set, using embedded in-memory redis")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, cleanup, nil
}

func openUserStore(ctx context.Context, cfg config.StoreConfig) (credential.Store, error) {
	if cfg.Driver == config.DriverMongoDB {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongodb.Connect(connectCtx, mongodb.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := sqlite.Open(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
