package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"extended-hl-adapter/internal/alerts"
	"extended-hl-adapter/internal/compat"
	"extended-hl-adapter/internal/config"
	"extended-hl-adapter/internal/extended"
	"extended-hl-adapter/internal/logging"
	"extended-hl-adapter/internal/metrics"
	"extended-hl-adapter/internal/recorder"
	"extended-hl-adapter/internal/state"
	"extended-hl-adapter/internal/state/sqlite"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Log)
	log.Info("config loaded", zap.String("path", *configPath))

	if !cfg.Recorder.Enabled {
		log.Error("recorder.enabled is false, nothing to do")
		os.Exit(1)
	}

	creds, err := credentialsFromEnv()
	if err != nil {
		log.Error("credentials incomplete", zap.Error(err))
		os.Exit(1)
	}
	env, err := extended.EnvironmentNamed(cfg.Extended.Environment)
	if err != nil {
		log.Error("environment", zap.Error(err))
		os.Exit(1)
	}
	if cfg.Extended.BaseURL != "" {
		env.BaseURL = cfg.Extended.BaseURL
	}
	if cfg.Extended.StreamURL != "" {
		env.StreamURL = cfg.Extended.StreamURL
	}

	client, err := compat.New(compat.Config{
		Environment: env,
		HTTPTimeout: cfg.Extended.Timeout,
		RunTimeout:  cfg.Bridge.Timeout,
		Slippage:    cfg.Adapter.DefaultSlippage,
		OrderExpiry: cfg.Adapter.OrderExpiry,
	}, creds, log)
	if err != nil {
		log.Error("client init failed", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()
	log.Info("client initialized", zap.String("address", client.Address()), zap.String("environment", env.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prom := metrics.NewPrometheus()
	client.SetMetrics(prom.Metrics)
	if cfg.Metrics.EnabledValue() {
		serveMetrics(ctx, cfg.Metrics, prom, log)
	}

	var stateStore state.Store
	sqliteStore, err := openStore(cfg.State.SQLitePath)
	if err != nil {
		log.Warn("state store unavailable, checkpoints and nonces disabled", zap.Error(err))
	} else {
		defer sqliteStore.Close()
		stateStore = sqliteStore
		if err := client.InitStore(ctx, sqliteStore); err != nil {
			log.Warn("nonce store init failed", zap.Error(err))
		}
	}

	writer, err := recorder.NewWriter(cfg.Recorder, log)
	if err != nil {
		log.Error("recorder writer init failed", zap.Error(err))
		os.Exit(1)
	}
	defer writer.Close()
	writer.SetMetrics(prom.Metrics)
	writer.Start(ctx)

	service := recorder.NewService(cfg.Recorder, client.Info(), writer, stateStore, alerts.NewTelegram(cfg.Telegram, log), log)
	service.SetMetrics(prom.Metrics)

	if cfg.Recorder.UseStream {
		runStream(ctx, env, creds.APIKey, service, log)
	}

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("recorder terminated", zap.Error(err))
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, prom *metrics.Prometheus, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, prom.Handler())
	server := &http.Server{Addr: cfg.Address, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	log.Info("metrics server listening", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
}

// runStream attaches the websocket fill feed on top of the poll loop.
// Failures here degrade to polling only, so they warn instead of exiting.
func runStream(ctx context.Context, env extended.Environment, apiKey string, service *recorder.Service, log *zap.Logger) {
	stream := extended.NewStream(env, apiKey, log)
	if err := stream.Connect(ctx); err != nil {
		log.Warn("stream connect failed, polling only", zap.Error(err))
		return
	}
	if err := stream.SubscribeAccountTrades(ctx); err != nil {
		log.Warn("stream subscribe failed, polling only", zap.Error(err))
		stream.Close()
		return
	}
	go func() {
		defer stream.Close()
		if err := stream.Run(ctx, service.HandleStreamFrame); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("stream ended", zap.Error(err))
		}
	}()
	log.Info("stream subscribed", zap.String("channel", "account.trades"))
}

func credentialsFromEnv() (extended.Credentials, error) {
	apiKey := strings.TrimSpace(os.Getenv("EXTENDED_API_KEY"))
	if apiKey == "" {
		return extended.Credentials{}, errors.New("EXTENDED_API_KEY is required")
	}
	privateKey := strings.TrimSpace(os.Getenv("EXTENDED_PRIVATE_KEY"))
	if privateKey == "" {
		return extended.Credentials{}, errors.New("EXTENDED_PRIVATE_KEY is required")
	}
	vaultRaw := strings.TrimSpace(os.Getenv("EXTENDED_VAULT"))
	if vaultRaw == "" {
		return extended.Credentials{}, errors.New("EXTENDED_VAULT is required")
	}
	vault, err := strconv.ParseInt(vaultRaw, 10, 64)
	if err != nil {
		return extended.Credentials{}, fmt.Errorf("invalid EXTENDED_VAULT: %w", err)
	}
	return extended.Credentials{
		APIKey:     apiKey,
		Vault:      vault,
		PrivateKey: privateKey,
		PublicKey:  strings.TrimSpace(os.Getenv("EXTENDED_PUBLIC_KEY")),
	}, nil
}

func openStore(path string) (*sqlite.Store, error) {
	if path == "" {
		return nil, errors.New("state.sqlite_path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return sqlite.New(path)
}
