package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parley-app/parley/internal/config"
	"github.com/parley-app/parley/internal/executor"
	"github.com/parley-app/parley/internal/handler"
	"github.com/parley-app/parley/internal/provider"
	chatService "github.com/parley-app/parley/internal/service/chat"
	"github.com/parley-app/parley/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to open message store", zap.Error(err))
	}
	defer st.Close()

	prov, err := newProvider(ctx, cfg.Provider)
	if err != nil {
		logger.Fatal("failed to initialize completion provider", zap.Error(err))
	}

	exec := executor.New(executor.WithTimeout(cfg.Send.Timeout))
	svc := chatService.NewService(st, prov, exec, logger)

	logger.Info("parley backend starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", prov.Name()),
		zap.String("database", cfg.Store.Path))

	router := handler.NewRouter(svc, logger)
	startServer(ctx, cfg.Server, router, logger)
}

// newProvider is the single point where the provider variant is chosen.
func newProvider(ctx context.Context, cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Kind {
	case config.ProviderArk:
		return provider.NewArk(ctx, provider.ArkConfig{
			APIKey:  cfg.ArkAPIKey,
			Model:   cfg.ArkModel,
			BaseURL: cfg.ArkBaseURL,
		})
	default:
		return provider.NewMock(cfg.MockReply, cfg.MockDelay), nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(parsed)
	return zcfg.Build()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
