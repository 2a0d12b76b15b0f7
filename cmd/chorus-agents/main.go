package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chorus-hq/chorus-agents/internal/dotenv"
	"github.com/chorus-hq/chorus-agents/pkg/gateway/config"
	gatewayserver "github.com/chorus-hq/chorus-agents/pkg/gateway/server"
	"github.com/chorus-hq/chorus-agents/pkg/llm"
	"github.com/chorus-hq/chorus-agents/pkg/store"
)

type serviceDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error)
	newGenerator func(ctx context.Context, cfg config.Config) (llm.Generator, error)
	newGateway   func(config.Config, *slog.Logger, gatewayserver.Deps) *gatewayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServiceDeps() serviceDeps {
	return serviceDeps{
		loadConfig:   config.LoadFromEnv,
		openStore:    openStore,
		newGenerator: newGenerator,
		newGateway:   gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.Migrate {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("database migrations applied")
		}
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	default:
		logger.Warn("using in-memory store, data will not survive a restart")
		return store.NewMemory(), nil
	}
}

func newGenerator(ctx context.Context, cfg config.Config) (llm.Generator, error) {
	return llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, float32(cfg.GeminiTemperature))
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runService(ctx context.Context, logger *slog.Logger, deps serviceDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil || deps.newGenerator == nil || deps.newGateway == nil {
		return errors.New("missing service dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	gen, err := deps.newGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	gw := deps.newGateway(cfg, logger, gatewayserver.Deps{Store: st, Generator: gen})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "auth_mode", cfg.AuthMode, "store", cfg.Store)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serviceDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "chorus-agents: %v\n", err)
		return 1
	}

	if err := runService(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "chorus-agents: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServiceDeps()))
}
