package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/sonargate/internal/config"
	"github.com/davidbz/sonargate/internal/diagnostics"
	"github.com/davidbz/sonargate/internal/diagnostics/redis"
	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/http"
	"github.com/davidbz/sonargate/internal/http/middleware"
	"github.com/davidbz/sonargate/internal/observability"
	"github.com/davidbz/sonargate/internal/policy"
	"github.com/davidbz/sonargate/internal/provider/perplexity"
	"github.com/davidbz/sonargate/internal/validation"
)

const shutdownTimeout = 10 * time.Second

func main() {
	container := buildContainer()

	err := container.Invoke(func(
		server *http.Server,
		trail *diagnostics.Logger,
		diagCfg *config.DiagnosticsConfig,
	) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Store failures are already reported on the side channel.
		_ = trail.Initialize(ctx, diagCfg.Debug)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}
	if err := container.Provide(policy.Load); err != nil {
		log.Fatalf("Failed to provide policy constants: %v", err)
	}

	// Observability
	if err := container.Provide(func(cfg *config.DiagnosticsConfig) (*zap.Logger, error) {
		return observability.InitLogger(cfg.Debug)
	}); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Diagnostic trail
	if err := container.Provide(newDiagnosticMirror); err != nil {
		log.Fatalf("Failed to provide diagnostic mirror: %v", err)
	}
	if err := container.Provide(newDiagnosticStore); err != nil {
		log.Fatalf("Failed to provide diagnostic store: %v", err)
	}
	if err := container.Provide(func(store diagnostics.Store, side *zap.Logger) *diagnostics.Logger {
		return diagnostics.NewLogger(store, side)
	}); err != nil {
		log.Fatalf("Failed to provide diagnostic logger: %v", err)
	}
	if err := container.Provide(func(trail *diagnostics.Logger) domain.DiagnosticSink {
		return trail
	}); err != nil {
		log.Fatalf("Failed to provide diagnostic sink: %v", err)
	}

	// Contracts
	if err := container.Provide(func() domain.Validator {
		return validation.NewValidator()
	}); err != nil {
		log.Fatalf("Failed to provide validator: %v", err)
	}

	// Perplexity Provider
	if err := container.Provide(func(
		cfg *perplexity.Config,
		constants policy.Constants,
		trail *diagnostics.Logger,
	) (domain.Provider, error) {
		provider, err := perplexity.NewProvider(*cfg, constants)
		if err != nil {
			trail.Error(context.Background(), diagnostics.MsgConfigError, err)
			return nil, fmt.Errorf("failed to configure Perplexity provider: %w", err)
		}
		return provider, nil
	}); err != nil {
		log.Fatalf("Failed to provide Perplexity provider: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewGatewayService); err != nil {
		log.Fatalf("Failed to provide gateway service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(newMirrorReader); err != nil {
		log.Fatalf("Failed to provide diagnostic mirror reader: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// newDiagnosticMirror returns the Redis copy of the trail, or nil when no
// address is configured.
func newDiagnosticMirror(cfg *config.DiagnosticsConfig, logger *zap.Logger) (*redis.Store, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	mirror, err := redis.NewStore(goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr}), cfg.RedisKey)
	if err != nil {
		return nil, errors.Join(errors.New("failed to configure redis mirror"), err)
	}

	logger.Info("diagnostic redis mirror enabled",
		observability.String("addr", cfg.RedisAddr),
		observability.String("key", cfg.RedisKey))

	return mirror, nil
}

// newDiagnosticStore persists to the log file and, when configured, mirrors
// every entry into Redis.
func newDiagnosticStore(cfg *config.DiagnosticsConfig, mirror *redis.Store, logger *zap.Logger) diagnostics.Store {
	file := diagnostics.NewFileStore(cfg.ResolveLogPath())
	logger.Info("diagnostic trail configured",
		observability.String("path", file.Path()),
		observability.Bool("mirrored", mirror != nil))

	if mirror == nil {
		return file
	}
	return diagnostics.NewMultiStore(file, mirror)
}

// newMirrorReader exposes the mirror to the HTTP layer. A nil store must
// become a nil interface.
func newMirrorReader(mirror *redis.Store) http.EntryReader {
	if mirror == nil {
		return nil
	}
	return mirror
}
