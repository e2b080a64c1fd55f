// Server runs the movie-auth HTTP API and the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"movie-auth/backend/internal/audit"
	auditrepo "movie-auth/backend/internal/audit/repository"
	"movie-auth/backend/internal/config"
	"movie-auth/backend/internal/db"
	"movie-auth/backend/internal/db/migrate"
	healthhandler "movie-auth/backend/internal/health/handler"
	identityservice "movie-auth/backend/internal/identity/service"
	"movie-auth/backend/internal/metrics"
	"movie-auth/backend/internal/platform/logging"
	"movie-auth/backend/internal/policy/engine"
	"movie-auth/backend/internal/security"
	"movie-auth/backend/internal/server"
	"movie-auth/backend/internal/server/middleware"
	"movie-auth/backend/internal/telemetry"
	teleotel "movie-auth/backend/internal/telemetry/otel"
	"movie-auth/backend/internal/telemetry/producer"
	"movie-auth/backend/internal/user/repository"
	userservice "movie-auth/backend/internal/user/service"
)

const shutdownTimeout = 15 * time.Second

// userStore is what the server needs from a credential store backend.
type userStore interface {
	repository.Repository
	PingContext(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	secret, err := cfg.TokenSecret()
	if err != nil {
		return err
	}

	providers, err := teleotel.NewProviders(ctx, teleotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	store, auditRepository, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("credential store ready", "backend", cfg.StoreBackend)

	policy, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	emitter, closeEmitter, err := newEmitter(cfg, providers)
	if err != nil {
		return err
	}
	defer closeEmitter()

	var auditLogger audit.AuditLogger
	if auditRepository != nil {
		auditLogger = audit.NewLogger(auditRepository, middleware.ClientIPFromContext)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	tokens := security.NewTokenProvider(secret, cfg.JWTIssuer)
	ttls := identityservice.TTLs{Access: cfg.AccessTTL(), Refresh: cfg.RefreshTTL(), Long: cfg.LongTTL()}
	authSvc := identityservice.NewAuthService(store, security.NewHasher(cfg.BcryptCost), tokens, ttls, auditLogger, metrics.Recorder{})
	health := healthhandler.NewServer(store, policy)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.Deps{
			Auth:          authSvc,
			Profiles:      userservice.NewProfileService(store, policy),
			Authenticator: middleware.NewAuthenticator(tokens),
			Health:        health,
			Gatherer:      reg,
			Telemetry:     emitter,
			Audit:         auditLogger,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcSrv := server.NewGRPCServer(health)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()

	// Let in-flight async telemetry finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", "error", err)
	}
	logger.Info("stopped")
	return serveErr
}

// openStore opens the configured credential store. The audit repository is only available on postgres.
func openStore(ctx context.Context, cfg *config.Config) (userStore, auditrepo.Repository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db: %w", err)
		}
		if cfg.AutoMigrate {
			if err := migrate.Run(cfg.DatabaseURL, migrate.DirectionUp); err != nil {
				_ = conn.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
			slog.InfoContext(ctx, "migrations applied")
		}
		closeFn := func() { _ = conn.Close() }
		return repository.NewPostgresRepository(conn), auditrepo.NewPostgresRepository(conn), closeFn, nil

	case config.StoreBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		store := repository.NewRedisRepository(client, cfg.RedisKeyPrefix)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.PingContext(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
		return store, nil, func() { _ = client.Close() }, nil

	default:
		slog.WarnContext(ctx, "using in-memory credential store; accounts are lost on restart")
		return repository.NewMemoryRepository(), nil, func() {}, nil
	}
}

// newEmitter sends request telemetry to Kafka when brokers are configured, else to the OTel log pipeline.
func newEmitter(cfg *config.Config, providers *teleotel.Providers) (telemetry.EventEmitter, func(), error) {
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		p, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry: %w", err)
		}
		return p, func() { _ = p.Close() }, nil
	}
	return teleotel.NewEventEmitter(providers.LoggerProvider), func() {}, nil
}
