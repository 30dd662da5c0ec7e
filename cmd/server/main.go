package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/courtledger/internal/auth"
	"github.com/mmynk/courtledger/internal/config"
	"github.com/mmynk/courtledger/internal/metrics"
	"github.com/mmynk/courtledger/internal/middleware"
	"github.com/mmynk/courtledger/internal/notify"
	"github.com/mmynk/courtledger/internal/service"
	"github.com/mmynk/courtledger/internal/storage"
	"github.com/mmynk/courtledger/internal/storage/memory"
	"github.com/mmynk/courtledger/internal/storage/postgres"
	"github.com/mmynk/courtledger/internal/storage/sqlite"
	"github.com/mmynk/courtledger/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.IsProduction())

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pair, err := cfg.Pair()
	if err != nil {
		return fmt.Errorf("failed to build participant pair: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", cfg.DataBackend)

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()
	slog.Info("Notifier initialized", "backend", cfg.NotifyBackend)

	revoker, closeRevoker, err := openRevoker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRevoker()

	authenticator, err := auth.NewPasswordAuthenticator(pair, cfg.PasswordHashes())
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	ledger := service.NewLedgerService(store, pair, cfg.Location(), publisher, m)
	if _, err := ledger.Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to rebuild totals from the event log: %w", err)
	}
	authSvc := service.NewAuthService(authenticator, jwtManager, revoker, pair, logger)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(jwtManager, revoker, service.PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(service.NewLedgerServiceHandler(ledger, interceptors))
	mux.Handle(service.NewAuthServiceHandler(authSvc, interceptors))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := metrics.NewServer(fmt.Sprintf(":%d", cfg.MetricsPort), reg, store.Ping)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Connect server starting", "address", api.Addr, "participants", pair.Keys(), "timezone", cfg.Timezone)
		return serve(api)
	})
	g.Go(func() error {
		slog.Info("Metrics server starting", "address", metricsSrv.Addr)
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(api.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		slog.Warn("Using in-memory storage; the ledger is lost on restart")
		return memory.New(), nil
	case config.BackendPostgres:
		store, err := postgres.New(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres storage: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite storage: %w", err)
		}
		return store, nil
	}
}

func openPublisher(cfg *config.Config, logger *slog.Logger) (notify.Publisher, error) {
	switch cfg.NotifyBackend {
	case config.NotifyLog:
		return notify.NewLogPublisher(logger), nil
	case config.NotifyAMQP:
		p, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize amqp notifier: %w", err)
		}
		return p, nil
	case config.NotifyKafka:
		p, err := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize kafka notifier: %w", err)
		}
		return p, nil
	default:
		return notify.Noop{}, nil
	}
}

func openRevoker(ctx context.Context, cfg *config.Config) (auth.Revoker, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("Token revocation kept in memory")
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	rdb, err := auth.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("Token revocation kept in redis", "address", cfg.RedisAddr)
	return auth.NewRedisRevoker(rdb), func() { rdb.Close() }, nil
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		slog.Debug("Request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
