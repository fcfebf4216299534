package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/contractmind/backend/internal/agents"
	"github.com/contractmind/backend/internal/analytics"
	"github.com/contractmind/backend/internal/chain"
	"github.com/contractmind/backend/internal/chat"
	"github.com/contractmind/backend/internal/config"
	"github.com/contractmind/backend/internal/intent"
	"github.com/contractmind/backend/internal/llm"
	"github.com/contractmind/backend/internal/routes"
	"github.com/contractmind/backend/internal/streams"
	"github.com/contractmind/backend/internal/transactions"
	"github.com/contractmind/backend/internal/txn"
	"github.com/contractmind/backend/internal/ws"
	"github.com/contractmind/backend/migrations"
	"github.com/contractmind/backend/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Finalize(); err != nil {
		fmt.Fprintf(os.Stderr, "finalize configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := openDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := runMigrations(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	chainClient, err := chain.Dial(&cfg.Blockchain, logger)
	if err != nil {
		return fmt.Errorf("connect chain: %w", err)
	}

	llmClient, err := llm.New(&cfg.LLM, logger)
	if err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			return fmt.Errorf("llm client: %w", err)
		}
		logger.Info("llm not configured, keyword parsing only")
	}

	cache, err := agents.NewRedisCache(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis cache: %w", err)
	}
	if cache == nil {
		logger.Info("redis not configured, agent cache disabled")
	}

	sink, err := streams.NewSink(&cfg.Redis, &cfg.Streams, logger)
	if err != nil {
		return fmt.Errorf("streams sink: %w", err)
	}

	agentSys := agents.New(db, logger)
	directory := agents.NewDirectory(agentSys, cache, chainClient, cfg.Redis.CacheTTLDuration(), logger)
	records := transactions.New(db, logger)
	history := chat.NewHistory(db, logger)
	stats := analytics.New(db, logger)

	chatService := chat.NewService(
		directory,
		intent.NewParser(llmClient, logger),
		txn.NewRouter(chainClient, logger),
		txn.NewQueryExecutor(chainClient, logger),
		chainClient,
		history,
		records,
		sink,
		logger,
	)

	registry := ws.NewRegistry(logger)

	router := routes.New(logger)
	router.RegisterRoute(routes.Route{Method: "GET", Pattern: "/healthz", Handler: healthz})
	router.RegisterGroup(agents.NewHandler(agentSys, directory, logger).Routes())
	router.RegisterGroup(transactions.NewHandler(records, logger).Routes())
	router.RegisterGroup(chat.NewHandler(chatService, logger).Routes())
	router.RegisterGroup(analytics.NewHandler(stats, logger).Routes())
	router.RegisterGroup(ws.NewHandler(chatService, registry, logger).Routes())

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      enableCORS(&cfg.CORS, router.Build()),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
		defer cancel()

		err := srv.Shutdown(ctx)
		if publisher, ok := sink.(*streams.Publisher); ok {
			publisher.Wait()
		}
		shutdownError <- err
	}()

	logger.Info("starting server", "addr", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	if err := <-shutdownError; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	timeout := cfg.ConnTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func runMigrations(db *sql.DB, logger *slog.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date")
			return nil
		}
		return err
	}

	logger.Info("database migrations applied")
	return nil
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func enableCORS(cfg *config.CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(cfg.Origins) > 0 {
			origin := r.Header.Get("Origin")
			if slices.Contains(cfg.Origins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}

		if len(cfg.Methods) > 0 {
			w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.Methods, ", "))
		}

		if len(cfg.Headers) > 0 {
			w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.Headers, ", "))
		}

		if cfg.Credentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
