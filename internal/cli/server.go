package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/bank"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/memory"
	pgstore "timed-quiz-service/internal/infra/postgres"
	redisstore "timed-quiz-service/internal/infra/redis"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// A malformed or empty bank must never serve traffic, so this is fatal.
	questionBank, err := loadBank(ctx, cfg, pool)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}
	slog.Info("question bank loaded", "questions", questionBank.Size())

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.TTLDuration(cfg.Redis.TTL, 6*time.Hour)

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore(sessionTTL)
	}

	var results app.ResultRepository
	if pool != nil {
		results = pgstore.NewResultRepository(pgstore.NewDB(cfg.Postgres.URL))
	} else {
		results = memory.NewResultRepository()
	}

	boardTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
	board := app.NewLeaderboardCache(results, cfg.LeaderboardSize(), boardTTL)
	hub := app.NewLeaderboardHub()
	service := app.NewQuizService(sessions, results, questionBank, board, hub)

	handler := transport.NewHandler(service, hub)
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	handler.Routes(router)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		slog.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadBank(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) (*bank.Bank, error) {
	if cfg.Bank.Source == "postgres" {
		if pool == nil {
			return nil, fmt.Errorf("bank source is postgres but no postgres url configured")
		}
		return pgstore.NewBankLoader(pool).Load(ctx)
	}
	path := cfg.Bank.CSV
	if path == "" {
		path = "questions.csv"
	}
	return bank.LoadCSV(path)
}
