package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/api"
	"github.com/threaded-comments-api/internal/config"
	"github.com/threaded-comments-api/internal/database"
	"github.com/threaded-comments-api/internal/notify"
	"github.com/threaded-comments-api/internal/ratelimit"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/service"
	"github.com/threaded-comments-api/internal/spam"
	"github.com/threaded-comments-api/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting threaded comments API server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, level counts will not be cached")
		} else {
			repos.Comment = repository.NewCachedCommentRepo(repos.Comment, rdb, cfg.Redis.TTL, log)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Level count cache enabled")
		}
		cancel()
	}

	// Initialize moderation collaborators
	deps := service.Dependencies{
		Limiter:    ratelimit.New(),
		Classifier: spam.NewClassifier(cfg.Moderation.Audit, cfg.Moderation.ForbiddenWords, newChecker(cfg, log)),
	}

	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.NewPublisher(cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.Queue, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message broker")
		}
		defer publisher.Close()
		deps.Notifier = publisher
	}

	// Initialize services
	services := service.NewServices(repos, cfg, deps, log)

	// Start background job processor
	go services.Job.StartProcessor(context.Background())
	log.Info().Msg("Background job processor started")

	// Initialize router
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(services, db, cfg, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop job processor
	services.Job.StopProcessor()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// newChecker returns the Akismet client when a key is configured, nil otherwise.
// A failed boot check is only logged: the client verifies again on every
// submission until the key is accepted, so outages fail comments instead of
// letting them through.
func newChecker(cfg *config.Config, log zerolog.Logger) spam.Checker {
	if !cfg.Akismet.Enabled() {
		return nil
	}

	client := spam.NewAkismetClient(cfg.Akismet.Key, cfg.Site.URL, cfg.Akismet.Endpoint, cfg.Akismet.Timeout, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Akismet.Timeout)
	defer cancel()
	if err := client.VerifyKey(ctx); err != nil {
		log.Warn().Err(err).Msg("Akismet key not verified at boot, submissions will retry it")
	}
	return client
}
