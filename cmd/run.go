package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sportsbook/api"
	"sportsbook/config"
	"sportsbook/database"
	"sportsbook/events"
	"sportsbook/metrics"
	"sportsbook/notify"
	"sportsbook/repository"
	"sportsbook/scoreprovider"
	"sportsbook/service"
	"sportsbook/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting sportsbook...")

	// Initialize database connection
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Score provider, with redis in front when configured
	var provider service.ScoreProvider = scoreprovider.NewHTTPProvider(cfg.ScoreProviderURL, cfg.ScoreFetchTimeout)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, score cache will fall through to provider")
		}
		provider = scoreprovider.NewCachedProvider(provider, scoreprovider.NewRedisStore(rdb), cfg.ScoreCacheTTL)
		log.WithField("addr", cfg.RedisAddr).Info("Score cache enabled")
	}

	// Initialize services
	accountService := service.NewAccountService(uowFactory, cfg)
	wagerService := service.NewWagerService(uowFactory)
	eventService := service.NewEventService(uowFactory)
	settlementService := service.NewSettlementService(uowFactory, provider, cfg)

	// Settlement notifications
	if len(cfg.KafkaBrokers) > 0 {
		writer := notify.NewWriter(cfg.KafkaBrokers, cfg.KafkaSettlementTopic)
		defer func() {
			if err := writer.Close(); err != nil {
				log.WithError(err).Warn("Failed to close kafka writer")
			}
		}()
		notify.NewKafkaPublisher(writer).Subscribe(eventBus)
		log.WithFields(log.Fields{
			"brokers": cfg.KafkaBrokers,
			"topic":   cfg.KafkaSettlementTopic,
		}).Info("Settlement notifications enabled")
	}

	metricsServer := metrics.StartServer(cfg.MetricsAddr, db.Healthy)
	log.WithField("addr", cfg.MetricsAddr).Info("Metrics server listening")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(accountService, wagerService, eventService, settlementService).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.SettlementPollSchedule != "" {
		poller := worker.NewSettlementPoller(eventService, settlementService, cfg.SettlementPollSchedule, cfg.SettlementWorkers)
		stopPoller, err := poller.Start(ctx)
		if err != nil {
			return err
		}
		defer stopPoller()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down sportsbook...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown incomplete")
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown incomplete")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("Shutdown completed")
	return nil
}

func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
