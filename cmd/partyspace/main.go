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

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"partyspace/internal/app/commands"
	bookingapp "partyspace/internal/app/handlers/booking"
	"partyspace/internal/app/locks"
	"partyspace/internal/app/middleware"
	"partyspace/internal/app/notify"
	"partyspace/internal/app/policies"
	"partyspace/internal/app/queries"
	"partyspace/internal/app/uow"
	domainlistings "partyspace/internal/domain/listings"
	domainuser "partyspace/internal/domain/user"
	"partyspace/internal/infra/broker/kafka"
	"partyspace/internal/infra/config"
	mongostore "partyspace/internal/infra/db/mongo"
	"partyspace/internal/infra/db/postgres"
	"partyspace/internal/infra/fixtures"
	ginserver "partyspace/internal/infra/http/gin"
	"partyspace/internal/infra/obs"
	"partyspace/internal/infra/redislock"
	"partyspace/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: app.metrics}, obs.HealthHandlers{
		Checks:  app.checks,
		Timeout: 2 * time.Second,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "directory", cfg.DirectoryDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type listingDirectory interface {
	domainlistings.Directory
	fixtures.ListingWriter
}

type userDirectory interface {
	domainuser.Directory
	fixtures.UserWriter
}

type application struct {
	handlers   ginserver.Handlers
	metrics    *obs.Metrics
	checks     map[string]obs.Check
	dispatcher *notify.Dispatcher
	closers    []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		metrics: obs.NewMetrics(nil),
		checks:  make(map[string]obs.Check),
	}

	var mongoClient *mongostore.Client
	if cfg.UsesMongo() {
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		mongoClient = client
		app.checks["mongo"] = client.Ping
		app.closers = append(app.closers, client.Close)
	}

	factory, err := app.bookingStore(ctx, cfg, mongoClient)
	if err != nil {
		return nil, err
	}

	var (
		listings listingDirectory
		users    userDirectory
	)
	if cfg.DirectoryDriver == config.DriverMongo {
		listings = mongostore.NewListingDirectory(mongoClient.DB)
		users = mongostore.NewUserDirectory(mongoClient.DB)
	} else {
		listings = memory.NewListingDirectory()
		users = memory.NewUserDirectory()
	}
	if n, err := fixtures.LoadListings(ctx, cfg.ListingsFixtures, listings, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingsFixtures)
	} else {
		logger.Info("listing fixtures loaded", "count", n, "path", cfg.ListingsFixtures)
	}
	if n, err := fixtures.LoadUsers(ctx, cfg.UsersFixtures, users, logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err, "path", cfg.UsersFixtures)
	} else {
		logger.Info("user fixtures loaded", "count", n, "path", cfg.UsersFixtures)
	}

	var locker locks.ListingLocker = memory.NewKeyedLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisLocker := redislock.New(client, redislock.Options{TTL: cfg.LockTTL, Logger: logger})
		locker = redisLocker
		app.checks["redis"] = redisLocker.Ping
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	}

	var sink policies.Notifier = notify.LogSink{Logger: logger}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		sink = kafka.NewNotificationSink(producer, cfg.NotificationsTopic)
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	}
	app.dispatcher = notify.NewDispatcher(sink, notify.Options{
		Workers:  cfg.NotifyWorkers,
		Queue:    cfg.NotifyQueue,
		Timeout:  cfg.NotifyTimeout,
		Logger:   logger,
		Observer: app.metrics.NotificationOutcome,
	})

	var idStore middleware.IdempotencyStore = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	if mongoClient != nil {
		store, err := mongostore.NewIdempotencyStore(ctx, mongoClient.DB, cfg.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("prepare idempotency store: %w", err)
		}
		idStore = store
	}

	commandBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(commandBus, queryBus, bookingapp.Deps{
		UoWFactory: factory,
		Listings:   listings,
		Users:      users,
		Locker:     locker,
		Notifier:   app.dispatcher,
		Metrics:    app.metrics,
		Logger:     logger,
	})

	validator := middleware.NewStructValidator()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Logging(logger),
		middleware.Classify(),
		middleware.Validation(validator),
		middleware.Deadline(cfg.StoreTimeout),
		middleware.Idempotency(idStore, nil, logger),
	)
	queryBusWithMiddleware := middleware.ChainQueries(
		queryBus,
		middleware.QueryLogging(logger),
		middleware.QueryClassify(),
		middleware.QueryValidation(validator),
		middleware.QueryDeadline(cfg.StoreTimeout),
	)

	app.handlers = ginserver.Handlers{
		Booking:     ginserver.BookingHandler{Commands: commandBusWithMiddleware, Logger: logger},
		Me:          ginserver.MeHandler{Queries: queryBusWithMiddleware, Logger: logger},
		HostBooking: ginserver.HostBookingHandler{Queries: queryBusWithMiddleware, Logger: logger},
		Metrics:     promhttp.Handler(),
	}
	return app, nil
}

func (a *application) bookingStore(ctx context.Context, cfg config.Config, mongoClient *mongostore.Client) (uow.UoWFactory, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		repo := mongostore.NewBookingRepository(mongoClient.DB)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure booking indexes: %w", err)
		}
		return mongostore.Factory{DB: mongoClient.DB, Bookings: repo}, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.checks["postgres"] = db.PingContext
		a.closers = append(a.closers, closeSQL(db))
		return postgres.Factory{DB: db, Bookings: postgres.NewBookingRepository(db)}, nil
	default:
		return memory.Factory{Bookings: memory.NewBookingStore()}, nil
	}
}

// close drains pending notifications before releasing the connections they may use.
func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			logger.Warn("notification queue not drained", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown close failed", "error", err)
		}
	}
}

func closeSQL(db *sqlx.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}
