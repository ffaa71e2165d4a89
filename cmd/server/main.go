package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopals/internal/config"
	"github.com/HammerMeetNail/lingopals/internal/database"
	"github.com/HammerMeetNail/lingopals/internal/handlers"
	"github.com/HammerMeetNail/lingopals/internal/logging"
	"github.com/HammerMeetNail/lingopals/internal/services"
	"github.com/HammerMeetNail/lingopals/internal/store"
)

const devSecret = "insecure-development-secret"

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error("Application error", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logger := logging.New().SetLevel(level)
	logging.SetDefaultLevel(level)

	if cfg.Auth.Secret == "" {
		logger.Warn("ACCESS_SECRET_KEY not set, using development secret")
		cfg.Auth.Secret = devSecret
	}

	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(cfg, logger)
	case "migrate":
		return migrate(cfg, logger, args)
	case "token":
		return issueToken(cfg, args, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve, migrate or token)", cmd)
	}
}

func serve(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting lingopals server", logging.Fields{
		"env":     cfg.Server.Environment,
		"backend": cfg.Store.Backend,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()

	a := newApp(cfg, logger, b.store, b.redis, b.checks)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", logging.Fields{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.
	a.hub.Shutdown()
	server.SetKeepAlivesEnabled(false)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Could not gracefully shutdown the server", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server stopped")
	return nil
}

func migrate(cfg *config.Config, logger *logging.Logger, args []string) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrations only apply to the %s backend", config.BackendPostgres)
	}

	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch direction {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "status":
	default:
		return fmt.Errorf("unknown migrate direction %q (want up, down or status)", direction)
	}
	if err != nil {
		return fmt.Errorf("running migrations %s: %w", direction, err)
	}

	version, dirty, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	logger.Info("Migration status", logging.Fields{"version": version, "dirty": dirty})
	return nil
}

// issueToken prints an access token for a user id. Local development only.
func issueToken(cfg *config.Config, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: token <user-id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parsing user id: %w", err)
	}
	token, err := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.Issuer, nil).IssueToken(id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// backend holds the selected store and the connections behind it.
type backend struct {
	store   services.RelationshipStore
	redis   *database.RedisDB
	checks  map[string]handlers.HealthChecker
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*backend, error) {
	b := &backend{checks: make(map[string]handlers.HealthChecker)}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		logger.Info("Connecting to PostgreSQL", logging.Fields{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
		})
		db, err := database.NewPostgresDB(cfg.Database.DSN(), int32(cfg.Database.MaxConns), int32(cfg.Database.MinConns))
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.checks["postgres"] = db

		logger.Info("Running database migrations...")
		version, err := database.RunMigrations(cfg.Database.DSN(), cfg.Database.MigrationsPath)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("Migrations completed", logging.Fields{"version": version})

		b.store = store.NewPostgresStore(database.NewPoolAdapter(db.Pool))

	case config.BackendMongo:
		logger.Info("Connecting to MongoDB", logging.Fields{"database": cfg.Mongo.Database})
		mdb, err := database.NewMongoDB(cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		b.closers = append(b.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mdb.Close(closeCtx)
		})
		b.checks["mongo"] = mdb

		ms := store.NewMongoStore(mdb.Database, logger)
		if err := ms.EnsureIndexes(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("creating mongo indexes: %w", err)
		}
		b.store = ms

	case config.BackendMemory:
		logger.Warn("Using in-memory store; data is lost on restart")
		b.store = store.NewMemoryStore()
	}

	if cfg.Redis.Enabled {
		logger.Info("Connecting to Redis", logging.Fields{"addr": cfg.Redis.Addr()})
		rdb, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.checks["redis"] = rdb
		b.redis = rdb
	}

	return b, nil
}
