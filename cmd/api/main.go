package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-projectrun/db/migrations"
	"backend-projectrun/internal/config"
	"backend-projectrun/internal/db"
	"backend-projectrun/internal/logger"
	"backend-projectrun/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(mode string) (*logger.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.TxQuerier, fs.FS) ([]string, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *logger.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logger.New,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	lg, err := deps.newLogger(cfg.LogMode)
	if err != nil {
		log.Printf("logger init failed, continuing without logs: %v", err)
		lg = logger.Nop()
	}
	defer lg.Sync()

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		lg.Error("postgres connection failed", "error", err)
	}

	if pg != nil && cfg.AutoMigrate {
		applied, err := deps.migrate(context.Background(), pg, migrations.Files)
		if err != nil {
			lg.Error("migrations failed", "error", err, "applied", applied)
		} else if len(applied) > 0 {
			lg.Info("migrations applied", "files", applied)
		}
	}

	rdb := deps.connectRedis(cfg)
	if rdb == nil {
		lg.Warn("redis not configured, using in-process run locks and local broadcasts")
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, lg, signals, nil); err != nil {
		lg.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, lg *logger.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	var store db.TxQuerier
	if pg != nil {
		store = pg
	}
	srv := server.NewServer(cfg, store, rdb, lg)
	defer srv.Close()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
