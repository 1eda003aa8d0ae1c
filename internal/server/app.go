// Package server wires the configured components together and runs the
// HTTP, gRPC health, indexing and cleanup loops until the process is
// signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/foxhound/internal/logging"
	"github.com/dmitrijs2005/foxhound/internal/server/auth"
	"github.com/dmitrijs2005/foxhound/internal/server/cleanup"
	"github.com/dmitrijs2005/foxhound/internal/server/config"
	"github.com/dmitrijs2005/foxhound/internal/server/handlers"
	"github.com/dmitrijs2005/foxhound/internal/server/httpapi"
	"github.com/dmitrijs2005/foxhound/internal/server/indexing"
	"github.com/dmitrijs2005/foxhound/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/foxhound/internal/server/rpc"
	"github.com/dmitrijs2005/foxhound/internal/server/services"
	"github.com/dmitrijs2005/foxhound/internal/server/storage"
	"github.com/dmitrijs2005/foxhound/internal/server/tokenstore"

	gs "github.com/dmitrijs2005/foxhound/internal/server/grpc"
)

// indexingBuffer is how many finished files may wait for an indexing
// worker before new ones are dropped.
const indexingBuffer = 256

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	tokenStore *tokenstore.RedisStore
	tokens     *auth.TokenService
	storage    storage.Storage
	queue      *indexing.Queue
	scheduler  *cleanup.Scheduler
	dispatcher *rpc.Dispatcher
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	warnInsecureDefaults(ctx, c, logger)

	st, err := storage.New(ctx, storage.Options{
		URLPrefix:          c.StorageURLPrefix,
		SignedURLValidity:  c.SignedURLValidity,
		S3Region:           c.S3Region,
		S3AccessKey:        c.S3AccessKey,
		S3SecretKey:        c.S3SecretKey,
		S3BaseEndpoint:     c.S3BaseEndpoint,
		GCSCredentialsFile: c.GCSCredentialsFile,
		AzureAccount:       c.AzureAccount,
		AzureKey:           c.AzureKey,
		LocalRoot:          c.LocalStorageRoot,
		PublicBaseURL:      c.PublicBaseURL,
		SigningKey:         c.AppKey,
	})
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	ts := tokenstore.NewRedisStore(c.RedisAddr, c.RedisPassword, c.RedisDB, c.RedisTimeout)
	tokens, err := auth.NewTokenService(ts, c.AppKey, c.TokenValidity)
	if err != nil {
		return nil, fmt.Errorf("auth init error: %w", err)
	}
	if err := ts.Ping(ctx); err != nil {
		// The store connects lazily, so this is not fatal.
		logger.Warn(ctx, "token store unreachable", "address", c.RedisAddr, "error", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager(c.StaleAfter)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	queue := indexing.NewQueue(indexing.NewPlaintextIndexer(db, rm, st), c.IndexingWorkers, indexingBuffer, logger)

	us := services.NewUploadService(db, rm, st, queue, c, logger)
	fs := services.NewFileService(db, rm, st)

	registry := rpc.NewRegistry()
	handlers.New(us, fs, logger).Register(registry)

	sweeper := cleanup.NewSweeper(db, rm, st, c.BuriedAfter, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		tokenStore: ts,
		tokens:     tokens,
		storage:    st,
		queue:      queue,
		scheduler:  cleanup.NewScheduler(sweeper, c.CleanupInterval, logger),
		dispatcher: rpc.NewDispatcher(registry, logger, c.Debug),
	}, nil
}

func warnInsecureDefaults(ctx context.Context, c *config.Config, logger logging.Logger) {
	if c.AppKey == config.DevelopmentAppKey {
		logger.Warn(ctx, "app_key is the built-in development key; set FOXHOUND_APP_KEY before exposing this server")
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var blobs httpapi.Blobs
	if ls, ok := app.storage.(*storage.LocalStorage); ok {
		blobs = ls
	}

	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.tokens, app.config.GlobalSecret, app.dispatcher, blobs)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = app.queue.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.scheduler.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}

func (app *App) close(ctx context.Context) {
	if err := app.tokenStore.Close(); err != nil {
		app.logger.Warn(ctx, "closing token store", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "closing database", "error", err)
	}
}
