package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/curation-backend/internal/data/db"
	"github.com/yungbote/curation-backend/internal/data/repos"
	apphttp "github.com/yungbote/curation-backend/internal/http"
	"github.com/yungbote/curation-backend/internal/observability"
	"github.com/yungbote/curation-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    repos.Repos
	Services Services
	Metrics  *observability.Metrics
	Router   *gin.Engine

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	waitWorker   func()
}

func newLogger(mode string) (*logger.Logger, error) {
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// Migrate runs AutoMigrate and seeds the default settings and prompts. It
// needs only the database.
func Migrate() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	defer pg.Close()
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		return fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := db.SeedDefaults(pg.DB()); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}
	log.Info("Migrations applied")
	return nil
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg Config) (*App, error) {
	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	metrics := observability.Init(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	theDB := pg.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	if err := db.SeedDefaults(theDB); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	reposet := repos.New(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	a := &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}
	if cfg.RunServer {
		sqlDB, err := theDB.DB()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		a.Router = wireRouter(log, cfg, metrics, wireHandlers(log, serviceset, sqlDB), wireMiddleware(log, cfg))
	}
	return a, nil
}

// Start launches the background loops: the job worker (polling or
// temporal) and the metrics collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB, 30*time.Second)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis, 30*time.Second)
		}
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}

	switch {
	case a.Services.TemporalWorker != nil:
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	case a.Services.Worker != nil:
		a.waitWorker = a.Services.Worker.Start(ctx)
	}
	return nil
}

// Run serves HTTP until ctx is canceled. Without RUN_SERVER it only waits.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Router == nil {
		a.Log.Info("RUN_SERVER disabled; running jobs only")
		<-ctx.Done()
		return nil
	}
	addr := net.JoinHostPort("", a.Cfg.Port)
	a.Log.Info("HTTP server listening", "addr", addr)
	return apphttp.NewServerFromEngine(a.Router).Run(ctx, addr, a.Cfg.ShutdownTimeout)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.waitWorker != nil {
		a.waitWorker()
		a.waitWorker = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
