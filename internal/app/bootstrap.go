// Package app is the composition root, kept orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"domainhub.io/hubd/internal/api/handlers"
	"domainhub.io/hubd/internal/config"
	"domainhub.io/hubd/internal/events"
	"domainhub.io/hubd/internal/infrastructure"
	"domainhub.io/hubd/internal/pkg/worker"
	"domainhub.io/hubd/internal/repository"
	"domainhub.io/hubd/internal/service"
	"domainhub.io/hubd/internal/stream"
)

// Application holds composed application dependencies.
type Application struct {
	Config *config.Config
	Router *gin.Engine
	DB     *pgxpool.Pool
	Broker *events.Broker
	Hub    *stream.Hub
	Pool   *worker.Pool
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := infrastructure.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database pool: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := infrastructure.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	pool, err := worker.NewPool(ctx, cfg.Worker.FanoutPoolSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pool: %w", err)
	}

	broker := events.NewBroker()
	store := repository.NewPostgresStore(db)
	hub := stream.NewHub(cfg.Stream, broker, pool)

	ledger := service.NewAssignmentService(store, broker)
	h := handlers.New(
		service.NewServerService(store, broker),
		service.NewDomainService(store, broker),
		ledger,
		service.NewPlannerService(store, ledger),
		service.NewGroupService(store, broker),
		service.NewLockRegistry(store, broker),
		service.NewStatsService(store),
		service.NewExportService(store),
		hub,
	)

	return &Application{
		Config: cfg,
		Router: newRouter(cfg, h),
		DB:     db,
		Broker: broker,
		Hub:    hub,
		Pool:   pool,
	}, nil
}
