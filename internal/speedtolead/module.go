// Package speedtolead wires the speed-to-lead core: scoring, assignment, SLA
// tracking, notification fan-out and the orchestrator that sequences them.
package speedtolead

import (
	"context"
	"fmt"

	"orengen_backend/internal/events"
	apphttp "orengen_backend/internal/http"
	"orengen_backend/internal/scheduler"
	"orengen_backend/internal/speedtolead/assignment"
	"orengen_backend/internal/speedtolead/dispatch"
	"orengen_backend/internal/speedtolead/handler"
	"orengen_backend/internal/speedtolead/repository"
	"orengen_backend/internal/speedtolead/service"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/config"
	"orengen_backend/platform/logger"
	"orengen_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators owned by other modules.
type Deps struct {
	Pool     *pgxpool.Pool
	Leads    service.LeadStore
	Workload assignment.WorkloadReader
	Counter  assignment.Counter
	Outbox   dispatch.Outbox
	// Scheduler plans deferred SLA checks; nil disables them.
	Scheduler scheduler.SLAScheduler
	Bus       events.Bus
	// Redis shares config cache invalidations between processes; nil keeps
	// invalidation local.
	Redis     *redis.Client
	Validator *validator.Validator
	Log       *logger.Logger
}

// Module is the speed-to-lead bounded context.
type Module struct {
	service      *service.Service
	settings     *settings.Store
	invalidation *settings.RedisInvalidation
	handler      *handler.Handler
	log          *logger.Logger
}

func NewModule(cfg config.SpeedToLeadConfig, deps Deps) (*Module, error) {
	defaults, err := settings.LoadDefaults(cfg.GetSpeedToLeadDefaultsFile())
	if err != nil {
		return nil, fmt.Errorf("speed-to-lead defaults: %w", err)
	}

	repo := repository.New(deps.Pool)
	store := settings.NewStore(repo, defaults, cfg.GetSpeedToLeadConfigCacheTTL())
	var invalidation *settings.RedisInvalidation
	if deps.Redis != nil {
		invalidation = settings.NewRedisInvalidation(deps.Redis, deps.Log)
		store.SetBroadcaster(invalidation)
	}

	svc := service.New(service.Deps{
		Leads:       deps.Leads,
		Assignments: repo,
		Config:      store,
		Selector:    assignment.NewSelector(deps.Counter, deps.Workload, deps.Log),
		Dispatcher:  dispatch.New(deps.Outbox, deps.Bus, deps.Log),
		Scheduler:   deps.Scheduler,
		Bus:         deps.Bus,
		Log:         deps.Log,
	})

	return &Module{
		service:      svc,
		settings:     store,
		invalidation: invalidation,
		handler:      handler.New(svc, store, deps.Validator),
		log:          deps.Log,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string { return "speedtolead" }

// Service exposes the orchestrator.
func (m *Module) Service() *service.Service { return m.service }

// ListenConfigChanges drops cached tenant configs changed by other processes
// until ctx is done. It returns at once when Redis is not configured.
func (m *Module) ListenConfigChanges(ctx context.Context) error {
	if m.invalidation == nil {
		return nil
	}
	return m.invalidation.Listen(ctx, m.settings)
}

// RegisterRoutes registers the speed-to-lead API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/speed-to-lead"))
	m.handler.RegisterAdminRoutes(ctx.Admin.Group("/speed-to-lead"))
}

// RegisterHandlers subscribes the orchestrator to lead and SLA events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	m.service.Subscribe(bus)
	m.log.Info("speed-to-lead module registered event handlers")
}
