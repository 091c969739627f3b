// Package leads provides the lead management bounded context module: the
// ingestion boundary that stores leads and announces them to speed-to-lead.
package leads

import (
	"orengen_backend/internal/events"
	apphttp "orengen_backend/internal/http"
	"orengen_backend/internal/leads/handler"
	"orengen_backend/internal/leads/repository"
	"orengen_backend/internal/leads/service"
	"orengen_backend/platform/logger"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	repo    *repository.Repository
	service *service.Service
	handler *handler.Handler
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)

	return &Module{
		repo:    repo,
		service: svc,
		handler: handler.New(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Repository exposes lead persistence to speed-to-lead, which reads leads,
// writes scores and owners and counts open leads per user.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts lead routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	var ingest gin.HandlerFunc
	if ctx.IngestRateLimiter != nil {
		ingest = ctx.IngestRateLimiter.RateLimit()
	}
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"), ingest)
}
