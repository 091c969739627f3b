package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/service"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/internal/speedtolead/sla"
	"orengen_backend/internal/speedtolead/transport"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/httpkit"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultMetricsWindowDays = 30

// Orchestrator is the speed-to-lead API the handler exposes.
type Orchestrator interface {
	ProcessNewLead(ctx context.Context, tenantID, leadID uuid.UUID) (service.ProcessResult, error)
	CheckSLAStatus(ctx context.Context, tenantID, leadID uuid.UUID) (sla.StatusReport, error)
	RecordFirstResponse(ctx context.Context, tenantID, leadID uuid.UUID, respondedAt time.Time) (bool, error)
	EscalateLead(ctx context.Context, tenantID, leadID uuid.UUID, reason, actor string) error
	ReassignLead(ctx context.Context, tenantID, leadID, userID uuid.UUID, actor string) (domain.Assignment, error)
	LeadPriority(ctx context.Context, tenantID, leadID uuid.UUID) (service.Priority, error)
	GetSLAMetrics(ctx context.Context, tenantID uuid.UUID, windowDays int) (sla.Metrics, error)
	ListAudit(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AuditEntry, error)
}

// ConfigStore reads and writes tenant configuration.
type ConfigStore interface {
	GetOrDefault(ctx context.Context, tenantID uuid.UUID) (settings.Config, bool, error)
	Update(ctx context.Context, tenantID uuid.UUID, cfg settings.Config) (settings.Config, error)
}

type Handler struct {
	svc    Orchestrator
	config ConfigStore
	val    *validator.Validator
}

func New(svc Orchestrator, config ConfigStore, val *validator.Validator) *Handler {
	return &Handler{svc: svc, config: config, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/config", h.GetConfig)
	rg.GET("/metrics", h.Metrics)

	leads := rg.Group("/leads/:id")
	leads.POST("/process", h.Process)
	leads.GET("/sla", h.SLAStatus)
	leads.POST("/first-response", h.FirstResponse)
	leads.POST("/escalate", h.Escalate)
	leads.POST("/assign", h.Assign)
	leads.GET("/priority", h.Priority)
	leads.GET("/audit", h.Audit)
}

func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/config", h.UpdateConfig)
}

func (h *Handler) GetConfig(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	cfg, stored, err := h.config.GetOrDefault(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ConfigResponse{Config: cfg, Stored: stored})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req transport.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	saved, err := h.config.Update(c.Request.Context(), tenantID, req.ToConfig())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ConfigResponse{Config: saved, Stored: true})
}

func (h *Handler) Process(c *gin.Context) {
	_, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	result, err := h.svc.ProcessNewLead(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SLAStatus(c *gin.Context) {
	_, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	report, err := h.svc.CheckSLAStatus(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, report)
}

func (h *Handler) FirstResponse(c *gin.Context) {
	_, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	var req transport.FirstResponseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
			return
		}
	}
	var respondedAt time.Time
	if req.RespondedAt != nil {
		respondedAt = *req.RespondedAt
	}

	met, err := h.svc.RecordFirstResponse(c.Request.Context(), tenantID, leadID, respondedAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FirstResponseResponse{SLAMet: met})
}

func (h *Handler) Escalate(c *gin.Context) {
	identity, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	var req transport.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	err := h.svc.EscalateLead(c.Request.Context(), tenantID, leadID, req.Reason, identity.UserID().String())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, gin.H{"status": "escalated"})
}

func (h *Handler) Assign(c *gin.Context) {
	identity, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	var req transport.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid user id"))
		return
	}

	created, err := h.svc.ReassignLead(c.Request.Context(), tenantID, leadID, userID, identity.UserID().String())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, created)
}

func (h *Handler) Priority(c *gin.Context) {
	_, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	p, err := h.svc.LeadPriority(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, p)
}

func (h *Handler) Audit(c *gin.Context) {
	_, tenantID, leadID, ok := leadScope(c)
	if !ok {
		return
	}

	items, err := h.svc.ListAudit(c.Request.Context(), tenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	if items == nil {
		items = []domain.AuditEntry{}
	}
	httpkit.OK(c, transport.AuditListResponse{Items: items})
}

func (h *Handler) Metrics(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	windowDays := defaultMetricsWindowDays
	if raw := c.Query("windowDays"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			httpkit.HandleError(c, apperr.Validation("windowDays must be between 1 and 365"))
			return
		}
		windowDays = parsed
	}

	metrics, err := h.svc.GetSLAMetrics(c.Request.Context(), tenantID, windowDays)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"windowDays": windowDays, "metrics": metrics})
}

func leadScope(c *gin.Context) (httpkit.Identity, uuid.UUID, uuid.UUID, bool) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return nil, uuid.Nil, uuid.Nil, false
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid lead id"))
		return nil, uuid.Nil, uuid.Nil, false
	}
	return identity, tenantID, leadID, true
}
