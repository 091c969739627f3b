package handler

import (
	"context"
	"net/http"

	"orengen_backend/internal/leads/transport"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/httpkit"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidRequest = "invalid request"

// LeadService is the lead CRUD the handler exposes.
type LeadService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (transport.LeadResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, req transport.ListLeadsRequest) (transport.LeadListResponse, error)
	UpdateEnrichment(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateEnrichmentRequest) (transport.LeadResponse, error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

type Handler struct {
	svc LeadService
	val *validator.Validator
}

func New(svc LeadService, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the lead routes. ingest, when set, throttles creation.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, ingest gin.HandlerFunc) {
	rg.GET("", h.List)
	if ingest != nil {
		rg.POST("", ingest, h.Create)
	} else {
		rg.POST("", h.Create)
	}
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id/enrichment", h.UpdateEnrichment)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	_, tenantID, id, ok := leadScope(c)
	if !ok {
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	result, err := h.svc.List(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) UpdateEnrichment(c *gin.Context) {
	_, tenantID, id, ok := leadScope(c)
	if !ok {
		return
	}

	var req transport.UpdateEnrichmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	lead, err := h.svc.UpdateEnrichment(c.Request.Context(), tenantID, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	_, tenantID, id, ok := leadScope(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), tenantID, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Delete(c *gin.Context) {
	_, tenantID, id, ok := leadScope(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), tenantID, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func leadScope(c *gin.Context) (httpkit.Identity, uuid.UUID, uuid.UUID, bool) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return nil, uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid lead id"))
		return nil, uuid.Nil, uuid.Nil, false
	}
	return identity, tenantID, id, true
}
