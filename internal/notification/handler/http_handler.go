package handler

import (
	"context"
	"strconv"

	"orengen_backend/internal/notification/recipients"
	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/httpkit"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NotificationLister lists delivery records for one recipient.
type NotificationLister interface {
	ListForRecipient(ctx context.Context, tenantID, recipient uuid.UUID, limit, offset int) ([]domain.Notification, int, error)
}

// ContactStore manages recipient contact details.
type ContactStore interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]recipients.Contact, error)
	Upsert(ctx context.Context, c recipients.Contact) error
}

// UpsertContactRequest sets where a user receives notifications.
type UpsertContactRequest struct {
	Name            string `json:"name" validate:"max=200"`
	Email           string `json:"email" validate:"omitempty,email,max=320"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	WebhookURL      string `json:"webhookUrl" validate:"omitempty,url,max=2048"`
	SlackWebhookURL string `json:"slackWebhookUrl" validate:"omitempty,url,max=2048"`
}

type HTTPHandler struct {
	notifications NotificationLister
	contacts      ContactStore
	val           *validator.Validator
}

func NewHTTPHandler(notifications NotificationLister, contacts ContactStore, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{notifications: notifications, contacts: contacts, val: val}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}

func (h *HTTPHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListContacts)
	rg.PUT("/:userId", h.UpsertContact)
}

func (h *HTTPHandler) List(c *gin.Context) {
	identity, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	items, total, err := h.notifications.ListForRecipient(c.Request.Context(), tenantID, identity.UserID(), limit, (page-1)*limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) ListContacts(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	items, err := h.contacts.List(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	if items == nil {
		items = []recipients.Contact{}
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *HTTPHandler) UpsertContact(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid user id"))
		return
	}

	var req UpsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid request body"))
		return
	}
	if httpkit.HandleError(c, h.val.Check(req)) {
		return
	}

	contact := recipients.Contact{
		ID:              userID,
		TenantID:        tenantID,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		WebhookURL:      req.WebhookURL,
		SlackWebhookURL: req.SlackWebhookURL,
	}
	if httpkit.HandleError(c, h.contacts.Upsert(c.Request.Context(), contact)) {
		return
	}
	httpkit.OK(c, contact)
}
