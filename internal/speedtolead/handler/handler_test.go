package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/service"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/internal/speedtolead/sla"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/httpkit"
	"orengen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubOrchestrator struct {
	escalatedReason string
	escalatedActor  string
	respondedAt     time.Time
	metricsWindow   int
	reassignedTo    uuid.UUID
}

func (s *stubOrchestrator) ProcessNewLead(context.Context, uuid.UUID, uuid.UUID) (service.ProcessResult, error) {
	return service.ProcessResult{NotificationsSent: 2}, nil
}

func (s *stubOrchestrator) CheckSLAStatus(_ context.Context, _, leadID uuid.UUID) (sla.StatusReport, error) {
	if leadID == missingLead {
		return sla.StatusReport{}, apperr.NotFound("lead has no assignment")
	}
	remaining := 3
	return sla.StatusReport{Status: sla.StatusWarning, MinutesRemaining: &remaining}, nil
}

func (s *stubOrchestrator) RecordFirstResponse(_ context.Context, _, _ uuid.UUID, respondedAt time.Time) (bool, error) {
	s.respondedAt = respondedAt
	return true, nil
}

func (s *stubOrchestrator) EscalateLead(_ context.Context, _, _ uuid.UUID, reason, actor string) error {
	s.escalatedReason = reason
	s.escalatedActor = actor
	return nil
}

func (s *stubOrchestrator) ReassignLead(_ context.Context, tenantID, leadID, userID uuid.UUID, _ string) (domain.Assignment, error) {
	s.reassignedTo = userID
	return domain.Assignment{ID: uuid.New(), TenantID: tenantID, LeadID: leadID, AssignedTo: userID, AssignmentReason: "manual"}, nil
}

func (s *stubOrchestrator) LeadPriority(context.Context, uuid.UUID, uuid.UUID) (service.Priority, error) {
	return service.Priority{Score: 84, DecayedScore: 80, Tier: "hot"}, nil
}

func (s *stubOrchestrator) GetSLAMetrics(_ context.Context, _ uuid.UUID, windowDays int) (sla.Metrics, error) {
	s.metricsWindow = windowDays
	return sla.Metrics{Total: 4, Met: 3, Breached: 1, ComplianceRate: 75}, nil
}

func (s *stubOrchestrator) ListAudit(context.Context, uuid.UUID, uuid.UUID) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memoryConfig struct {
	cfg    settings.Config
	stored bool
}

func (m *memoryConfig) GetOrDefault(context.Context, uuid.UUID) (settings.Config, bool, error) {
	return m.cfg, m.stored, nil
}

func (m *memoryConfig) Update(_ context.Context, _ uuid.UUID, cfg settings.Config) (settings.Config, error) {
	if !cfg.AssignmentStrategy.IsKnown() {
		return settings.Config{}, apperr.Unsupported("unsupported strategy: " + string(cfg.AssignmentStrategy))
	}
	m.cfg = cfg
	m.stored = true
	return cfg, nil
}

var missingLead = uuid.MustParse("00000000-0000-0000-0000-00000000dead")

func newEngine(orch *stubOrchestrator, cfg *memoryConfig, userID, tenantID uuid.UUID) *gin.Engine {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextTenantIDKey, tenantID)
		c.Next()
	})
	h := New(orch, cfg, validator.New())
	h.RegisterRoutes(engine.Group("/speed-to-lead"))
	h.RegisterAdminRoutes(engine.Group("/admin/speed-to-lead"))
	return engine
}

func serve(engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSLAStatusRoute(t *testing.T) {
	engine := newEngine(&stubOrchestrator{}, &memoryConfig{}, uuid.New(), uuid.New())

	rec := serve(engine, http.MethodGet, "/speed-to-lead/leads/"+uuid.NewString()+"/sla", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report sla.StatusReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != sla.StatusWarning || *report.MinutesRemaining != 3 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec = serve(engine, http.MethodGet, "/speed-to-lead/leads/"+missingLead.String()+"/sla", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = serve(engine, http.MethodGet, "/speed-to-lead/leads/not-a-uuid/sla", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestFirstResponseAcceptsEmptyBody(t *testing.T) {
	orch := &stubOrchestrator{}
	engine := newEngine(orch, &memoryConfig{}, uuid.New(), uuid.New())

	rec := serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/first-response", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"slaMet":true`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if !orch.respondedAt.IsZero() {
		t.Fatalf("expected zero time to mean now, got %v", orch.respondedAt)
	}

	rec = serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/first-response",
		`{"respondedAt":"2024-05-01T10:06:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !orch.respondedAt.Equal(time.Date(2024, 5, 1, 10, 6, 0, 0, time.UTC)) {
		t.Fatalf("unexpected respondedAt %v", orch.respondedAt)
	}
}

func TestEscalateUsesCallerAsActor(t *testing.T) {
	orch := &stubOrchestrator{}
	userID := uuid.New()
	engine := newEngine(orch, &memoryConfig{}, userID, uuid.New())

	rec := serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/escalate", `{"reason":"no reply"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if orch.escalatedReason != "no reply" || orch.escalatedActor != userID.String() {
		t.Fatalf("unexpected escalation %q by %q", orch.escalatedReason, orch.escalatedActor)
	}

	rec = serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/escalate", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", rec.Code)
	}
}

func TestAssignValidatesUser(t *testing.T) {
	orch := &stubOrchestrator{}
	engine := newEngine(orch, &memoryConfig{}, uuid.New(), uuid.New())
	target := uuid.New()

	rec := serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/assign", `{"userId":"`+target.String()+`"}`)
	if rec.Code != http.StatusOK || orch.reassignedTo != target {
		t.Fatalf("unexpected response %d, reassigned to %s", rec.Code, orch.reassignedTo)
	}

	rec = serve(engine, http.MethodPost, "/speed-to-lead/leads/"+uuid.NewString()+"/assign", `{"userId":"bob"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsWindow(t *testing.T) {
	orch := &stubOrchestrator{}
	engine := newEngine(orch, &memoryConfig{}, uuid.New(), uuid.New())

	rec := serve(engine, http.MethodGet, "/speed-to-lead/metrics", "")
	if rec.Code != http.StatusOK || orch.metricsWindow != defaultMetricsWindowDays {
		t.Fatalf("expected default window, got %d (status %d)", orch.metricsWindow, rec.Code)
	}

	rec = serve(engine, http.MethodGet, "/speed-to-lead/metrics?windowDays=7", "")
	if rec.Code != http.StatusOK || orch.metricsWindow != 7 {
		t.Fatalf("expected window 7, got %d", orch.metricsWindow)
	}

	rec = serve(engine, http.MethodGet, "/speed-to-lead/metrics?windowDays=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuditReturnsEmptyList(t *testing.T) {
	engine := newEngine(&stubOrchestrator{}, &memoryConfig{}, uuid.New(), uuid.New())
	rec := serve(engine, http.MethodGet, "/speed-to-lead/leads/"+uuid.NewString()+"/audit", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := &memoryConfig{cfg: settings.Config{Enabled: true, AssignmentStrategy: settings.StrategyRoundRobin}}
	engine := newEngine(&stubOrchestrator{}, cfg, uuid.New(), uuid.New())

	rec := serve(engine, http.MethodGet, "/speed-to-lead/config", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stored":false`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	body := `{"enabled":true,"autoAssignEnabled":true,"assignmentStrategy":"least_loaded",` +
		`"firstResponseMinutes":15,"highScoreThreshold":75,"notificationChannels":["email","slack"]}`
	rec = serve(engine, http.MethodPut, "/admin/speed-to-lead/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cfg.cfg.AssignmentStrategy != settings.StrategyLeastLoaded || len(cfg.cfg.NotificationChannels) != 2 {
		t.Fatalf("config not stored: %+v", cfg.cfg)
	}

	rec = serve(engine, http.MethodPut, "/admin/speed-to-lead/config", `{"assignmentStrategy":"random"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown strategy, got %d", rec.Code)
	}

	rec = serve(engine, http.MethodPut, "/admin/speed-to-lead/config", `{"notificationChannels":["fax"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown channel, got %d", rec.Code)
	}
}
