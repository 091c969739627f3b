package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"orengen_backend/internal/events"
	"orengen_backend/internal/leads/domain"
	"orengen_backend/internal/leads/repository"
	"orengen_backend/internal/leads/transport"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{leads: map[uuid.UUID]domain.Lead{}}
}

func (r *memoryRepo) Create(_ context.Context, p repository.CreateParams) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if l.TenantID == p.TenantID && l.Domain == p.Domain {
			return domain.Lead{}, apperr.Conflict("a lead with this domain already exists")
		}
	}
	lead := domain.Lead{ID: uuid.New(), TenantID: p.TenantID, Domain: p.Domain, Status: domain.StatusNew,
		Whois: p.Whois, TechStack: p.TechStack, Enrichment: p.Enrichment, CreatedAt: time.Now()}
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok || lead.TenantID != tenantID {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (r *memoryRepo) List(_ context.Context, p repository.ListParams) ([]domain.Lead, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Lead
	for _, l := range r.leads {
		if l.TenantID == p.TenantID && (p.Status == nil || l.Status == *p.Status) {
			out = append(out, l)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) UpdateEnrichment(_ context.Context, id, _ uuid.UUID, p repository.EnrichmentParams) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead := r.leads[id]
	lead.Whois, lead.TechStack, lead.Enrichment = p.Whois, p.TechStack, p.Enrichment
	score := p.Score
	lead.LeadScore = &score
	if lead.Status == domain.StatusNew {
		lead.Status = domain.StatusEnriched
	}
	r.leads[id] = lead
	return lead, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id, _ uuid.UUID, from, to domain.Status) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead := r.leads[id]
	if lead.Status != from {
		return domain.Lead{}, apperr.Conflict("lead status changed concurrently")
	}
	lead.Status = to
	r.leads[id] = lead
	return lead, nil
}

func (r *memoryRepo) Delete(_ context.Context, id, _ uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[id]; !ok {
		return apperr.NotFound("lead not found")
	}
	delete(r.leads, id)
	return nil
}

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) subscribe(bus *events.InMemoryBus, names ...string) {
	for _, name := range names {
		bus.Subscribe(name, events.HandlerFunc(func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			r.names = append(r.names, e.EventName())
			r.mu.Unlock()
			return nil
		}))
	}
}

func setup() (*Service, *memoryRepo, *events.InMemoryBus, *recorder) {
	repo := newMemoryRepo()
	bus := events.NewInMemoryBus(logger.Discard())
	rec := &recorder{}
	rec.subscribe(bus, events.LeadCreated{}.EventName(), events.LeadRescored{}.EventName(), events.LeadDeleted{}.EventName())
	return New(repo, bus, logger.Discard()), repo, bus, rec
}

func TestCreateNormalizesDomainAndPublishes(t *testing.T) {
	svc, _, bus, rec := setup()
	tenant := uuid.New()

	lead, err := svc.Create(context.Background(), tenant, transport.CreateLeadRequest{Domain: "https://WWW.Acme.io/"})
	bus.Wait()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if lead.Domain != "acme.io" || lead.Status != domain.StatusNew || lead.LeadScore != nil {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if len(rec.names) != 1 || rec.names[0] != "leads.lead.created" {
		t.Fatalf("expected LeadCreated, got %v", rec.names)
	}

	_, err = svc.Create(context.Background(), tenant, transport.CreateLeadRequest{Domain: "acme.io"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestCreateRejectsInvalidDomain(t *testing.T) {
	svc, _, _, _ := setup()
	_, err := svc.Create(context.Background(), uuid.New(), transport.CreateLeadRequest{Domain: "localhost"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateEnrichmentRescores(t *testing.T) {
	svc, _, bus, rec := setup()
	tenant := uuid.New()
	created, _ := svc.Create(context.Background(), tenant, transport.CreateLeadRequest{Domain: "acme.io"})

	updated, err := svc.UpdateEnrichment(context.Background(), tenant, created.ID, transport.UpdateEnrichmentRequest{
		Enrichment: &domain.EnrichmentData{Emails: []string{"sales@acme.io"}},
	})
	bus.Wait()
	if err != nil {
		t.Fatalf("update enrichment: %v", err)
	}
	if updated.LeadScore == nil || *updated.LeadScore != 35 {
		t.Fatalf("expected score 35, got %v", updated.LeadScore)
	}
	if updated.Status != domain.StatusEnriched {
		t.Fatalf("expected enriched status, got %s", updated.Status)
	}
	if len(rec.names) != 2 {
		t.Fatalf("expected created and rescored events, got %v", rec.names)
	}
}

func TestUpdateStatusEnforcesFunnel(t *testing.T) {
	svc, _, _, _ := setup()
	tenant := uuid.New()
	created, _ := svc.Create(context.Background(), tenant, transport.CreateLeadRequest{Domain: "acme.io"})

	if _, err := svc.UpdateStatus(context.Background(), tenant, created.ID, transport.UpdateStatusRequest{Status: domain.StatusQualified}); err != nil {
		t.Fatalf("forward move: %v", err)
	}
	_, err := svc.UpdateStatus(context.Background(), tenant, created.ID, transport.UpdateStatusRequest{Status: domain.StatusNew})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected backwards move to fail, got %v", err)
	}
	lead, err := svc.UpdateStatus(context.Background(), tenant, created.ID, transport.UpdateStatusRequest{Status: domain.StatusRejected})
	if err != nil || lead.Status != domain.StatusRejected {
		t.Fatalf("expected rejection from any state, got %v (%v)", lead.Status, err)
	}
}

func TestDeletePublishes(t *testing.T) {
	svc, _, bus, rec := setup()
	tenant := uuid.New()
	created, _ := svc.Create(context.Background(), tenant, transport.CreateLeadRequest{Domain: "acme.io"})

	if err := svc.Delete(context.Background(), tenant, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	bus.Wait()
	if len(rec.names) != 2 {
		t.Fatalf("expected created and deleted events, got %v", rec.names)
	}
	if _, err := svc.GetByID(context.Background(), tenant, created.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
