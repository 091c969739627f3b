package sse

import (
	"testing"

	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

func TestPublishToTenantReachesEveryMember(t *testing.T) {
	svc := New(logger.Discard())
	tenant := uuid.New()
	a := &client{userID: uuid.New(), tenantID: tenant, events: make(chan Event, 1)}
	b := &client{userID: uuid.New(), tenantID: tenant, events: make(chan Event, 1)}
	other := &client{userID: uuid.New(), tenantID: uuid.New(), events: make(chan Event, 1)}
	svc.addClient(a)
	svc.addClient(b)
	svc.addClient(other)

	if n := svc.PublishToTenant(tenant, Event{Type: EventLeadEscalated}); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(other.events) != 0 {
		t.Fatalf("expected other tenant to receive nothing")
	}

	svc.removeClient(a)
	if n := svc.PublishToTenant(tenant, Event{Type: EventLeadEscalated}); n != 0 {
		t.Fatalf("expected full buffer of b to drop and a to be gone, got %d", n)
	}
}

func TestRemoveAfterCloseDoesNotPanic(t *testing.T) {
	svc := New(logger.Discard())
	c := &client{userID: uuid.New(), events: make(chan Event, 1)}
	svc.addClient(c)
	svc.Close()
	svc.removeClient(c)
}
