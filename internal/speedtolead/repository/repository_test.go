package repository

import (
	"strings"
	"testing"
)

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func TestRecordFirstResponseQueryIsCompareAndSet(t *testing.T) {
	query := normalizeQuery(recordFirstResponseQuery)

	requiredFragments := []string{
		"update stl_lead_assignments",
		"where id = $1 and tenant_id = $2 and first_response_at is null",
		"sla_met = case when sla_met = false then false else $4 end",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected first response query fragment %q to be present", fragment)
		}
	}
}

func TestMarkBreachedQueryOnlyTouchesUndecidedAssignments(t *testing.T) {
	query := normalizeQuery(markBreachedQuery)

	if !strings.Contains(query, "where id = $1 and tenant_id = $2 and sla_met is null and first_response_at is null") {
		t.Fatalf("breach query must only update unanswered assignments without an outcome: %s", query)
	}
	if strings.Contains(query, "first_response_at =") {
		t.Fatal("breach query must not write a response time")
	}
}

func TestAssignmentWritesAreTenantScoped(t *testing.T) {
	if !strings.Contains(normalizeQuery(setLeadOwnerQuery), "where id = $1 and tenant_id = $2") {
		t.Fatal("lead owner update must be scoped to the tenant")
	}
	if !strings.Contains(normalizeQuery(insertAssignmentQuery), "returning id, tenant_id, lead_id") {
		t.Fatal("assignment insert must return the stored row")
	}
}
