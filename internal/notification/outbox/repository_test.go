package outbox

import (
	"strings"
	"testing"
)

func TestRequeueStaleQueryOnlyTouchesEnqueuedRows(t *testing.T) {
	query := strings.Join(strings.Fields(strings.ToLower(requeueStaleQuery)), " ")

	requiredFragments := []string{
		"update stl_notifications",
		"set status = 'pending'",
		"where status = 'enqueued' and updated_at < $1",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected requeue query fragment %q to be present", fragment)
		}
	}
	if strings.Contains(query, "attempts") {
		t.Fatal("requeue must not change the attempt count")
	}
}
