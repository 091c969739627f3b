package email

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRenderLeadNotificationPerType(t *testing.T) {
	score := 92
	minutes := 3
	deadline := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		kind        string
		wantSubject string
		wantBody    string
	}{
		{"new_lead", "New lead assigned: acme.io", "was just assigned to you"},
		{"high_score", "Hot lead: acme.io scored 92", "<strong>92</strong>"},
		{"sla_warning", "Respond soon: acme.io", "3 minute(s) left"},
		{"sla_breach", "Response window missed: acme.io", "has passed"},
		{"escalation", "Lead escalated: acme.io", "Reason: no response"},
	}

	for _, tc := range cases {
		subject, html, err := renderLeadNotification(LeadNotification{
			Type:             tc.kind,
			Domain:           "acme.io",
			Score:            &score,
			Reason:           "no response",
			Deadline:         &deadline,
			MinutesRemaining: &minutes,
			LeadURL:          "https://app.example.com/leads/1",
		})
		if err != nil {
			t.Fatalf("%s: render failed: %v", tc.kind, err)
		}
		if subject != tc.wantSubject {
			t.Fatalf("%s: expected subject %q, got %q", tc.kind, tc.wantSubject, subject)
		}
		if !strings.Contains(html, tc.wantBody) {
			t.Fatalf("%s: body missing %q", tc.kind, tc.wantBody)
		}
		if !strings.Contains(html, "https://app.example.com/leads/1") {
			t.Fatalf("%s: expected call to action link", tc.kind)
		}
	}
}

func TestRenderEscapesDomain(t *testing.T) {
	_, html, err := renderLeadNotification(LeadNotification{Type: "new_lead", Domain: "<script>x</script>"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected domain to be escaped")
	}
}

type disabledEmail struct{}

func (disabledEmail) GetEmailEnabled() bool       { return false }
func (disabledEmail) GetSMTPHost() string         { return "" }
func (disabledEmail) GetSMTPPort() int            { return 0 }
func (disabledEmail) GetSMTPUsername() string     { return "" }
func (disabledEmail) GetSMTPPassword() string     { return "" }
func (disabledEmail) GetEmailFromName() string    { return "" }
func (disabledEmail) GetEmailFromAddress() string { return "" }

func TestNewSenderFallsBackToNoop(t *testing.T) {
	sender := NewSender(disabledEmail{})
	if _, ok := sender.(NoopSender); !ok {
		t.Fatalf("expected NoopSender, got %T", sender)
	}
	if err := sender.SendLeadNotification(context.Background(), "a@b.c", LeadNotification{}); err != nil {
		t.Fatalf("noop send failed: %v", err)
	}
}
