package channels

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orengen_backend/internal/email"
	"orengen_backend/internal/notification/recipients"
	"orengen_backend/internal/speedtolead/domain"

	"github.com/google/uuid"
)

type capturedRequest struct {
	headers http.Header
	body    []byte
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	got := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- capturedRequest{headers: r.Header.Clone(), body: body}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func testMessage(channel string, contact recipients.Contact) Message {
	score := 91
	leadID := uuid.New()
	payload, _ := json.Marshal(map[string]any{"leadId": leadID.String(), "type": "high_score", "domain": "acme.io", "score": score})
	return Message{
		Notification: domain.Notification{
			ID:        uuid.New(),
			TenantID:  uuid.New(),
			LeadID:    leadID,
			Type:      domain.NotificationHighScore,
			Channel:   channel,
			Recipient: contact.ID,
			Payload:   payload,
		},
		Recipient: contact,
		Content:   Content{LeadID: leadID.String(), Type: "high_score", Domain: "acme.io", Score: &score},
	}
}

func TestWebhookSenderSignsBody(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	sender := NewWebhookSender("s3cret", time.Second)
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sender.now = func() time.Time { return fixed }

	msg := testMessage("webhook", recipients.Contact{ID: uuid.New(), WebhookURL: srv.URL})
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	req := <-got
	ts := req.headers.Get(HeaderTimestamp)
	if ts != "1772445600" {
		t.Fatalf("unexpected timestamp header %q", ts)
	}
	want := "sha256=" + Sign([]byte("s3cret"), ts, req.body)
	if req.headers.Get(HeaderSignature) != want {
		t.Fatalf("signature mismatch: got %q want %q", req.headers.Get(HeaderSignature), want)
	}
	if req.headers.Get(HeaderEvent) != "high_score" {
		t.Fatalf("unexpected event header %q", req.headers.Get(HeaderEvent))
	}

	var env webhookEnvelope
	if err := json.Unmarshal(req.body, &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.LeadID != msg.Notification.LeadID.String() || env.Type != "high_score" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestWebhookSenderClassifiesFailures(t *testing.T) {
	badRequest, _ := newCaptureServer(t, http.StatusBadRequest)
	unavailable, _ := newCaptureServer(t, http.StatusServiceUnavailable)
	sender := NewWebhookSender("", time.Second)

	err := sender.Send(context.Background(), testMessage("webhook", recipients.Contact{WebhookURL: badRequest.URL}))
	if err == nil || !IsPermanent(err) {
		t.Fatalf("expected permanent error on 400, got %v", err)
	}

	err = sender.Send(context.Background(), testMessage("webhook", recipients.Contact{WebhookURL: unavailable.URL}))
	if err == nil || IsPermanent(err) {
		t.Fatalf("expected retryable error on 503, got %v", err)
	}
}

func TestSlackSenderPostsSummary(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusOK)
	sender := NewSlackSender("https://app.example.com/", time.Second)

	msg := testMessage("slack", recipients.Contact{SlackWebhookURL: srv.URL})
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var body slackMessage
	if err := json.Unmarshal((<-got).body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(body.Text, "Hot lead: acme.io (score 91)") {
		t.Fatalf("unexpected text %q", body.Text)
	}
	if !strings.Contains(body.Text, "https://app.example.com/leads/"+msg.Content.LeadID) {
		t.Fatalf("expected lead link in %q", body.Text)
	}
}

func TestSMSSenderNormalizesNumber(t *testing.T) {
	srv, got := newCaptureServer(t, http.StatusAccepted)
	sender := NewSMSSender(srv.URL, "key-1", "US", time.Second)

	msg := testMessage("sms", recipients.Contact{Phone: "(415) 555-2671"})
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	req := <-got
	if req.headers.Get("Authorization") != "Bearer key-1" {
		t.Fatalf("unexpected auth header %q", req.headers.Get("Authorization"))
	}
	var body smsRequest
	if err := json.Unmarshal(req.body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.To != "+14155552671" {
		t.Fatalf("expected E.164 number, got %q", body.To)
	}
}

func TestSMSSenderRejectsInvalidNumber(t *testing.T) {
	sender := NewSMSSender("http://127.0.0.1:1", "", "US", time.Second)
	err := sender.Send(context.Background(), testMessage("sms", recipients.Contact{Phone: "12"}))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

type recordingEmail struct {
	to string
	n  email.LeadNotification
}

func (r *recordingEmail) SendLeadNotification(_ context.Context, to string, n email.LeadNotification) error {
	r.to = to
	r.n = n
	return nil
}

func (r *recordingEmail) SendCustomEmail(context.Context, string, string, string) error { return nil }

func TestEmailSenderBuildsLeadLink(t *testing.T) {
	rec := &recordingEmail{}
	sender := NewEmailSender(rec, "https://app.example.com")

	msg := testMessage("email", recipients.Contact{Email: "rep@example.com", Name: "Dana"})
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if rec.to != "rep@example.com" || rec.n.RecipientName != "Dana" {
		t.Fatalf("unexpected delivery %+v to %q", rec.n, rec.to)
	}
	if rec.n.LeadURL != "https://app.example.com/leads/"+msg.Content.LeadID {
		t.Fatalf("unexpected lead url %q", rec.n.LeadURL)
	}
}

func TestMissingAddressIsPermanent(t *testing.T) {
	senders := []Sender{
		NewEmailSender(&recordingEmail{}, ""),
		NewSMSSender("http://127.0.0.1:1", "", "US", time.Second),
		NewWebhookSender("", time.Second),
		NewSlackSender("", time.Second),
	}
	for _, s := range senders {
		err := s.Send(context.Background(), testMessage(s.Channel(), recipients.Contact{}))
		if !errors.Is(err, ErrNoAddress) {
			t.Fatalf("%s: expected ErrNoAddress, got %v", s.Channel(), err)
		}
	}
}

func TestRegistryUnknownChannel(t *testing.T) {
	r := NewRegistry(NewSlackSender("", time.Second))
	err := r.Send(context.Background(), testMessage("pager", recipients.Contact{}))
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error for unknown channel, got %v", err)
	}
}
