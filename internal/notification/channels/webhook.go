package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orengen_backend/internal/speedtolead/settings"
)

const (
	HeaderSignature = "X-OrenGen-Signature"
	HeaderEvent     = "X-OrenGen-Event"
	HeaderTimestamp = "X-OrenGen-Timestamp"
)

type webhookEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	TenantID  string          `json:"tenantId"`
	LeadID    string          `json:"leadId"`
	Recipient string          `json:"recipient"`
	Payload   json.RawMessage `json:"payload"`
	SentAt    time.Time       `json:"sentAt"`
}

// WebhookSender posts a signed JSON envelope to the recipient's webhook URL.
type WebhookSender struct {
	client *http.Client
	secret []byte
	now    func() time.Time
}

func NewWebhookSender(secret string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{client: newHTTPClient(timeout), secret: []byte(secret), now: time.Now}
}

func (s *WebhookSender) Channel() string { return string(settings.ChannelWebhook) }

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	url := strings.TrimSpace(msg.Recipient.WebhookURL)
	if url == "" {
		return ErrNoAddress
	}

	n := msg.Notification
	payload := n.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	body, err := json.Marshal(webhookEnvelope{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		TenantID:  n.TenantID.String(),
		LeadID:    n.LeadID.String(),
		Recipient: n.Recipient.String(),
		Payload:   payload,
		SentAt:    s.now().UTC(),
	})
	if err != nil {
		return Permanent(fmt.Errorf("marshal webhook body: %w", err))
	}

	ts := strconv.FormatInt(s.now().Unix(), 10)
	headers := map[string]string{
		HeaderEvent:     string(n.Type),
		HeaderTimestamp: ts,
	}
	if len(s.secret) > 0 {
		headers[HeaderSignature] = "sha256=" + Sign(s.secret, ts, body)
	}
	return postJSON(ctx, s.client, url, body, headers)
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
