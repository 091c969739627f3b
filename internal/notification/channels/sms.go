package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/phone"
)

const maxSMSLength = 160

type smsRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SMSSender posts short texts to an HTTP SMS gateway.
type SMSSender struct {
	client     *http.Client
	gatewayURL string
	apiKey     string
	region     string
}

func NewSMSSender(gatewayURL, apiKey, region string, timeout time.Duration) *SMSSender {
	if region == "" {
		region = phone.DefaultRegion
	}
	return &SMSSender{
		client:     newHTTPClient(timeout),
		gatewayURL: gatewayURL,
		apiKey:     apiKey,
		region:     region,
	}
}

func (s *SMSSender) Channel() string { return string(settings.ChannelSMS) }

func (s *SMSSender) Send(ctx context.Context, msg Message) error {
	raw := strings.TrimSpace(msg.Recipient.Phone)
	if raw == "" {
		return ErrNoAddress
	}
	to, err := phone.NormalizeE164(raw, s.region)
	if err != nil {
		return Permanent(fmt.Errorf("normalize phone: %w", err))
	}

	text := msg.Content.Summary()
	if len(text) > maxSMSLength {
		text = text[:maxSMSLength-3] + "..."
	}
	body, err := json.Marshal(smsRequest{To: to, Body: text})
	if err != nil {
		return Permanent(err)
	}

	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}
	return postJSON(ctx, s.client, s.gatewayURL, body, headers)
}
