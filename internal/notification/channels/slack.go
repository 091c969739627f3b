package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orengen_backend/internal/speedtolead/settings"
)

type slackMessage struct {
	Text string `json:"text"`
}

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	client  *http.Client
	baseURL string
}

func NewSlackSender(appBaseURL string, timeout time.Duration) *SlackSender {
	return &SlackSender{client: newHTTPClient(timeout), baseURL: strings.TrimRight(appBaseURL, "/")}
}

func (s *SlackSender) Channel() string { return string(settings.ChannelSlack) }

func (s *SlackSender) Send(ctx context.Context, msg Message) error {
	url := strings.TrimSpace(msg.Recipient.SlackWebhookURL)
	if url == "" {
		return ErrNoAddress
	}

	text := msg.Content.Summary()
	if s.baseURL != "" && msg.Content.LeadID != "" {
		text = fmt.Sprintf("%s <%s/leads/%s|Open lead>", text, s.baseURL, msg.Content.LeadID)
	}
	body, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return Permanent(err)
	}
	return postJSON(ctx, s.client, url, body, nil)
}
