package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type leadEmailData struct {
	baseEmailData
	RecipientName    string
	Domain           string
	Score            string
	AssigneeName     string
	Reason           string
	Deadline         string
	MinutesRemaining int
	HasDeadline      bool
}

var templateByType = map[string]string{
	"new_lead":    "new_lead.html",
	"high_score":  "high_score.html",
	"sla_warning": "sla_warning.html",
	"sla_breach":  "sla_breach.html",
	"escalation":  "escalation.html",
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// renderLeadNotification picks the template and subject for a notification type.
func renderLeadNotification(n LeadNotification) (subject string, html string, err error) {
	name, ok := templateByType[n.Type]
	if !ok {
		name = "new_lead.html"
	}

	data := leadEmailData{
		baseEmailData: baseEmailData{
			Title:    leadTitle(n.Type),
			Heading:  leadTitle(n.Type),
			CTALabel: "Open lead",
			CTAURL:   n.LeadURL,
		},
		RecipientName: n.RecipientName,
		Domain:        n.Domain,
		AssigneeName:  n.AssigneeName,
		Reason:        n.Reason,
	}
	if n.Score != nil {
		data.Score = fmt.Sprintf("%d", *n.Score)
	}
	if n.Deadline != nil {
		data.HasDeadline = true
		data.Deadline = n.Deadline.UTC().Format(time.RFC1123)
	}
	if n.MinutesRemaining != nil {
		data.MinutesRemaining = *n.MinutesRemaining
	}

	html, err = renderEmailTemplate(name, data)
	if err != nil {
		return "", "", err
	}
	return leadSubject(n), html, nil
}

func leadTitle(kind string) string {
	switch kind {
	case "high_score":
		return "Hot lead"
	case "sla_warning":
		return "Response window closing"
	case "sla_breach":
		return "Response window missed"
	case "escalation":
		return "Lead escalated"
	default:
		return "New lead assigned"
	}
}

func leadSubject(n LeadNotification) string {
	domain := n.Domain
	if domain == "" {
		domain = n.LeadID
	}
	switch n.Type {
	case "new_lead":
		return fmt.Sprintf(subjectNewLeadFmt, domain)
	case "high_score":
		score := 0
		if n.Score != nil {
			score = *n.Score
		}
		return fmt.Sprintf(subjectHighScoreFmt, domain, score)
	case "sla_warning":
		return fmt.Sprintf(subjectSLAWarningFmt, domain)
	case "sla_breach":
		return fmt.Sprintf(subjectSLABreachFmt, domain)
	case "escalation":
		return fmt.Sprintf(subjectEscalationFmt, domain)
	default:
		return fmt.Sprintf(subjectGenericFmt, domain)
	}
}
