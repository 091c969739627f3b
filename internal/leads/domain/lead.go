// Package domain holds the lead aggregate and its lifecycle rules.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lead is a prospective customer identified by its domain name.
type Lead struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Domain     string
	Status     Status
	LeadScore  *int
	AssignedTo *uuid.UUID
	Whois      *WhoisData
	TechStack  *TechStack
	Enrichment *EnrichmentData
	CampaignID *uuid.UUID
	ScrapedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WhoisData is the registration record captured for the lead's domain.
type WhoisData struct {
	CreatedDate            *time.Time `json:"createdDate,omitempty"`
	ExpiresDate            *time.Time `json:"expiresDate,omitempty"`
	Registrar              string     `json:"registrar,omitempty"`
	RegistrantOrganization string     `json:"registrantOrganization,omitempty"`
	RegistrantCountry      string     `json:"registrantCountry,omitempty"`
}

// TechStack lists the technologies detected on the lead's website.
type TechStack struct {
	Frameworks []string `json:"frameworks,omitempty"`
	Analytics  []string `json:"analytics,omitempty"`
	Hosting    string   `json:"hosting,omitempty"`
}

// EnrichmentData carries contact discovery and firmographic signals.
type EnrichmentData struct {
	Emails                  []string          `json:"emails,omitempty"`
	SocialProfiles          map[string]string `json:"socialProfiles,omitempty"`
	CompanyName             string            `json:"companyName,omitempty"`
	CompanySize             string            `json:"companySize,omitempty"`
	Industry                string            `json:"industry,omitempty"`
	EstimatedMonthlyTraffic int64             `json:"estimatedMonthlyTraffic,omitempty"`
	Country                 string            `json:"country,omitempty"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// NormalizeDomain lowercases the input and strips scheme, "www.", path and
// trailing dots so the same site always maps to one lead.
func NormalizeDomain(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		value = strings.TrimPrefix(value, prefix)
	}
	value = strings.TrimPrefix(value, "www.")
	if idx := strings.IndexAny(value, "/?#"); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimRight(value, ".")
}

// IsValidDomain reports whether domain looks like a registrable host name.
func IsValidDomain(domain string) bool {
	if domain == "" || strings.ContainsAny(domain, " \t\n") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
