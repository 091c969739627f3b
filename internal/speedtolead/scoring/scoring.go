// Package scoring computes the 0-100 quality score that drives lead
// prioritization. Every function here is pure: missing data contributes
// zero points and nothing returns an error.
package scoring

import (
	"math"
	"strings"
	"time"

	"orengen_backend/internal/leads/domain"
)

// Version tracks the scoring model for debugging and analysis.
// Bump this when changing scoring logic significantly.
const Version = "stl-2026-v1"

const (
	pointsValidDomain = 10

	pointsWhoisPresent  = 20
	pointsDomainAgeOld  = 10 // > 5 years
	pointsDomainAgeMid  = 5  // (2, 5] years
	pointsRegistrantOrg = 5

	pointsEnrichmentPresent = 10
	pointsHasEmail          = 15
	pointsManyEmails        = 5 // >= 3 emails
	pointsPerSocial         = 2
	maxSocialPoints         = 10
	pointsHighTraffic       = 10 // > 100k monthly
	pointsMidTraffic        = 5  // > 10k monthly

	pointsTechPresent   = 5
	pointsFramework     = 10
	pointsAnalytics     = 5
	pointsIndustryMatch = 10

	daysPerYear = 365.25
)

// companySizeBonus is checked in order; the first size keyword contained in the
// lead's size string wins.
var companySizeBonus = []struct {
	keyword string
	points  int
}{
	{"enterprise", 15},
	{"large", 12},
	{"medium", 10},
	{"small", 7},
	{"startup", 5},
}

var frameworkKeywords = []string{"wordpress", "shopify", "woocommerce", "react", "next.js", "vue"}

var industryKeywords = []string{"technology", "finance", "healthcare", "saas", "e-commerce"}

// Result is a score plus the points each factor contributed.
type Result struct {
	Score   int
	Factors map[string]int
	Version string
}

// Score returns the lead's quality score in [0,100] as of now.
func Score(lead domain.Lead, now time.Time) int {
	return ScoreWithFactors(lead, now).Score
}

// ScoreWithFactors returns the score together with its breakdown.
func ScoreWithFactors(lead domain.Lead, now time.Time) Result {
	factors := map[string]int{}
	total := 0

	if domain.IsValidDomain(domain.NormalizeDomain(lead.Domain)) {
		total += addFactor(factors, "valid_domain", pointsValidDomain)
	}

	if lead.Whois != nil {
		total += scoreWhois(factors, *lead.Whois, now)
	}
	if lead.Enrichment != nil {
		total += scoreEnrichment(factors, *lead.Enrichment)
	}
	if lead.TechStack != nil {
		total += scoreTechStack(factors, *lead.TechStack)
	}
	if lead.Enrichment != nil && containsAny(strings.ToLower(lead.Enrichment.Industry), industryKeywords) {
		total += addFactor(factors, "industry", pointsIndustryMatch)
	}

	return Result{
		Score:   domain.ClampScore(total),
		Factors: factors,
		Version: Version,
	}
}

func scoreWhois(factors map[string]int, whois domain.WhoisData, now time.Time) int {
	sum := addFactor(factors, "whois", pointsWhoisPresent)

	if whois.CreatedDate != nil {
		ageYears := now.Sub(*whois.CreatedDate).Hours() / 24 / daysPerYear
		switch {
		case ageYears > 5:
			sum += addFactor(factors, "domain_age", pointsDomainAgeOld)
		case ageYears > 2:
			sum += addFactor(factors, "domain_age", pointsDomainAgeMid)
		}
	}

	if strings.TrimSpace(whois.RegistrantOrganization) != "" {
		sum += addFactor(factors, "registrant_org", pointsRegistrantOrg)
	}
	return sum
}

func scoreEnrichment(factors map[string]int, data domain.EnrichmentData) int {
	sum := addFactor(factors, "enrichment", pointsEnrichmentPresent)

	emails := countNonEmpty(data.Emails)
	if emails >= 1 {
		sum += addFactor(factors, "emails", pointsHasEmail)
	}
	if emails >= 3 {
		sum += addFactor(factors, "emails_many", pointsManyEmails)
	}

	if social := distinctPlatforms(data.SocialProfiles) * pointsPerSocial; social > 0 {
		sum += addFactor(factors, "social", min(social, maxSocialPoints))
	}

	size := strings.ToLower(data.CompanySize)
	for _, entry := range companySizeBonus {
		if size != "" && strings.Contains(size, entry.keyword) {
			sum += addFactor(factors, "company_size", entry.points)
			break
		}
	}

	switch {
	case data.EstimatedMonthlyTraffic > 100000:
		sum += addFactor(factors, "traffic", pointsHighTraffic)
	case data.EstimatedMonthlyTraffic > 10000:
		sum += addFactor(factors, "traffic", pointsMidTraffic)
	}
	return sum
}

func scoreTechStack(factors map[string]int, stack domain.TechStack) int {
	sum := addFactor(factors, "tech_stack", pointsTechPresent)

	for _, framework := range stack.Frameworks {
		if containsAny(strings.ToLower(framework), frameworkKeywords) {
			sum += addFactor(factors, "framework", pointsFramework)
			break
		}
	}

	if countNonEmpty(stack.Analytics) > 0 {
		sum += addFactor(factors, "analytics", pointsAnalytics)
	}
	return sum
}

func addFactor(factors map[string]int, key string, value int) int {
	factors[key] = value
	return value
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func countNonEmpty(values []string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

func distinctPlatforms(profiles map[string]string) int {
	seen := make(map[string]struct{}, len(profiles))
	for platform, url := range profiles {
		key := strings.ToLower(strings.TrimSpace(platform))
		if key == "" || strings.TrimSpace(url) == "" {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

// Decay scales a stored score by the lead's age. It is applied at read time
// and never written back.
func Decay(score int, age time.Duration) int {
	factor := 0.70
	switch {
	case age <= 24*time.Hour:
		factor = 1.0
	case age <= 7*24*time.Hour:
		factor = 0.95
	case age <= 30*24*time.Hour:
		factor = 0.85
	}
	return domain.ClampScore(int(math.Round(float64(score) * factor)))
}
