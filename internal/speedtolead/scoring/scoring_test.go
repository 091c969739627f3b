package scoring

import (
	"testing"
	"time"

	"orengen_backend/internal/leads/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func yearsAgo(years float64) *time.Time {
	t := now.Add(-time.Duration(years * daysPerYear * 24 * float64(time.Hour)))
	return &t
}

func TestScoreFullyEnrichedLeadCapsAt100(t *testing.T) {
	lead := domain.Lead{
		Domain: "acme.io",
		Whois: &domain.WhoisData{
			CreatedDate:            yearsAgo(6),
			RegistrantOrganization: "Acme Inc",
		},
		Enrichment: &domain.EnrichmentData{
			Emails:         []string{"a@acme.io", "b@acme.io", "c@acme.io", "d@acme.io"},
			SocialProfiles: map[string]string{"linkedin": "https://linkedin.com/acme", "twitter": "https://x.com/acme"},
			Industry:       "SaaS",
		},
		TechStack: &domain.TechStack{
			Frameworks: []string{"Next.js 14"},
			Analytics:  []string{"Google Analytics"},
		},
	}

	result := ScoreWithFactors(lead, now)
	if result.Score != 100 {
		t.Fatalf("expected capped score 100, got %d (%v)", result.Score, result.Factors)
	}
	if result.Factors["social"] != 4 {
		t.Fatalf("expected 4 social points, got %d", result.Factors["social"])
	}
	if result.Factors["domain_age"] != 10 {
		t.Fatalf("expected 10 domain age points, got %d", result.Factors["domain_age"])
	}
}

func TestScoreBareLeadIsBaseOnly(t *testing.T) {
	if got := Score(domain.Lead{Domain: "acme.io"}, now); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := Score(domain.Lead{Domain: "not a domain"}, now); got != 0 {
		t.Fatalf("expected 0 for invalid domain, got %d", got)
	}
}

func TestScoreBuckets(t *testing.T) {
	cases := []struct {
		name string
		lead domain.Lead
		want int
	}{
		{
			name: "mid aged whois without org",
			lead: domain.Lead{Domain: "a.io", Whois: &domain.WhoisData{CreatedDate: yearsAgo(3)}},
			want: 10 + 20 + 5,
		},
		{
			name: "young whois",
			lead: domain.Lead{Domain: "a.io", Whois: &domain.WhoisData{CreatedDate: yearsAgo(1)}},
			want: 10 + 20,
		},
		{
			name: "exactly two emails",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{Emails: []string{"x@a.io", "y@a.io"}}},
			want: 10 + 10 + 15,
		},
		{
			name: "social capped at ten",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{SocialProfiles: map[string]string{
				"linkedin": "l", "twitter": "t", "facebook": "f", "instagram": "i", "youtube": "y", "tiktok": "k",
			}}},
			want: 10 + 10 + 10,
		},
		{
			name: "company size first match wins",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{CompanySize: "Large Enterprise"}},
			want: 10 + 10 + 15,
		},
		{
			name: "small company and mid traffic",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{CompanySize: "small (11-50)", EstimatedMonthlyTraffic: 50000}},
			want: 10 + 10 + 7 + 5,
		},
		{
			name: "traffic threshold is exclusive",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{EstimatedMonthlyTraffic: 100000}},
			want: 10 + 10 + 5,
		},
		{
			name: "tech stack without known framework",
			lead: domain.Lead{Domain: "a.io", TechStack: &domain.TechStack{Frameworks: []string{"Django"}}},
			want: 10 + 5,
		},
		{
			name: "framework match is case insensitive",
			lead: domain.Lead{Domain: "a.io", TechStack: &domain.TechStack{Frameworks: []string{"WORDPRESS"}}},
			want: 10 + 5 + 10,
		},
		{
			name: "industry only counts through enrichment",
			lead: domain.Lead{Domain: "a.io", Enrichment: &domain.EnrichmentData{Industry: "Healthcare Services"}},
			want: 10 + 10 + 10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.lead, now); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestScoreIsDeterministicAndBounded(t *testing.T) {
	lead := domain.Lead{
		Domain:     "acme.io",
		Whois:      &domain.WhoisData{CreatedDate: yearsAgo(10), RegistrantOrganization: "Acme"},
		Enrichment: &domain.EnrichmentData{Emails: []string{"a@a.io"}, CompanySize: "enterprise", EstimatedMonthlyTraffic: 1e6, Industry: "finance"},
		TechStack:  &domain.TechStack{Frameworks: []string{"Shopify"}, Analytics: []string{"GA4"}},
	}
	first := Score(lead, now)
	for i := 0; i < 10; i++ {
		if got := Score(lead, now); got != first {
			t.Fatalf("score changed between runs: %d vs %d", first, got)
		}
	}
	if first < 0 || first > 100 {
		t.Fatalf("score out of range: %d", first)
	}
}

func TestDecay(t *testing.T) {
	if Decay(80, 0) != 80 {
		t.Fatalf("decay at age zero must be identity")
	}

	day := 24 * time.Hour
	cases := []struct {
		age  time.Duration
		want int
	}{
		{day, 80},
		{day + time.Minute, 76},
		{7 * day, 76},
		{8 * day, 68},
		{30 * day, 68},
		{31 * day, 56},
	}
	for _, tc := range cases {
		if got := Decay(80, tc.age); got != tc.want {
			t.Fatalf("Decay(80, %s) = %d, want %d", tc.age, got, tc.want)
		}
	}

	prev := Decay(97, 0)
	for age := time.Duration(0); age < 60*day; age += 6 * time.Hour {
		got := Decay(97, age)
		if got > prev {
			t.Fatalf("decay increased at age %s: %d > %d", age, got, prev)
		}
		prev = got
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		score int
		tier  string
		sla   int
	}{
		{100, TierHot, 5},
		{80, TierHot, 5},
		{79, TierWarm, 30},
		{60, TierWarm, 30},
		{59, TierCold, 120},
		{0, TierCold, 120},
	}
	for _, tc := range cases {
		got := Classify(tc.score)
		if got.Name != tc.tier || got.SLAMinutes != tc.sla {
			t.Fatalf("Classify(%d) = %+v", tc.score, got)
		}
	}
}
