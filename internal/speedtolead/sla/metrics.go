package sla

import (
	"time"

	"orengen_backend/internal/speedtolead/domain"

	"github.com/shopspring/decimal"
)

// Metrics aggregates SLA outcomes over a set of assignments.
type Metrics struct {
	Total              int      `json:"total"`
	Met                int      `json:"slaMet"`
	Breached           int      `json:"slaBreached"`
	Pending            int      `json:"pending"`
	AvgResponseMinutes *float64 `json:"avgResponseMinutes"`
	ComplianceRate     float64  `json:"complianceRate"`
}

// ComputeMetrics classifies each assignment as met, breached or pending as of
// now. An unanswered assignment past its deadline counts as breached even
// before the SLA check job has stored the outcome. Compliance is 100 when
// nothing has been decided yet.
func ComputeMetrics(assignments []domain.Assignment, now time.Time) Metrics {
	m := Metrics{Total: len(assignments)}

	var responseSum decimal.Decimal
	responded := 0

	for _, a := range assignments {
		switch {
		case a.SLAMet != nil && *a.SLAMet:
			m.Met++
		case a.SLAMet != nil && !*a.SLAMet:
			m.Breached++
		case IsOverdue(a, now):
			m.Breached++
		default:
			m.Pending++
		}

		if a.FirstResponseAt != nil && !a.AssignedAt.IsZero() {
			minutes := decimal.NewFromFloat(a.FirstResponseAt.Sub(a.AssignedAt).Minutes())
			responseSum = responseSum.Add(minutes)
			responded++
		}
	}

	if responded > 0 {
		avg, _ := responseSum.Div(decimal.NewFromInt(int64(responded))).Round(1).Float64()
		m.AvgResponseMinutes = &avg
	}

	m.ComplianceRate = complianceRate(m.Met, m.Breached)
	return m
}

func complianceRate(met, breached int) float64 {
	decided := met + breached
	if decided == 0 {
		return 100
	}
	rate, _ := decimal.NewFromInt(int64(met)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(decided)), 1).
		Float64()
	return rate
}
