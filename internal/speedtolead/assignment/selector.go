// Package assignment picks an owner for a new lead from the tenant's
// eligible users using the configured strategy.
package assignment

import (
	"context"
	"fmt"

	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/apperr"
	"orengen_backend/platform/logger"

	"github.com/google/uuid"
)

// ReasonManual tags assignments made by a person rather than a strategy.
const ReasonManual = "manual"

// ErrNoEligibleUsers is returned when Assign is called with an empty pool.
var ErrNoEligibleUsers = apperr.Validation("no eligible users configured for assignment")

// WorkloadReader reports how many open leads each user currently owns.
// Users without open leads may be absent from the result.
type WorkloadReader interface {
	CountOpenLeads(ctx context.Context, tenantID uuid.UUID, users []uuid.UUID) (map[uuid.UUID]int, error)
}

// Request describes one assignment decision.
type Request struct {
	TenantID      uuid.UUID
	LeadID        uuid.UUID
	LeadScore     int
	EligibleUsers []uuid.UUID
	Strategy      settings.Strategy
	// Territory is the lead's region when known. It is carried for
	// by_territory but not matched yet.
	Territory string
}

// Selector implements the assignment strategies.
type Selector struct {
	counter  Counter
	workload WorkloadReader
	log      *logger.Logger
}

func NewSelector(counter Counter, workload WorkloadReader, log *logger.Logger) *Selector {
	return &Selector{counter: counter, workload: workload, log: log}
}

// Reason returns the assignment_reason tag for an automatic assignment.
func Reason(strategy settings.Strategy) string {
	return "auto_" + string(strategy)
}

// Assign returns the chosen user for req.
func (s *Selector) Assign(ctx context.Context, req Request) (uuid.UUID, error) {
	if len(req.EligibleUsers) == 0 {
		return uuid.Nil, ErrNoEligibleUsers
	}

	switch req.Strategy {
	case settings.StrategyRoundRobin:
		return s.roundRobin(ctx, req)
	case settings.StrategyLeastLoaded:
		return s.leastLoaded(ctx, req)
	case settings.StrategyByScore:
		return byScore(req.EligibleUsers, req.LeadScore), nil
	case settings.StrategyByTerritory:
		if s.log != nil {
			s.log.Info("territory matching unavailable, using round robin",
				"tenantId", req.TenantID, "leadId", req.LeadID, "territory", req.Territory)
		}
		return s.roundRobin(ctx, req)
	default:
		return uuid.Nil, apperr.Unsupported(fmt.Sprintf("unsupported strategy: %s", req.Strategy))
	}
}

func (s *Selector) roundRobin(ctx context.Context, req Request) (uuid.UUID, error) {
	value, err := s.counter.Next(ctx, req.TenantID)
	if err != nil {
		return uuid.Nil, err
	}
	n := int64(len(req.EligibleUsers))
	idx := value % n
	if idx < 0 {
		idx += n
	}
	return req.EligibleUsers[idx], nil
}

func (s *Selector) leastLoaded(ctx context.Context, req Request) (uuid.UUID, error) {
	counts, err := s.workload.CountOpenLeads(ctx, req.TenantID, req.EligibleUsers)
	if err != nil {
		return uuid.Nil, fmt.Errorf("count open leads: %w", err)
	}

	best := req.EligibleUsers[0]
	bestCount := counts[best]
	for _, user := range req.EligibleUsers[1:] {
		if c := counts[user]; c < bestCount {
			best, bestCount = user, c
		}
	}
	return best, nil
}

func byScore(users []uuid.UUID, score int) uuid.UUID {
	last := users[len(users)-1]
	switch {
	case score >= 70:
		return users[0]
	case score >= 50:
		if len(users) < 2 {
			return last
		}
		return users[1]
	default:
		return last
	}
}
