package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/leads/domain"
	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const leadColumns = `id, tenant_id, domain, status, lead_score, assigned_to,
	whois_data, tech_stack, enrichment_data, campaign_id, scraped_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateParams struct {
	TenantID   uuid.UUID
	Domain     string
	Whois      *domain.WhoisData
	TechStack  *domain.TechStack
	Enrichment *domain.EnrichmentData
	CampaignID *uuid.UUID
	ScrapedAt  *time.Time
}

type ListParams struct {
	TenantID   uuid.UUID
	Status     *domain.Status
	AssignedTo *uuid.UUID
	Limit      int
	Offset     int
}

type EnrichmentParams struct {
	Whois      *domain.WhoisData
	TechStack  *domain.TechStack
	Enrichment *domain.EnrichmentData
	Score      int
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (domain.Lead, error) {
	whois, tech, enrichment, err := marshalPayloads(p.Whois, p.TechStack, p.Enrichment)
	if err != nil {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO stl_leads (tenant_id, domain, status, whois_data, tech_stack, enrichment_data, campaign_id, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
		RETURNING `+leadColumns,
		p.TenantID, p.Domain, string(domain.StatusNew), whois, tech, enrichment, p.CampaignID, p.ScrapedAt,
	)
	lead, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Lead{}, apperr.Conflict("a lead with this domain already exists")
		}
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM stl_leads WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]domain.Lead, int, error) {
	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}
	limit := p.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stl_leads
		WHERE tenant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR assigned_to = $3)`,
		p.TenantID, status, p.AssignedTo,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM stl_leads
		WHERE tenant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR assigned_to = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		p.TenantID, status, p.AssignedTo, limit, p.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

// UpdateEnrichment replaces the enrichment payloads and stored score, and moves
// a new lead to enriched.
func (r *Repository) UpdateEnrichment(ctx context.Context, id, tenantID uuid.UUID, p EnrichmentParams) (domain.Lead, error) {
	whois, tech, enrichment, err := marshalPayloads(p.Whois, p.TechStack, p.Enrichment)
	if err != nil {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE stl_leads
		SET whois_data = $3, tech_stack = $4, enrichment_data = $5, lead_score = $6,
		    status = CASE WHEN status = 'new' THEN 'enriched' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+leadColumns,
		id, tenantID, whois, tech, enrichment, domain.ClampScore(p.Score),
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead enrichment: %w", err)
	}
	return lead, nil
}

// UpdateStatus moves the lead from one status to another. It only succeeds
// when the stored status still equals from.
func (r *Repository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, from, to domain.Status) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE stl_leads SET status = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = $3
		RETURNING `+leadColumns,
		id, tenantID, string(from), string(to),
	)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, apperr.Conflict("lead status changed concurrently")
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead status: %w", err)
	}
	return lead, nil
}

func (r *Repository) UpdateScore(ctx context.Context, id, tenantID uuid.UUID, score int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stl_leads SET lead_score = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, domain.ClampScore(score),
	)
	if err != nil {
		return fmt.Errorf("update lead score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stl_leads WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

// CountOpenLeads returns the number of open leads owned by each user.
// Users without open leads are absent from the map.
func (r *Repository) CountOpenLeads(ctx context.Context, tenantID uuid.UUID, users []uuid.UUID) (map[uuid.UUID]int, error) {
	open := make([]string, 0, len(domain.OpenStatuses))
	for _, s := range domain.OpenStatuses {
		open = append(open, string(s))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT assigned_to, COUNT(*)
		FROM stl_leads
		WHERE tenant_id = $1 AND assigned_to = ANY($2) AND status = ANY($3)
		GROUP BY assigned_to`,
		tenantID, users, open,
	)
	if err != nil {
		return nil, fmt.Errorf("count open leads: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int, len(users))
	for rows.Next() {
		var user uuid.UUID
		var count int
		if err := rows.Scan(&user, &count); err != nil {
			return nil, err
		}
		counts[user] = count
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var status string
	var whois, tech, enrichment []byte

	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Domain, &status, &lead.LeadScore, &lead.AssignedTo,
		&whois, &tech, &enrichment, &lead.CampaignID, &lead.ScrapedAt, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)

	if len(whois) > 0 {
		lead.Whois = &domain.WhoisData{}
		if err := json.Unmarshal(whois, lead.Whois); err != nil {
			return domain.Lead{}, fmt.Errorf("decode whois_data: %w", err)
		}
	}
	if len(tech) > 0 {
		lead.TechStack = &domain.TechStack{}
		if err := json.Unmarshal(tech, lead.TechStack); err != nil {
			return domain.Lead{}, fmt.Errorf("decode tech_stack: %w", err)
		}
	}
	if len(enrichment) > 0 {
		lead.Enrichment = &domain.EnrichmentData{}
		if err := json.Unmarshal(enrichment, lead.Enrichment); err != nil {
			return domain.Lead{}, fmt.Errorf("decode enrichment_data: %w", err)
		}
	}
	return lead, nil
}

func marshalPayloads(whois *domain.WhoisData, tech *domain.TechStack, enrichment *domain.EnrichmentData) ([]byte, []byte, []byte, error) {
	w, err := marshalOptional(whois)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode whois_data: %w", err)
	}
	t, err := marshalOptional(tech)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode tech_stack: %w", err)
	}
	e, err := marshalOptional(enrichment)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode enrichment_data: %w", err)
	}
	return w, t, e, nil
}

func marshalOptional[T any](value *T) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
