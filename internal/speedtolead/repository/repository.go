package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/internal/speedtolead/settings"
	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const assignmentColumns = `id, tenant_id, lead_id, assigned_to, assigned_at, assignment_reason,
	sla_deadline, first_response_at, sla_met`

const (
	insertAssignmentQuery = `
		INSERT INTO stl_lead_assignments (tenant_id, lead_id, assigned_to, assigned_at, assignment_reason, sla_deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + assignmentColumns

	setLeadOwnerQuery = `
		UPDATE stl_leads SET assigned_to = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2`

	recordFirstResponseQuery = `
		UPDATE stl_lead_assignments
		SET first_response_at = $3,
		    sla_met = CASE WHEN sla_met = false THEN false ELSE $4 END
		WHERE id = $1 AND tenant_id = $2 AND first_response_at IS NULL`

	markBreachedQuery = `
		UPDATE stl_lead_assignments
		SET sla_met = false
		WHERE id = $1 AND tenant_id = $2 AND sla_met IS NULL AND first_response_at IS NULL`
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// =============================================================================
// Assignments
// =============================================================================

// CreateAssignment stores the assignment and makes its user the lead owner in
// one transaction. A lead that no longer exists yields NotFound and nothing is
// written.
func (r *Repository) CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("begin assignment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAssignment(tx.QueryRow(ctx, insertAssignmentQuery,
		a.TenantID, a.LeadID, a.AssignedTo, a.AssignedAt, a.AssignmentReason, a.SLADeadline,
	))
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}

	tag, err := tx.Exec(ctx, setLeadOwnerQuery, a.LeadID, a.TenantID, a.AssignedTo)
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("set lead owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Assignment{}, apperr.NotFound("lead not found")
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Assignment{}, fmt.Errorf("commit assignment: %w", err)
	}
	return created, nil
}

func (r *Repository) GetAssignment(ctx context.Context, tenantID, id uuid.UUID) (domain.Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM stl_lead_assignments WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, apperr.NotFound("assignment not found")
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// LatestAssignment returns the most recent assignment for a lead.
func (r *Repository) LatestAssignment(ctx context.Context, tenantID, leadID uuid.UUID) (domain.Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM stl_lead_assignments
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY assigned_at DESC, created_at DESC
		LIMIT 1`,
		tenantID, leadID,
	)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, apperr.NotFound("lead has no assignment")
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("latest assignment: %w", err)
	}
	return a, nil
}

func (r *Repository) ListAssignmentsForLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.Assignment, error) {
	return r.queryAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM stl_lead_assignments
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY assigned_at ASC`,
		tenantID, leadID,
	)
}

// ListAssignmentsSince returns assignments made at or after since.
func (r *Repository) ListAssignmentsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]domain.Assignment, error) {
	return r.queryAssignments(ctx, `
		SELECT `+assignmentColumns+`
		FROM stl_lead_assignments
		WHERE tenant_id = $1 AND assigned_at >= $2
		ORDER BY assigned_at ASC`,
		tenantID, since,
	)
}

// RecordFirstResponse stores the first response if none exists yet.
// It reports whether this call wrote it. A breach already stored stays a breach.
func (r *Repository) RecordFirstResponse(ctx context.Context, tenantID, assignmentID uuid.UUID, respondedAt time.Time, slaMet bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, recordFirstResponseQuery, assignmentID, tenantID, respondedAt, slaMet)
	if err != nil {
		return false, fmt.Errorf("record first response: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkBreached stores sla_met=false for an unanswered assignment whose outcome
// is still unknown. It reports whether this call made the change.
func (r *Repository) MarkBreached(ctx context.Context, tenantID, assignmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, markBreachedQuery, assignmentID, tenantID)
	if err != nil {
		return false, fmt.Errorf("mark sla breached: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) queryAssignments(ctx context.Context, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.TenantID, &a.LeadID, &a.AssignedTo, &a.AssignedAt, &a.AssignmentReason,
		&a.SLADeadline, &a.FirstResponseAt, &a.SLAMet)
	return a, err
}

// =============================================================================
// Tenant configuration
// =============================================================================

func (r *Repository) GetConfig(ctx context.Context, tenantID uuid.UUID) (settings.Config, error) {
	var raw []byte
	var updatedAt time.Time
	err := r.pool.QueryRow(ctx, `SELECT settings, updated_at FROM stl_configs WHERE tenant_id = $1`, tenantID).Scan(&raw, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.Config{}, apperr.NotFound("speed-to-lead config not found")
	}
	if err != nil {
		return settings.Config{}, fmt.Errorf("get speed-to-lead config: %w", err)
	}

	var cfg settings.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return settings.Config{}, fmt.Errorf("decode speed-to-lead config: %w", err)
	}
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

func (r *Repository) UpsertConfig(ctx context.Context, tenantID uuid.UUID, cfg settings.Config) (settings.Config, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return settings.Config{}, fmt.Errorf("encode speed-to-lead config: %w", err)
	}

	var updatedAt time.Time
	err = r.pool.QueryRow(ctx, `
		INSERT INTO stl_configs (tenant_id, settings, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()
		RETURNING updated_at`,
		tenantID, raw,
	).Scan(&updatedAt)
	if err != nil {
		return settings.Config{}, fmt.Errorf("upsert speed-to-lead config: %w", err)
	}
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

// =============================================================================
// Audit log
// =============================================================================

func (r *Repository) AppendAudit(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	var metadata []byte
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return domain.AuditEntry{}, fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = encoded
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO stl_lead_audit_log (tenant_id, lead_id, actor, action, note, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		entry.TenantID, entry.LeadID, entry.Actor, entry.Action, entry.Note, metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

func (r *Repository) ListAudit(ctx context.Context, tenantID, leadID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, actor, action, note, metadata, created_at
		FROM stl_lead_audit_log
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC`,
		tenantID, leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	items := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var entry domain.AuditEntry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.LeadID, &entry.Actor, &entry.Action,
			&entry.Note, &metadata, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		items = append(items, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}
