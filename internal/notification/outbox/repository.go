// Package outbox persists speed-to-lead notifications until a channel
// delivers them.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orengen_backend/internal/speedtolead/domain"
	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "outbox repository not configured"

// MaxAttempts bounds delivery retries before a notification is failed.
const MaxAttempts = 5

const notificationColumns = `id, tenant_id, lead_id, type, channel, recipient, payload, status, attempts, last_error, run_at, sent_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n domain.Notification) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}
	if n.TenantID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("tenantId is required")
	}
	if n.LeadID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("leadId is required")
	}
	if n.Channel == "" {
		return uuid.Nil, fmt.Errorf("channel is required")
	}
	if n.RunAt.IsZero() {
		n.RunAt = time.Now().UTC()
	}
	status := n.Status
	if status == "" {
		status = domain.NotificationPending
	}
	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stl_notifications (tenant_id, lead_id, type, channel, recipient, payload, status, run_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		n.TenantID, n.LeadID, string(n.Type), n.Channel, n.Recipient, payload, string(status), n.RunAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Notification, error) {
	if r == nil || r.pool == nil {
		return domain.Notification{}, errors.New(errRepoNotConfigured)
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM stl_notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Notification{}, apperr.NotFound("notification not found")
	}
	return n, err
}

// ListForRecipient returns the newest notifications addressed to one user.
func (r *Repository) ListForRecipient(ctx context.Context, tenantID, recipient uuid.UUID, limit, offset int) ([]domain.Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New(errRepoNotConfigured)
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM stl_notifications WHERE tenant_id = $1 AND recipient = $2`,
		tenantID, recipient,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM stl_notifications
		 WHERE tenant_id = $1 AND recipient = $2
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID, recipient, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

// ClaimPending moves due pending notifications to enqueued and returns them.
// Concurrent pollers never claim the same row.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]domain.Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM stl_notifications
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE stl_notifications o
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.tenant_id, o.lead_id, o.type, o.channel, o.recipient, o.payload, o.status, o.attempts, o.last_error, o.run_at, o.sent_at, o.created_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

const requeueStaleQuery = `
	UPDATE stl_notifications
	SET status = 'pending', run_at = now(), updated_at = now()
	WHERE status = 'enqueued' AND updated_at < $1`

// RequeueStale returns notifications that were claimed but saw no delivery
// progress since before to pending, for example after their task was lost.
func (r *Repository) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, requeueStaleQuery, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkPending puts a notification back in the queue, optionally after a delay.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string, runAt time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE stl_notifications
		 SET status = 'pending', last_error = $2, run_at = $3, updated_at = now()
		 WHERE id = $1`,
		id, lastError, runAt,
	)
	return err
}

// MarkProcessing counts a delivery attempt.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE stl_notifications
		 SET attempts = attempts + 1, updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE stl_notifications
		 SET status = 'sent', last_error = NULL, sent_at = now(), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE stl_notifications
		 SET status = 'failed', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, lastError,
	)
	return err
}

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	var kind, status string
	err := row.Scan(&n.ID, &n.TenantID, &n.LeadID, &kind, &n.Channel, &n.Recipient,
		&n.Payload, &status, &n.Attempts, &n.LastError, &n.RunAt, &n.SentAt, &n.CreatedAt)
	if err != nil {
		return domain.Notification{}, err
	}
	n.Type = domain.NotificationType(kind)
	n.Status = domain.NotificationStatus(status)
	return n, nil
}

// DeleteSettledBefore removes sent and failed notifications older than the
// given cut-offs and returns how many rows were deleted.
func (r *Repository) DeleteSettledBefore(ctx context.Context, sentBefore, failedBefore time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM stl_notifications
		 WHERE (status = 'sent' AND updated_at < $1)
		    OR (status = 'failed' AND updated_at < $2)`,
		sentBefore, failedBefore,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
