// Package recipients resolves the contact details notifications are sent to.
package recipients

import (
	"context"
	"errors"
	"fmt"

	"orengen_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Contact is one user's delivery addresses.
type Contact struct {
	ID              uuid.UUID `json:"id"`
	TenantID        uuid.UUID `json:"tenantId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	WebhookURL      string    `json:"webhookUrl"`
	SlackWebhookURL string    `json:"slackWebhookUrl"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, tenantID, userID uuid.UUID) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, email, phone, webhook_url, slack_webhook_url
		 FROM stl_users
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, userID,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.WebhookURL, &c.SlackWebhookURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, apperr.NotFound("recipient not found")
	}
	if err != nil {
		return Contact{}, fmt.Errorf("get recipient: %w", err)
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name, email, phone, webhook_url, slack_webhook_url
		 FROM stl_users
		 WHERE tenant_id = $1
		 ORDER BY name, id`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.WebhookURL, &c.SlackWebhookURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Upsert stores a user's contact details for the tenant.
func (r *Repository) Upsert(ctx context.Context, c Contact) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO stl_users (id, tenant_id, name, email, phone, webhook_url, slack_webhook_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     phone = EXCLUDED.phone,
		     webhook_url = EXCLUDED.webhook_url,
		     slack_webhook_url = EXCLUDED.slack_webhook_url
		 WHERE stl_users.tenant_id = EXCLUDED.tenant_id`,
		c.ID, c.TenantID, c.Name, c.Email, c.Phone, c.WebhookURL, c.SlackWebhookURL)
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}
