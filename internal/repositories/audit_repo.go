package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatechat/allowlist-api/internal/models"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Record appends one audit entry. Snapshots are stored as JSONB.
func (r *AuditRepo) Record(ctx context.Context, entry models.AuditEntry) error {
	prev, err := marshalSnapshot(entry.Prev)
	if err != nil {
		return err
	}
	next, err := marshalSnapshot(entry.Next)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_allowlist (request_id, operation, email, staff_user_id, prev, next)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.RequestID, entry.Operation, entry.Email, entry.StaffUserID, prev, next)
	return err
}

// ListByEmail returns the mutation history for one email, newest first.
func (r *AuditRepo) ListByEmail(ctx context.Context, email string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, operation, email, staff_user_id, prev, next, created_at
		FROM audit_allowlist WHERE email = $1
		ORDER BY created_at DESC LIMIT $2
	`, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var prev, next []byte
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Operation, &e.Email, &e.StaffUserID, &prev, &next, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(prev) > 0 {
			if err := json.Unmarshal(prev, &e.Prev); err != nil {
				return nil, err
			}
		}
		if len(next) > 0 {
			if err := json.Unmarshal(next, &e.Next); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func marshalSnapshot(row *models.AllowedEmail) ([]byte, error) {
	if row == nil {
		return nil, nil
	}
	return json.Marshal(row)
}
