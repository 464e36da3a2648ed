package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatechat/allowlist-api/internal/models"
)

const allowedEmailColumns = "email, status, label, notes, invited_at, expires_at, created_by, created_at, updated_at"

type AllowlistRepo struct {
	pool *pgxpool.Pool
}

func NewAllowlistRepo(pool *pgxpool.Pool) *AllowlistRepo {
	return &AllowlistRepo{pool: pool}
}

type ListFilter struct {
	Status *string
	Search *string
}

// List returns entries most-recently-updated first, optionally filtered by
// status and/or a case-insensitive substring match on email or label.
func (r *AllowlistRepo) List(ctx context.Context, f ListFilter) ([]models.AllowedEmail, error) {
	query := "SELECT " + allowedEmailColumns + " FROM allowed_email"
	var conds []string
	var args []any

	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != nil && strings.TrimSpace(*f.Search) != "" {
		args = append(args, "%"+escapeLike(strings.TrimSpace(*f.Search))+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(email ILIKE $%d ESCAPE '\' OR label ILIKE $%d ESCAPE '\')`, n, n))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllowedEmails(rows)
}

// GetByEmail returns (nil, nil) when the email is absent.
func (r *AllowlistRepo) GetByEmail(ctx context.Context, email string) (*models.AllowedEmail, error) {
	var e models.AllowedEmail
	err := r.pool.QueryRow(ctx, `
		SELECT `+allowedEmailColumns+` FROM allowed_email WHERE email = $1
	`, email).Scan(
		&e.Email, &e.Status, &e.Label, &e.Notes, &e.InvitedAt, &e.ExpiresAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetManyByEmail fetches the stored rows for the given emails. Missing
// emails are simply absent from the result.
func (r *AllowlistRepo) GetManyByEmail(ctx context.Context, emails []string) ([]models.AllowedEmail, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+allowedEmailColumns+` FROM allowed_email WHERE email = ANY($1)
	`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllowedEmails(rows)
}

// ExistingEmails returns the subset of emails already present in storage.
func (r *AllowlistRepo) ExistingEmails(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT email FROM allowed_email WHERE email = ANY($1)`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		existing = append(existing, email)
	}
	return existing, rows.Err()
}

func (r *AllowlistRepo) Insert(ctx context.Context, e *models.AllowedEmail) (*models.AllowedEmail, error) {
	var out models.AllowedEmail
	err := r.pool.QueryRow(ctx, `
		INSERT INTO allowed_email (email, status, label, notes, created_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+allowedEmailColumns+`
	`, e.Email, e.Status, e.Label, e.Notes, e.CreatedBy, time.Now()).Scan(
		&out.Email, &out.Status, &out.Label, &out.Notes, &out.InvitedAt, &out.ExpiresAt, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *AllowlistRepo) Update(ctx context.Context, email, status string, label, notes *string) (*models.AllowedEmail, error) {
	var out models.AllowedEmail
	err := r.pool.QueryRow(ctx, `
		UPDATE allowed_email
		SET status = $2, label = $3, notes = $4, updated_at = $5
		WHERE email = $1
		RETURNING `+allowedEmailColumns+`
	`, email, status, label, notes, time.Now()).Scan(
		&out.Email, &out.Status, &out.Label, &out.Notes, &out.InvitedAt, &out.ExpiresAt, &out.CreatedBy, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// InsertMany inserts all rows in one statement and returns the stored rows.
// Any constraint violation fails the whole batch.
func (r *AllowlistRepo) InsertMany(ctx context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	query, args := buildBatchValues(entries, "")
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllowedEmails(rows)
}

// UpsertMany inserts or fully overwrites rows keyed on email, returning the
// stored rows.
func (r *AllowlistRepo) UpsertMany(ctx context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	conflict := `
		ON CONFLICT (email) DO UPDATE SET
			status = EXCLUDED.status,
			label = EXCLUDED.label,
			notes = EXCLUDED.notes,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at`
	query, args := buildBatchValues(entries, conflict)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAllowedEmails(rows)
}

func buildBatchValues(entries []models.AllowedEmail, conflictClause string) (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO allowed_email (email, status, label, notes, created_by, updated_at) VALUES ")

	now := time.Now()
	args := make([]any, 0, len(entries)*6)
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, e.Email, e.Status, e.Label, e.Notes, e.CreatedBy, now)
	}

	sb.WriteString(conflictClause)
	sb.WriteString(" RETURNING " + allowedEmailColumns)
	return sb.String(), args
}

func scanAllowedEmails(rows pgx.Rows) ([]models.AllowedEmail, error) {
	var out []models.AllowedEmail
	for rows.Next() {
		var e models.AllowedEmail
		if err := rows.Scan(&e.Email, &e.Status, &e.Label, &e.Notes, &e.InvitedAt, &e.ExpiresAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// escapeLike neutralizes ILIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
