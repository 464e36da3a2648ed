package services

import (
	"context"

	"github.com/gatechat/allowlist-api/internal/models"
	"github.com/gatechat/allowlist-api/internal/repositories"
)

// AllowlistStore is the storage capability the services depend on. The pgx
// repository satisfies it in production; tests use in-memory fakes.
type AllowlistStore interface {
	List(ctx context.Context, f repositories.ListFilter) ([]models.AllowedEmail, error)
	GetByEmail(ctx context.Context, email string) (*models.AllowedEmail, error)
	GetManyByEmail(ctx context.Context, emails []string) ([]models.AllowedEmail, error)
	ExistingEmails(ctx context.Context, emails []string) ([]string, error)
	Insert(ctx context.Context, e *models.AllowedEmail) (*models.AllowedEmail, error)
	Update(ctx context.Context, email, status string, label, notes *string) (*models.AllowedEmail, error)
	InsertMany(ctx context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error)
	UpsertMany(ctx context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error)
}

// AuditStore records and reads the append-only mutation trail.
type AuditStore interface {
	Record(ctx context.Context, entry models.AuditEntry) error
	ListByEmail(ctx context.Context, email string, limit int) ([]models.AuditEntry, error)
}
