package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatechat/allowlist-api/internal/errs"
	"github.com/gatechat/allowlist-api/internal/events"
	"github.com/gatechat/allowlist-api/internal/models"
	"github.com/gatechat/allowlist-api/internal/repositories"
)

type AllowlistService struct {
	store     AllowlistStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewAllowlistService(store AllowlistStore, audit AuditStore, publisher events.Publisher, log *zap.Logger) *AllowlistService {
	return &AllowlistService{
		store:     store,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

type CreatePayload struct {
	Email  string
	Status string
	Label  *string
	Notes  *string
}

// UpdatePayload fields are nil when the caller omitted them. A provided but
// blank label/notes clears the stored value.
type UpdatePayload struct {
	Status *string
	Label  *string
	Notes  *string
}

func (s *AllowlistService) List(ctx context.Context, status, search *string) ([]models.AllowedEmail, error) {
	filter := repositories.ListFilter{Search: search}
	if status != nil {
		validated, err := models.ValidateStatus(*status)
		if err != nil {
			return nil, err
		}
		filter.Status = &validated
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to fetch allowlist entries", err)
	}
	return entries, nil
}

func (s *AllowlistService) Create(ctx context.Context, payload CreatePayload, staffUserID uuid.UUID, requestID string) (*models.AllowedEmail, error) {
	trimmed, err := models.ValidateEmail(payload.Email)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(trimmed)

	status := payload.Status
	if status == "" {
		status = models.StatusPending
	}
	status, err = models.ValidateStatus(status)
	if err != nil {
		return nil, err
	}

	label, err := models.ValidateOptionalText(payload.Label, models.LabelMaxLength)
	if err != nil {
		return nil, err
	}
	notes, err := models.ValidateOptionalText(payload.Notes, models.NotesMaxLength)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to check existing entry", err)
	}
	if existing != nil {
		return nil, errs.New(errs.KindConflict, errs.CodeAlreadyExists, "email is already on the allowlist")
	}

	inserted, err := s.store.Insert(ctx, &models.AllowedEmail{
		Email:     email,
		Status:    status,
		Label:     label,
		Notes:     notes,
		CreatedBy: &staffUserID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeInsertFailed, "failed to insert allowlist entry", err)
	}

	s.recordAudit(ctx, models.AuditEntry{
		RequestID:   requestID,
		Operation:   models.AuditOpInsert,
		Email:       email,
		StaffUserID: staffUserID,
		Prev:        nil,
		Next:        models.Snapshot(inserted),
	})
	s.publishChange(ctx, models.AuditOpInsert, email, requestID)

	return inserted, nil
}

func (s *AllowlistService) Update(ctx context.Context, email string, payload UpdatePayload, staffUserID uuid.UUID, requestID string) (*models.AllowedEmail, error) {
	if payload.Status == nil && payload.Label == nil && payload.Notes == nil {
		return nil, errs.New(errs.KindValidation, errs.CodeEmptyUpdate, "at least one field is required")
	}

	trimmed, err := models.ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	normalized := models.NormalizeEmail(trimmed)

	current, err := s.store.GetByEmail(ctx, normalized)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to fetch allowlist entry", err)
	}
	if current == nil {
		return nil, errs.New(errs.KindNotFound, errs.CodeNotFound, "email is not on the allowlist")
	}

	nextStatus := current.Status
	if payload.Status != nil {
		nextStatus, err = models.ValidateStatus(*payload.Status)
		if err != nil {
			return nil, err
		}
	}
	if !models.IsValidTransition(current.Status, nextStatus) {
		return nil, errs.New(errs.KindValidation, errs.CodeTransitionForbidden, "status transition is not allowed").
			WithDetail("from", current.Status).
			WithDetail("to", nextStatus)
	}

	label := current.Label
	if payload.Label != nil {
		label, err = models.ValidateOptionalText(payload.Label, models.LabelMaxLength)
		if err != nil {
			return nil, err
		}
	}
	notes := current.Notes
	if payload.Notes != nil {
		notes, err = models.ValidateOptionalText(payload.Notes, models.NotesMaxLength)
		if err != nil {
			return nil, err
		}
	}

	updated, err := s.store.Update(ctx, normalized, nextStatus, label, notes)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeUpdateFailed, "failed to update allowlist entry", err)
	}

	s.recordAudit(ctx, models.AuditEntry{
		RequestID:   requestID,
		Operation:   models.AuditOpUpdate,
		Email:       normalized,
		StaffUserID: staffUserID,
		Prev:        models.Snapshot(current),
		Next:        models.Snapshot(updated),
	})
	s.publishChange(ctx, models.AuditOpUpdate, normalized, requestID)

	return updated, nil
}

// AuditHistory returns the mutation trail for one email, newest first.
func (s *AllowlistService) AuditHistory(ctx context.Context, email string, limit int) ([]models.AuditEntry, error) {
	normalized := models.NormalizeEmail(email)
	entries, err := s.audit.ListByEmail(ctx, normalized, limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to fetch audit history", err)
	}
	return entries, nil
}

// recordAudit is best-effort: audit completeness never outranks the primary
// mutation's success.
func (s *AllowlistService) recordAudit(ctx context.Context, entry models.AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("failed to record audit entry",
			zap.String("request_id", entry.RequestID),
			zap.String("operation", entry.Operation),
			zap.String("email", entry.Email),
			zap.Error(err),
		)
	}
}

func (s *AllowlistService) publishChange(ctx context.Context, operation, email, requestID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.StreamAllowlist, events.Event{
		Type: events.EventAllowlistChanged,
		Payload: map[string]any{
			"operation":  operation,
			"email":      email,
			"request_id": requestID,
		},
	})
	if err != nil {
		s.log.Warn("failed to publish allowlist event", zap.Error(err))
	}
}
