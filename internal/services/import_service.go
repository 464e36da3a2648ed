package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatechat/allowlist-api/internal/csvparse"
	"github.com/gatechat/allowlist-api/internal/errs"
	"github.com/gatechat/allowlist-api/internal/events"
	"github.com/gatechat/allowlist-api/internal/models"
)

type ImportMode string

const (
	ModeInsert ImportMode = "insert"
	ModeUpsert ImportMode = "upsert"
)

// ParseMode defaults to insert: the destructive mode must be asked for
// explicitly.
func ParseMode(value string) ImportMode {
	if strings.ToLower(strings.TrimSpace(value)) == string(ModeUpsert) {
		return ModeUpsert
	}
	return ModeInsert
}

type ImportResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type ImportService struct {
	store     AllowlistStore
	audit     AuditStore
	publisher events.Publisher
	log       *zap.Logger
	maxRows   int
}

func NewImportService(store AllowlistStore, audit AuditStore, publisher events.Publisher, maxRows int, log *zap.Logger) *ImportService {
	return &ImportService{
		store:     store,
		audit:     audit,
		publisher: publisher,
		log:       log,
		maxRows:   maxRows,
	}
}

// ParseCSV tokenizes and validates the raw CSV text into records ready for
// reconciliation. The header row is row 1; any invalid row aborts the whole
// batch with that row's number. Intra-file duplicates abort after the full
// scan, listing every duplicate pair.
func (s *ImportService) ParseCSV(csvText string) ([]models.CsvRecord, error) {
	if strings.TrimSpace(csvText) == "" {
		return nil, errs.New(errs.KindValidation, errs.CodeCSVEmpty, "csv payload is empty")
	}

	rows := csvparse.Parse(strings.TrimSpace(csvText))
	if len(rows) == 0 {
		return nil, errs.New(errs.KindValidation, errs.CodeCSVEmpty, "csv contains no rows")
	}

	header := make([]string, len(rows[0]))
	emailIdx := -1
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
		if header[i] == "email" {
			emailIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, errs.New(errs.KindValidation, errs.CodeCSVMissingEmail, "required column email is missing")
	}

	var records []models.CsvRecord
	for i := 1; i < len(rows); i++ {
		cells := rows[i]
		if csvparse.IsBlankRow(cells) {
			continue
		}

		record := models.CsvRecord{RowNumber: i + 1}
		for idx, column := range header {
			var value string
			if idx < len(cells) {
				value = strings.TrimSpace(cells[idx])
			}

			switch column {
			case "email":
				// An empty cell surfaces EMAIL_REQUIRED, same as the
				// single-record path.
				trimmed, err := models.ValidateEmail(value)
				if err != nil {
					return nil, withRow(err, record.RowNumber)
				}
				record.Email = models.NormalizeEmail(trimmed)
			case "status":
				if value != "" {
					status, err := models.ValidateStatus(value)
					if err != nil {
						return nil, withRow(err, record.RowNumber)
					}
					record.Status = &status
				}
			case "label":
				label, err := models.ValidateOptionalText(&value, models.LabelMaxLength)
				if err != nil {
					return nil, withRow(err, record.RowNumber)
				}
				record.Label = label
			case "notes":
				notes, err := models.ValidateOptionalText(&value, models.NotesMaxLength)
				if err != nil {
					return nil, withRow(err, record.RowNumber)
				}
				record.Notes = notes
			}
		}

		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, errs.New(errs.KindValidation, errs.CodeCSVEmpty, "csv contains no valid rows")
	}
	if s.maxRows > 0 && len(records) > s.maxRows {
		return nil, errs.New(errs.KindValidation, errs.CodeCSVTooManyRows, "csv exceeds the row limit").
			WithDetail("max_rows", strconv.Itoa(s.maxRows))
	}

	if err := checkDuplicates(records); err != nil {
		return nil, err
	}
	return records, nil
}

// checkDuplicates scans the whole batch before reporting so the error lists
// every duplicate pair, not just the first.
func checkDuplicates(records []models.CsvRecord) error {
	seen := make(map[string]int, len(records))
	var duplicates []string

	for _, record := range records {
		if firstRow, ok := seen[record.Email]; ok {
			duplicates = append(duplicates, fmt.Sprintf("%s(rows %d,%d)", record.Email, firstRow, record.RowNumber))
		} else {
			seen[record.Email] = record.RowNumber
		}
	}

	if len(duplicates) > 0 {
		return errs.New(errs.KindValidation, errs.CodeCSVDuplicates, "csv contains duplicate emails").
			WithDetail("duplicates", strings.Join(duplicates, ", "))
	}
	return nil
}

// Import reconciles the validated records against storage. Insert mode is
// all-or-nothing; upsert mode overwrites existing rows and classifies counts
// by pre-fetch set membership. The status transition guard is deliberately
// bypassed here: imports are administrative overrides.
func (s *ImportService) Import(ctx context.Context, records []models.CsvRecord, mode ImportMode, staffUserID uuid.UUID, requestID string) (*ImportResult, error) {
	emails := make([]string, len(records))
	payloads := make([]models.AllowedEmail, len(records))
	for i, record := range records {
		status := models.StatusPending
		if record.Status != nil {
			status = *record.Status
		}
		emails[i] = record.Email
		payloads[i] = models.AllowedEmail{
			Email:     record.Email,
			Status:    status,
			Label:     record.Label,
			Notes:     record.Notes,
			CreatedBy: &staffUserID,
		}
	}

	var result *ImportResult
	var err error
	if mode == ModeInsert {
		result, err = s.importInsert(ctx, emails, payloads, staffUserID, requestID)
	} else {
		result, err = s.importUpsert(ctx, emails, payloads, staffUserID, requestID)
	}
	if err != nil {
		return nil, err
	}

	s.publishImport(ctx, requestID, result)
	return result, nil
}

func (s *ImportService) importInsert(ctx context.Context, emails []string, payloads []models.AllowedEmail, staffUserID uuid.UUID, requestID string) (*ImportResult, error) {
	existing, err := s.store.ExistingEmails(ctx, emails)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to check existing emails", err)
	}
	if len(existing) > 0 {
		return nil, errs.New(errs.KindConflict, errs.CodeAlreadyExists, "csv contains emails already on the allowlist").
			WithDetail("emails", strings.Join(existing, ","))
	}

	inserted, err := s.store.InsertMany(ctx, payloads)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeInsertFailed, "csv import failed", err)
	}

	entries := make([]models.AuditEntry, len(inserted))
	for i := range inserted {
		entries[i] = models.AuditEntry{
			RequestID:   requestID,
			Operation:   models.AuditOpCSVImport,
			Email:       inserted[i].Email,
			StaffUserID: staffUserID,
			Prev:        nil,
			Next:        models.Snapshot(&inserted[i]),
		}
	}
	s.recordAuditBatch(ctx, entries)

	return &ImportResult{Inserted: len(inserted), Updated: 0}, nil
}

func (s *ImportService) importUpsert(ctx context.Context, emails []string, payloads []models.AllowedEmail, staffUserID uuid.UUID, requestID string) (*ImportResult, error) {
	previous, err := s.store.GetManyByEmail(ctx, emails)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeFetchFailed, "failed to fetch existing entries", err)
	}
	prevMap := make(map[string]*models.AllowedEmail, len(previous))
	for i := range previous {
		prevMap[previous[i].Email] = models.Snapshot(&previous[i])
	}

	written, err := s.store.UpsertMany(ctx, payloads)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, errs.CodeUpsertFailed, "csv overwrite failed", err)
	}

	// Classification comes from pre-fetch set membership, not from any
	// storage-reported insert/update flag.
	updated := 0
	entries := make([]models.AuditEntry, len(written))
	for i := range written {
		prev := prevMap[written[i].Email]
		if prev != nil {
			updated++
		}
		entries[i] = models.AuditEntry{
			RequestID:   requestID,
			Operation:   models.AuditOpCSVImport,
			Email:       written[i].Email,
			StaffUserID: staffUserID,
			Prev:        prev,
			Next:        models.Snapshot(&written[i]),
		}
	}
	s.recordAuditBatch(ctx, entries)

	return &ImportResult{Inserted: len(written) - updated, Updated: updated}, nil
}

// recordAuditBatch dispatches one best-effort write per entry concurrently
// and waits for all of them to settle. Relative order is unspecified and
// individual failures are logged and swallowed.
func (s *ImportService) recordAuditBatch(ctx context.Context, entries []models.AuditEntry) {
	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		go func(entry models.AuditEntry) {
			defer wg.Done()
			if err := s.audit.Record(ctx, entry); err != nil {
				s.log.Warn("failed to record audit entry",
					zap.String("request_id", entry.RequestID),
					zap.String("email", entry.Email),
					zap.Error(err),
				)
			}
		}(entries[i])
	}
	wg.Wait()
}

func (s *ImportService) publishImport(ctx context.Context, requestID string, result *ImportResult) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.StreamAllowlist, events.Event{
		Type: events.EventImportCompleted,
		Payload: map[string]any{
			"request_id": requestID,
			"inserted":   result.Inserted,
			"updated":    result.Updated,
		},
	})
	if err != nil {
		s.log.Warn("failed to publish import event", zap.Error(err))
	}
}

// withRow attaches the 1-based source row number to a validation error.
func withRow(err error, rowNumber int) error {
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return appErr.WithDetail("row", strconv.Itoa(rowNumber))
	}
	return err
}
