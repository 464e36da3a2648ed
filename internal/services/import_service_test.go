package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatechat/allowlist-api/internal/errs"
	"github.com/gatechat/allowlist-api/internal/models"
)

func newImportService(store *fakeStore, audit *fakeAudit) *ImportService {
	return NewImportService(store, audit, &fakePublisher{}, 500, zap.NewNop())
}

func importErrCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *errs.Error
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeInsert, ParseMode(""))
	assert.Equal(t, ModeInsert, ParseMode("insert"))
	assert.Equal(t, ModeInsert, ParseMode("anything-else"))
	assert.Equal(t, ModeUpsert, ParseMode("upsert"))
	assert.Equal(t, ModeUpsert, ParseMode(" UPSERT "))
}

func TestParseCSV(t *testing.T) {
	svc := newImportService(newFakeStore(), &fakeAudit{})

	t.Run("valid csv with mixed columns", func(t *testing.T) {
		records, err := svc.ParseCSV("email,status,label\na@x.com,pending,cohort-a\nB@X.com,active,\n")
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "a@x.com", records[0].Email)
		assert.Equal(t, 2, records[0].RowNumber)
		require.NotNil(t, records[0].Status)
		assert.Equal(t, models.StatusPending, *records[0].Status)
		require.NotNil(t, records[0].Label)
		assert.Equal(t, "cohort-a", *records[0].Label)

		assert.Equal(t, "b@x.com", records[1].Email, "emails are normalized")
		assert.Equal(t, 3, records[1].RowNumber)
		assert.Nil(t, records[1].Label, "blank cell normalizes to absent")
	})

	t.Run("header is case-insensitive and order-independent", func(t *testing.T) {
		records, err := svc.ParseCSV("Label,EMAIL\nops,a@x.com\n")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "a@x.com", records[0].Email)
		require.NotNil(t, records[0].Label)
		assert.Equal(t, "ops", *records[0].Label)
	})

	t.Run("quoted fields survive", func(t *testing.T) {
		records, err := svc.ParseCSV("email,notes\na@x.com,\"line one\nline two, with comma\"\n")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NotNil(t, records[0].Notes)
		assert.Equal(t, "line one\nline two, with comma", *records[0].Notes)
	})

	t.Run("blank rows are skipped", func(t *testing.T) {
		records, err := svc.ParseCSV("email\na@x.com\n\n  \nb@x.com\n")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 2, records[0].RowNumber)
		assert.Equal(t, 5, records[1].RowNumber, "row numbers track physical rows")
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := svc.ParseCSV("   \n  ")
		require.Error(t, err)
		assert.Equal(t, errs.CodeCSVEmpty, importErrCode(t, err))
	})

	t.Run("missing email column", func(t *testing.T) {
		_, err := svc.ParseCSV("status,label\npending,x\n")
		require.Error(t, err)
		assert.Equal(t, errs.CodeCSVMissingEmail, importErrCode(t, err))
	})

	t.Run("header only", func(t *testing.T) {
		_, err := svc.ParseCSV("email,status\n")
		require.Error(t, err)
		assert.Equal(t, errs.CodeCSVEmpty, importErrCode(t, err))
	})

	t.Run("empty email cell aborts with row number", func(t *testing.T) {
		_, err := svc.ParseCSV("email,label\na@x.com,ok\n,missing\n")
		require.Error(t, err)

		var appErr *errs.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errs.CodeEmailRequired, appErr.Code)
		assert.Equal(t, "3", appErr.Details["row"])
	})

	t.Run("invalid email aborts with row number", func(t *testing.T) {
		_, err := svc.ParseCSV("email\na@x.com\nnot-an-email\n")
		require.Error(t, err)

		var appErr *errs.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errs.CodeEmailInvalid, appErr.Code)
		assert.Equal(t, "3", appErr.Details["row"])
	})

	t.Run("invalid status aborts with row number", func(t *testing.T) {
		_, err := svc.ParseCSV("email,status\na@x.com,banned\n")
		require.Error(t, err)

		var appErr *errs.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errs.CodeStatusInvalid, appErr.Code)
		assert.Equal(t, "2", appErr.Details["row"])
	})

	t.Run("label too long aborts", func(t *testing.T) {
		long := strings.Repeat("x", models.LabelMaxLength+1)
		_, err := svc.ParseCSV("email,label\na@x.com," + long + "\n")
		require.Error(t, err)
		assert.Equal(t, errs.CodeFieldTooLong, importErrCode(t, err))
	})

	t.Run("row limit enforced", func(t *testing.T) {
		small := NewImportService(newFakeStore(), &fakeAudit{}, &fakePublisher{}, 2, zap.NewNop())
		_, err := small.ParseCSV("email\na@x.com\nb@x.com\nc@x.com\n")
		require.Error(t, err)
		assert.Equal(t, errs.CodeCSVTooManyRows, importErrCode(t, err))
	})
}

func TestParseCSVDuplicates(t *testing.T) {
	svc := newImportService(newFakeStore(), &fakeAudit{})

	// Same normalized email in physical rows 3 and 7.
	csv := "email\n" +
		"a@x.com\n" + // row 2
		"dup@x.com\n" + // row 3
		"b@x.com\n" + // row 4
		"c@x.com\n" + // row 5
		"d@x.com\n" + // row 6
		"DUP@x.com\n" // row 7

	_, err := svc.ParseCSV(csv)
	require.Error(t, err)

	var appErr *errs.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errs.CodeCSVDuplicates, appErr.Code)
	assert.Contains(t, appErr.Details["duplicates"], "dup@x.com(rows 3,7)")
}

func TestParseCSVDuplicatesListsEveryPair(t *testing.T) {
	svc := newImportService(newFakeStore(), &fakeAudit{})

	_, err := svc.ParseCSV("email\na@x.com\nb@x.com\na@x.com\nb@x.com\n")
	require.Error(t, err)

	var appErr *errs.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["duplicates"], "a@x.com(rows 2,4)")
	assert.Contains(t, appErr.Details["duplicates"], "b@x.com(rows 3,5)")
}

func TestImportAgainstEmptyStorage(t *testing.T) {
	for _, mode := range []ImportMode{ModeInsert, ModeUpsert} {
		t.Run(string(mode), func(t *testing.T) {
			store := newFakeStore()
			audit := &fakeAudit{}
			svc := newImportService(store, audit)
			staff := uuid.New()

			records, err := svc.ParseCSV("email,status\na@x.com,pending\nB@X.com,active\n")
			require.NoError(t, err)

			result, err := svc.Import(context.Background(), records, mode, staff, "req-import")
			require.NoError(t, err)
			assert.Equal(t, 2, result.Inserted)
			assert.Equal(t, 0, result.Updated)

			recorded := audit.recorded()
			require.Len(t, recorded, 2)
			for _, entry := range recorded {
				assert.Equal(t, models.AuditOpCSVImport, entry.Operation)
				assert.Equal(t, "req-import", entry.RequestID)
				assert.Nil(t, entry.Prev)
				require.NotNil(t, entry.Next)
			}
		})
	}
}

func TestImportInsertModeIsAllOrNothing(t *testing.T) {
	store := newFakeStore(
		models.AllowedEmail{Email: "b@x.com", Status: models.StatusActive},
		models.AllowedEmail{Email: "c@x.com", Status: models.StatusPending},
	)
	audit := &fakeAudit{}
	svc := newImportService(store, audit)

	records := []models.CsvRecord{
		{Email: "a@x.com", RowNumber: 2},
		{Email: "b@x.com", RowNumber: 3},
		{Email: "c@x.com", RowNumber: 4},
	}

	_, err := svc.Import(context.Background(), records, ModeInsert, uuid.New(), "req")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	var appErr *errs.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["emails"], "b@x.com")
	assert.Contains(t, appErr.Details["emails"], "c@x.com")
	assert.NotContains(t, appErr.Details["emails"], "a@x.com")

	assert.Zero(t, store.batchCalls, "no rows may be written")
	assert.Empty(t, audit.recorded())
	if _, ok := store.rows["a@x.com"]; ok {
		t.Error("a@x.com must not be inserted")
	}
}

func TestImportUpsertModeClassification(t *testing.T) {
	existingLabel := "old"
	store := newFakeStore(models.AllowedEmail{
		Email:  "b@x.com",
		Status: models.StatusActive,
		Label:  &existingLabel,
	})
	audit := &fakeAudit{}
	svc := newImportService(store, audit)
	staff := uuid.New()

	records := []models.CsvRecord{
		{Email: "a@x.com", RowNumber: 2},
		{Email: "b@x.com", RowNumber: 3},
	}

	result, err := svc.Import(context.Background(), records, ModeUpsert, staff, "req")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Inserted+result.Updated, "counts cover every written row")

	byEmail := make(map[string]models.AuditEntry)
	for _, entry := range audit.recorded() {
		byEmail[entry.Email] = entry
	}
	require.Len(t, byEmail, 2)

	assert.Nil(t, byEmail["a@x.com"].Prev, "newly inserted row has nil prev")
	require.NotNil(t, byEmail["b@x.com"].Prev, "updated row carries pre-fetch snapshot")
	assert.Equal(t, models.StatusActive, byEmail["b@x.com"].Prev.Status)
	require.NotNil(t, byEmail["b@x.com"].Prev.Label)
	assert.Equal(t, "old", *byEmail["b@x.com"].Prev.Label)
}

func TestImportUpsertDefaultsOmittedStatus(t *testing.T) {
	store := newFakeStore()
	svc := newImportService(store, &fakeAudit{})

	records := []models.CsvRecord{{Email: "a@x.com", RowNumber: 2}}
	_, err := svc.Import(context.Background(), records, ModeUpsert, uuid.New(), "req")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, store.rows["a@x.com"].Status)
}

func TestImportUpsertBypassesTransitionGuard(t *testing.T) {
	// active -> pending is forbidden on the single-record path but allowed in
	// bulk import: administrative override.
	store := newFakeStore(models.AllowedEmail{Email: "a@x.com", Status: models.StatusActive})
	svc := newImportService(store, &fakeAudit{})

	pending := models.StatusPending
	records := []models.CsvRecord{{Email: "a@x.com", Status: &pending, RowNumber: 2}}

	result, err := svc.Import(context.Background(), records, ModeUpsert, uuid.New(), "req")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, models.StatusPending, store.rows["a@x.com"].Status)
}

func TestImportStorageFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.failAll = true
	svc := newImportService(store, &fakeAudit{})

	records := []models.CsvRecord{{Email: "a@x.com", RowNumber: 2}}

	_, err := svc.Import(context.Background(), records, ModeInsert, uuid.New(), "req")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInternal))
}

func TestImportAuditFailuresAreSwallowed(t *testing.T) {
	store := newFakeStore()
	audit := &fakeAudit{fail: true}
	svc := newImportService(store, audit)

	records := []models.CsvRecord{
		{Email: "a@x.com", RowNumber: 2},
		{Email: "b@x.com", RowNumber: 3},
	}

	result, err := svc.Import(context.Background(), records, ModeInsert, uuid.New(), "req")
	require.NoError(t, err, "audit failures must not fail the import")
	assert.Equal(t, 2, result.Inserted)
}
