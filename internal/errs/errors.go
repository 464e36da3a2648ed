package errs

import "fmt"

// Kind categorizes an error for transport mapping and errors.Is checks.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

// Stable machine-readable codes surfaced to API clients.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeEmailRequired       = "EMAIL_REQUIRED"
	CodeEmailTooLong        = "EMAIL_TOO_LONG"
	CodeEmailInvalid        = "EMAIL_INVALID"
	CodeStatusInvalid       = "STATUS_INVALID"
	CodeFieldTooLong        = "FIELD_TOO_LONG"
	CodeTransitionForbidden = "STATUS_TRANSITION_FORBIDDEN"
	CodeEmptyUpdate         = "ALLOWLIST_EMPTY_UPDATE"
	CodeAlreadyExists       = "ALLOWLIST_EXISTS"
	CodeNotFound            = "ALLOWLIST_NOT_FOUND"
	CodeFetchFailed         = "ALLOWLIST_FETCH_FAILED"
	CodeInsertFailed        = "ALLOWLIST_INSERT_FAILED"
	CodeUpdateFailed        = "ALLOWLIST_UPDATE_FAILED"
	CodeUpsertFailed        = "ALLOWLIST_UPSERT_FAILED"
	CodeCSVEmpty            = "CSV_EMPTY"
	CodeCSVMissingEmail     = "CSV_MISSING_EMAIL"
	CodeCSVInvalidEmail     = "CSV_INVALID_EMAIL"
	CodeCSVDuplicates       = "CSV_DUPLICATED_IN_FILE"
	CodeCSVTooManyRows      = "CSV_TOO_MANY_ROWS"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// Error is the single tagged error type used across the service layer.
// Details carries safe, structured context (offending emails, row numbers);
// it must never contain secrets.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can test categories with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error around an underlying cause, typically a storage failure.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is category checks.
var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInternal     = &Error{Kind: KindInternal}
)
