package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gatechat/allowlist-api/internal/errs"
)

// Allowlist statuses
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusRevoked = "revoked"
)

// Field length limits enforced on every write path. Limits count characters,
// not bytes, matching the char_length checks in the schema.
const (
	EmailMaxLength = 320
	LabelMaxLength = 64
	NotesMaxLength = 512
)

// Valid status transitions: from -> []to. Self-transitions are always allowed
// and are not listed here. Bulk CSV import bypasses this table on purpose:
// imports are administrative overrides.
var ValidStatusTransitions = map[string][]string{
	StatusPending: {StatusActive},
	StatusActive:  {StatusRevoked},
	StatusRevoked: {StatusActive},
}

func IsValidTransition(from, to string) bool {
	if from == to {
		return true
	}
	allowed, ok := ValidStatusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type AllowedEmail struct {
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	Label     *string    `json:"label,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	InvitedAt *time.Time `json:"invited_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CsvRecord is one parsed and validated CSV row. RowNumber is 1-based and
// counts the header as row 1, so the first data row is 2.
type CsvRecord struct {
	Email     string
	Status    *string
	Label     *string
	Notes     *string
	RowNumber int
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims. Idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks presence, length and shape, returning the trimmed
// value. The shape check is deliberately loose: local@domain with at least
// one dot in the domain and no whitespace or extra '@'.
func ValidateEmail(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", errs.New(errs.KindValidation, errs.CodeEmailRequired, "email is required")
	}
	if utf8.RuneCountInString(trimmed) > EmailMaxLength {
		return "", errs.New(errs.KindValidation, errs.CodeEmailTooLong, "email exceeds 320 characters")
	}
	if !emailPattern.MatchString(trimmed) {
		return "", errs.New(errs.KindValidation, errs.CodeEmailInvalid, "email format is invalid")
	}
	return trimmed, nil
}

// ValidateStatus normalizes and checks the enum.
func ValidateStatus(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case StatusPending, StatusActive, StatusRevoked:
		return normalized, nil
	}
	return "", errs.New(errs.KindValidation, errs.CodeStatusInvalid, "status must be one of pending/active/revoked")
}

// ValidateOptionalText trims and bounds label/notes style fields. Empty after
// trim normalizes to nil rather than an empty string.
func ValidateOptionalText(value *string, max int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, errs.New(errs.KindValidation, errs.CodeFieldTooLong, "value is too long").
			WithDetail("max_length", strconv.Itoa(max))
	}
	return &trimmed, nil
}
