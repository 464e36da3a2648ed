package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit operations
const (
	AuditOpInsert    = "insert"
	AuditOpUpdate    = "update"
	AuditOpCSVImport = "csv-import"
)

// AuditEntry is an append-only record of one allowlist mutation. Prev is nil
// for inserts. Entries are never updated or deleted; Email is a soft
// reference, history stays intact if the target row later changes.
type AuditEntry struct {
	ID          uuid.UUID     `json:"id"`
	RequestID   string        `json:"request_id"`
	Operation   string        `json:"operation"`
	Email       string        `json:"email"`
	StaffUserID uuid.UUID     `json:"staff_user_id"`
	Prev        *AllowedEmail `json:"prev,omitempty"`
	Next        *AllowedEmail `json:"next,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Snapshot copies the fields recorded in audit prev/next payloads.
func Snapshot(row *AllowedEmail) *AllowedEmail {
	if row == nil {
		return nil
	}
	copied := *row
	return &copied
}
