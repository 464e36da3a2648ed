package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gatechat/allowlist-api/internal/events"
	"github.com/gatechat/allowlist-api/internal/models"
	"github.com/gatechat/allowlist-api/internal/repositories"
)

// fakeStore is an in-memory AllowlistStore keyed on email.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]models.AllowedEmail
	failAll bool

	listCalls   int
	insertCalls int
	updateCalls int
	batchCalls  int
}

func newFakeStore(seed ...models.AllowedEmail) *fakeStore {
	rows := make(map[string]models.AllowedEmail)
	for _, r := range seed {
		rows[r.Email] = r
	}
	return &fakeStore{rows: rows}
}

var errStoreDown = &storeError{}

type storeError struct{}

func (*storeError) Error() string { return "store unavailable" }

func (f *fakeStore) List(_ context.Context, filter repositories.ListFilter) ([]models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.failAll {
		return nil, errStoreDown
	}
	var out []models.AllowedEmail
	for _, r := range f.rows {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Search != nil {
			needle := strings.ToLower(strings.TrimSpace(*filter.Search))
			label := ""
			if r.Label != nil {
				label = strings.ToLower(*r.Label)
			}
			if !strings.Contains(r.Email, needle) && !strings.Contains(label, needle) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	if r, ok := f.rows[email]; ok {
		copied := r
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetManyByEmail(_ context.Context, emails []string) ([]models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	var out []models.AllowedEmail
	for _, email := range emails {
		if r, ok := f.rows[email]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ExistingEmails(_ context.Context, emails []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errStoreDown
	}
	var out []string
	for _, email := range emails {
		if _, ok := f.rows[email]; ok {
			out = append(out, email)
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(_ context.Context, e *models.AllowedEmail) (*models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.failAll {
		return nil, errStoreDown
	}
	f.rows[e.Email] = *e
	copied := *e
	return &copied, nil
}

func (f *fakeStore) Update(_ context.Context, email, status string, label, notes *string) (*models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.failAll {
		return nil, errStoreDown
	}
	r := f.rows[email]
	r.Status = status
	r.Label = label
	r.Notes = notes
	f.rows[email] = r
	copied := r
	return &copied, nil
}

func (f *fakeStore) InsertMany(_ context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.failAll {
		return nil, errStoreDown
	}
	out := make([]models.AllowedEmail, len(entries))
	for i, e := range entries {
		f.rows[e.Email] = e
		out[i] = e
	}
	return out, nil
}

func (f *fakeStore) UpsertMany(_ context.Context, entries []models.AllowedEmail) ([]models.AllowedEmail, error) {
	return f.InsertMany(nil, entries)
}

// fakeAudit collects recorded entries; fail makes every call fail.
type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	fail    bool
}

func (f *fakeAudit) Record(_ context.Context, entry models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) ListByEmail(_ context.Context, email string, limit int) ([]models.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errStoreDown
	}
	var out []models.AuditEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].Email == email {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeAudit) recorded() []models.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
