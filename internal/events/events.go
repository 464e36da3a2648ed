package events

import "context"

// Event types
const (
	EventAllowlistChanged = "allowlist_changed"
	EventImportCompleted  = "allowlist_import_completed"
)

// StreamAllowlist is the pub/sub channel carrying allowlist mutations for
// live staff dashboards.
const StreamAllowlist = "events:allowlist"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
