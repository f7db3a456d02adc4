package eventbus

import "time"

type EventType string

const (
	BatchCompleted        EventType = "batch.completed"
	RecordWritten         EventType = "record.written"
	RecordWriteFailed     EventType = "record.write_failed"
	RecordCreated         EventType = "record.created"
	RecordDeleted         EventType = "record.deleted"
	ViewReloaded          EventType = "view.reloaded"
	ViewDefinitionChanged EventType = "view.definition_changed"
)

// Event is a notification fanned out to every subscriber, e.g. the SSE
// stream the chart refreshes from.
type Event struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ResourceID string            `json:"resource_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
