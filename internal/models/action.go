package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueuedAction represents a deferred mutating API call awaiting replay.
// The queue is persisted as a single JSON array, so every field must
// round-trip through encoding/json.
type QueuedAction struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Body      json.RawMessage `json:"body,omitempty"`
	CreatedAt int64           `json:"created_at"`
	Retries   int             `json:"retries"`
}

// NewQueuedAction builds an action with a fresh device-unique ID.
// IDs sort by insertion order within a device: epoch-ms prefix plus a
// random suffix to break ties.
func NewQueuedAction(method, path string, body json.RawMessage) QueuedAction {
	now := time.Now()
	return QueuedAction{
		ID:        NewActionID(now),
		Method:    method,
		Path:      path,
		Body:      body,
		CreatedAt: now.UnixMilli(),
		Retries:   0,
	}
}

// NewActionID returns "<epoch-ms>-<random-suffix>".
func NewActionID(now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
