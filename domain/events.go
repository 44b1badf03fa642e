package domain

import (
	"encoding/json"
	"time"
)

// Push event kinds carried over the channel. Created, updated and assigned events
// carry a hydrated task snapshot; deleted carries only the task id.
const (
	TaskCreated  = "task:created"
	TaskUpdated  = "task:updated"
	TaskDeleted  = "task:deleted"
	TaskAssigned = "task:assigned"
)

// Event is the wire frame for the push channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DeletedPayload is the deliberately minimal payload of a task:deleted event.
type DeletedPayload struct {
	TaskID string `json:"taskId"`
}

// AssignedPayload is the targeted task:assigned notification payload.
type AssignedPayload struct {
	Task       Task      `json:"task"`
	AssignedBy string    `json:"assignedBy"`
	Timestamp  time.Time `json:"timestamp"`
}
