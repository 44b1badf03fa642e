package domain

import "time"

type NotificationType string

const NotificationTaskAssigned NotificationType = "task_assigned"

// Notification is a persisted per-user message, created alongside the
// best-effort push so the recipient still sees it after reconnecting.
type Notification struct {
	ID        string           `json:"id" bson:"_id"`
	UserID    string           `json:"userId" bson:"userId"`
	Type      NotificationType `json:"type" bson:"type"`
	Message   string           `json:"message" bson:"message"`
	TaskID    string           `json:"taskId,omitempty" bson:"taskId,omitempty"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
}
