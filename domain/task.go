package domain

import "time"

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusCompleted  TaskStatus = "completed"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// UserRef is an embedded identity attached to hydrated tasks in place of a bare id.
type UserRef struct {
	ID    string `json:"id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

// Task is a single tracked work item. Creator and Assignee are populated only on
// hydrated reads; CreatorID and AssigneeID are always set.
type Task struct {
	ID          string       `json:"id" bson:"_id"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description" bson:"description"`
	DueDate     time.Time    `json:"dueDate" bson:"dueDate"`
	Priority    TaskPriority `json:"priority" bson:"priority"`
	Status      TaskStatus   `json:"status" bson:"status"`
	CreatorID   string       `json:"creatorId" bson:"creatorId"`
	AssigneeID  string       `json:"assigneeId" bson:"assigneeId"`
	Creator     *UserRef     `json:"creator,omitempty" bson:"-"`
	Assignee    *UserRef     `json:"assignee,omitempty" bson:"-"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Overdue reports whether the task is past due and not completed.
func (t Task) Overdue(now time.Time) bool {
	return t.Status != StatusCompleted && t.DueDate.Before(now)
}

// TaskUpdate carries the mutable fields of a task; nil means unchanged.
type TaskUpdate struct {
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	DueDate     *time.Time    `json:"dueDate"`
	Priority    *TaskPriority `json:"priority"`
	Status      *TaskStatus   `json:"status"`
	AssigneeID  *string       `json:"assigneeId"`
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.DueDate == nil &&
		u.Priority == nil && u.Status == nil && u.AssigneeID == nil
}
