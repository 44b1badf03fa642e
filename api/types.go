package api

import (
	"context"

	"github.com/Manimaran10/task-manager/domain"
	"github.com/Manimaran10/task-manager/tasks"
)

// TaskService is the mutation service surface used by the handlers. It is the
// sole path through which broadcasts may be triggered.
type TaskService interface {
	Create(ctx context.Context, creatorID string, in tasks.CreateInput) (domain.Task, error)
	Get(ctx context.Context, actorID, taskID string) (domain.Task, error)
	Update(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error)
	Delete(ctx context.Context, actorID, taskID string) error
	List(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error)
	Dashboard(ctx context.Context, userID string) (domain.Dashboard, error)
}

// UserStore abstracts account persistence for the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	FindUserByID(ctx context.Context, id string) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (domain.User, error)
	SearchUsers(ctx context.Context, query, excludeID string) ([]domain.User, error)
}

// NotificationStore abstracts notification persistence for the handlers.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type createTaskRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required"`
	DueDate     string `json:"dueDate" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssigneeID  string `json:"assigneeId" validate:"required"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=100"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      *string `json:"status" validate:"omitempty,oneof=todo in_progress review completed"`
	AssigneeID  *string `json:"assigneeId"`
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int64         `json:"total"`
}

type unreadCountResponse struct {
	Count int64 `json:"count"`
}

type messageResponse struct {
	Message string `json:"message"`
}
