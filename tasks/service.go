package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/domain"
)

// Repository abstracts persistence for the mutation service.
type Repository interface {
	CreateTask(ctx context.Context, t domain.Task) error
	FindTask(ctx context.Context, id string) (domain.Task, error)
	GetTaskWithDetails(ctx context.Context, id string) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, upd domain.TaskUpdate) error
	DeleteTask(ctx context.Context, id string) error
	FindUserTasks(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error)
	DashboardStats(ctx context.Context, userID string) (domain.DashboardStats, error)
	FindUserByID(ctx context.Context, id string) (domain.User, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
}

// Broadcaster emits push events. Sends are fire-and-forget; the mutation's
// outcome is decided before any send is issued.
type Broadcaster interface {
	BroadcastGlobal(event string, payload any)
	NotifyUser(userID, event string, payload any)
}

// Service performs task mutations and is the sole entry point permitted to
// trigger broadcasts. Every successful mutation follows
// validate -> authorize -> persist -> rehydrate -> broadcast.
type Service struct {
	repo  Repository
	bc    Broadcaster
	now   func() time.Time
	newID func() string
}

func NewService(repo Repository, bc Broadcaster) *Service {
	return &Service{repo: repo, bc: bc, now: time.Now, newID: uuid.NewString}
}

// CreateInput are the caller-supplied fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    domain.TaskPriority
	AssigneeID  string
}

// Create persists a new task and broadcasts task:created; when the assignee
// differs from the creator it additionally notifies the assignee's room.
func (s *Service) Create(ctx context.Context, creatorID string, in CreateInput) (domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Task{}, domain.Validationf("title is required")
	}
	assignee, err := s.repo.FindUserByID(ctx, in.AssigneeID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("assignee: %w", err)
	}
	creator, err := s.repo.FindUserByID(ctx, creatorID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("creator: %w", err)
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := s.now().UTC()
	task := domain.Task{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Priority:    priority,
		Status:      domain.StatusTodo,
		CreatorID:   creatorID,
		AssigneeID:  assignee.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}

	if assignee.ID != creatorID {
		s.persistAssignmentNote(ctx, assignee.ID, creator.Name, task)
	}

	hydrated, err := s.repo.GetTaskWithDetails(ctx, task.ID)
	if err != nil {
		return domain.Task{}, err
	}

	s.bc.BroadcastGlobal(domain.TaskCreated, hydrated)
	if assignee.ID != creatorID {
		s.bc.NotifyUser(assignee.ID, domain.TaskAssigned, domain.AssignedPayload{
			Task:       hydrated,
			AssignedBy: creator.Name,
			Timestamp:  s.now().UTC(),
		})
	}
	return hydrated, nil
}

// Get returns the hydrated task; only its creator or current assignee may read it.
func (s *Service) Get(ctx context.Context, actorID, taskID string) (domain.Task, error) {
	task, err := s.repo.GetTaskWithDetails(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.CreatorID != actorID && task.AssigneeID != actorID {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrAccessDenied)
	}
	return task, nil
}

// Update persists the change and broadcasts task:updated; when the assignee
// field changed, the new assignee is additionally notified with task:assigned.
// The previous assignee receives only the generic update.
func (s *Service) Update(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	if upd.Empty() {
		return domain.Task{}, domain.Validationf("no fields to update")
	}
	task, err := s.repo.FindTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.CreatorID != actorID && task.AssigneeID != actorID {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrAccessDenied)
	}

	assigneeChanged := upd.AssigneeID != nil && *upd.AssigneeID != task.AssigneeID
	if assigneeChanged {
		if _, err := s.repo.FindUserByID(ctx, *upd.AssigneeID); err != nil {
			return domain.Task{}, fmt.Errorf("new assignee: %w", err)
		}
	}

	if err := s.repo.UpdateTask(ctx, taskID, upd); err != nil {
		return domain.Task{}, err
	}
	hydrated, err := s.repo.GetTaskWithDetails(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}

	if assigneeChanged {
		actorName := actorID
		if actor, err := s.repo.FindUserByID(ctx, actorID); err == nil {
			actorName = actor.Name
		}
		s.persistAssignmentNote(ctx, *upd.AssigneeID, actorName, hydrated)

		s.bc.BroadcastGlobal(domain.TaskUpdated, hydrated)
		s.bc.NotifyUser(*upd.AssigneeID, domain.TaskAssigned, domain.AssignedPayload{
			Task:       hydrated,
			AssignedBy: actorName,
			Timestamp:  s.now().UTC(),
		})
		return hydrated, nil
	}

	s.bc.BroadcastGlobal(domain.TaskUpdated, hydrated)
	return hydrated, nil
}

// Delete removes the task; only its creator may delete it. Consumers receive
// only the identifier, the entity no longer exists.
func (s *Service) Delete(ctx context.Context, actorID, taskID string) error {
	task, err := s.repo.FindTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.CreatorID != actorID {
		return fmt.Errorf("only the creator may delete task %s: %w", taskID, domain.ErrAccessDenied)
	}
	if err := s.repo.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.bc.BroadcastGlobal(domain.TaskDeleted, domain.DeletedPayload{TaskID: taskID})
	return nil
}

// List returns a hydrated page of the user's tasks with the total match count.
func (s *Service) List(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
	return s.repo.FindUserTasks(ctx, userID, filter, opts)
}

// Dashboard returns the user's aggregate counters and recent tasks.
func (s *Service) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	stats, err := s.repo.DashboardStats(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	recent, _, err := s.repo.FindUserTasks(ctx, userID, domain.TaskFilter{}, domain.ListOptions{
		SortBy:    "createdAt",
		SortOrder: "desc",
		Limit:     5,
	})
	if err != nil {
		return domain.Dashboard{}, err
	}
	return domain.Dashboard{DashboardStats: stats, RecentTasks: recent}, nil
}

// persistAssignmentNote records a durable notification for the assignee so the
// assignment survives a missed push. Failures are logged, never fatal.
func (s *Service) persistAssignmentNote(ctx context.Context, assigneeID, byName string, task domain.Task) {
	note := domain.Notification{
		ID:        s.newID(),
		UserID:    assigneeID,
		Type:      domain.NotificationTaskAssigned,
		Message:   fmt.Sprintf("%s assigned a task to you: %q", byName, task.Title),
		TaskID:    task.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateNotification(ctx, note); err != nil {
		log.WithError(err).WithField("user", assigneeID).Error("failed to persist assignment notification")
	}
}
