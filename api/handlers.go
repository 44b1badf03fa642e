package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Manimaran10/task-manager/domain"
	"github.com/Manimaran10/task-manager/tasks"
)

const maxBodySize = 1 << 20

var validate = validator.New()

// Register wires up all REST routes on the provided Echo instance.
func Register(e *echo.Echo, auth *Auth, users UserStore, svc TaskService, notes NotificationStore) {
	e.POST("/api/auth/register", registerUser(auth, users))
	e.POST("/api/auth/login", loginUser(auth, users))
	e.GET("/api/auth/me", currentUser(auth, users))
	e.GET("/api/users", searchUsers(auth, users))

	e.POST("/api/tasks", createTask(auth, svc))
	e.GET("/api/tasks", listTasks(auth, svc))
	e.GET("/api/tasks/:id", getTask(auth, svc))
	e.PUT("/api/tasks/:id", updateTask(auth, svc))
	e.DELETE("/api/tasks/:id", deleteTask(auth, svc))
	e.GET("/api/dashboard", getDashboard(auth, svc))

	e.GET("/api/notifications", listNotifications(auth, notes))
	e.PUT("/api/notifications/:id/read", markNotificationRead(auth, notes))
	e.PUT("/api/notifications/read-all", markAllNotificationsRead(auth, notes))
	e.GET("/api/notifications/unread-count", unreadNotificationCount(auth, notes))

	e.GET("/healthz", healthz)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// decodeBody reads a size-limited JSON request body into dst and rejects
// unknown fields.
func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Validationf("invalid body")
	}
	if err := validate.Struct(dst); err != nil {
		return domain.Validationf("%v", err)
	}
	return nil
}

// httpError maps domain errors onto REST status codes.
func httpError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrAccessDenied):
		return c.JSON(http.StatusForbidden, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return c.JSON(http.StatusUnauthorized, messageResponse{Message: err.Error()})
	default:
		log.WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, messageResponse{Message: "internal error"})
	}
}

func authedUser(c echo.Context, auth Authenticator) (string, error) {
	return auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
}

// --- auth ---

func registerUser(auth *Auth, users UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeBody(c, &req); err != nil {
			return httpError(c, err)
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			return httpError(c, err)
		}
		user := domain.User{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := users.CreateUser(c.Request().Context(), user); err != nil {
			return httpError(c, err)
		}
		token, err := auth.IssueToken(user.ID, user.Email)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
	}
}

func loginUser(auth *Auth, users UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return httpError(c, err)
		}
		user, err := users.FindUserByEmail(c.Request().Context(), req.Email)
		if err != nil || !CheckPassword(user.PasswordHash, req.Password) {
			// Same answer for unknown email and wrong password.
			return httpError(c, domain.ErrAuthenticationFailed)
		}
		token, err := auth.IssueToken(user.ID, user.Email)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, authResponse{User: user, Token: token})
	}
}

func currentUser(auth *Auth, users UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		user, err := users.FindUserByID(c.Request().Context(), userID)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func searchUsers(auth *Auth, users UserStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		found, err := users.SearchUsers(c.Request().Context(), c.QueryParam("q"), userID)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, found)
	}
}

// --- tasks ---

func createTask(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return httpError(c, err)
		}
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return httpError(c, domain.Validationf("invalid dueDate"))
		}
		task, err := svc.Create(c.Request().Context(), userID, tasks.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			DueDate:     due,
			Priority:    domain.TaskPriority(req.Priority),
			AssigneeID:  req.AssigneeID,
		})
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func listTasks(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		filter := domain.TaskFilter{
			Status:   domain.TaskStatus(c.QueryParam("status")),
			Priority: domain.TaskPriority(c.QueryParam("priority")),
			Assigned: c.QueryParam("assigned") == "true",
			Created:  c.QueryParam("created") == "true",
			Overdue:  c.QueryParam("overdue") == "true",
		}
		opts := domain.ListOptions{
			SortBy:    c.QueryParam("sortBy"),
			SortOrder: c.QueryParam("sortOrder"),
		}
		if v := c.QueryParam("page"); v != "" {
			if opts.Page, err = strconv.Atoi(v); err != nil || opts.Page <= 0 {
				return httpError(c, domain.Validationf("invalid page"))
			}
		}
		if v := c.QueryParam("limit"); v != "" {
			if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit <= 0 || opts.Limit > domain.MaxPageLimit {
				return httpError(c, domain.Validationf("invalid limit"))
			}
		}
		switch opts.SortBy {
		case "", "dueDate", "createdAt", "priority", "title":
		default:
			return httpError(c, domain.Validationf("invalid sortBy"))
		}
		page, total, err := svc.List(c.Request().Context(), userID, filter, opts)
		if err != nil {
			return httpError(c, err)
		}
		if page == nil {
			page = []domain.Task{}
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: page, Total: total})
	}
}

func getTask(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		task, err := svc.Get(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func updateTask(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return httpError(c, err)
		}
		upd := domain.TaskUpdate{
			Title:       req.Title,
			Description: req.Description,
			AssigneeID:  req.AssigneeID,
		}
		if req.DueDate != nil {
			due, err := time.Parse(time.RFC3339, *req.DueDate)
			if err != nil {
				return httpError(c, domain.Validationf("invalid dueDate"))
			}
			upd.DueDate = &due
		}
		if req.Priority != nil {
			p := domain.TaskPriority(*req.Priority)
			upd.Priority = &p
		}
		if req.Status != nil {
			st := domain.TaskStatus(*req.Status)
			upd.Status = &st
		}
		task, err := svc.Update(c.Request().Context(), userID, c.Param("id"), upd)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		if err := svc.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "task deleted"})
	}
}

func getDashboard(auth Authenticator, svc TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		dash, err := svc.Dashboard(c.Request().Context(), userID)
		if err != nil {
			return httpError(c, err)
		}
		if dash.RecentTasks == nil {
			dash.RecentTasks = []domain.Task{}
		}
		return c.JSON(http.StatusOK, dash)
	}
}

// --- notifications ---

func listNotifications(auth Authenticator, notes NotificationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		found, err := notes.ListNotifications(c.Request().Context(), userID, c.QueryParam("unread") == "true")
		if err != nil {
			return httpError(c, err)
		}
		if found == nil {
			found = []domain.Notification{}
		}
		return c.JSON(http.StatusOK, found)
	}
}

func markNotificationRead(auth Authenticator, notes NotificationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		if err := notes.MarkRead(c.Request().Context(), c.Param("id"), userID); err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "notification read"})
	}
}

func markAllNotificationsRead(auth Authenticator, notes NotificationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		if err := notes.MarkAllRead(c.Request().Context(), userID); err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, messageResponse{Message: "all notifications read"})
	}
}

func unreadNotificationCount(auth Authenticator, notes NotificationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := authedUser(c, auth)
		if err != nil {
			return httpError(c, err)
		}
		count, err := notes.UnreadCount(c.Request().Context(), userID)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, unreadCountResponse{Count: count})
	}
}
