package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Manimaran10/task-manager/domain"
	"github.com/Manimaran10/task-manager/tasks"
)

type memUserStore struct {
	byID    map[string]domain.User
	byEmail map[string]domain.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[string]domain.User{}, byEmail: map[string]domain.User{}}
}

func (s *memUserStore) CreateUser(ctx context.Context, u domain.User) error {
	if _, ok := s.byEmail[u.Email]; ok {
		return domain.Validationf("email already registered")
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u
	return nil
}

func (s *memUserStore) FindUserByID(ctx context.Context, id string) (domain.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *memUserStore) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	return u, nil
}

func (s *memUserStore) SearchUsers(ctx context.Context, query, excludeID string) ([]domain.User, error) {
	var out []domain.User
	for _, u := range s.byID {
		if u.ID == excludeID {
			continue
		}
		if query == "" || strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubTaskService struct {
	createFn func(ctx context.Context, creatorID string, in tasks.CreateInput) (domain.Task, error)
	deleteFn func(ctx context.Context, actorID, taskID string) error
	listFn   func(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error)
}

func (s *stubTaskService) Create(ctx context.Context, creatorID string, in tasks.CreateInput) (domain.Task, error) {
	if s.createFn == nil {
		return domain.Task{}, fmt.Errorf("unexpected Create call")
	}
	return s.createFn(ctx, creatorID, in)
}

func (s *stubTaskService) Get(ctx context.Context, actorID, taskID string) (domain.Task, error) {
	return domain.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
}

func (s *stubTaskService) Update(ctx context.Context, actorID, taskID string, upd domain.TaskUpdate) (domain.Task, error) {
	return domain.Task{}, fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
}

func (s *stubTaskService) Delete(ctx context.Context, actorID, taskID string) error {
	if s.deleteFn == nil {
		return fmt.Errorf("unexpected Delete call")
	}
	return s.deleteFn(ctx, actorID, taskID)
}

func (s *stubTaskService) List(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, userID, filter, opts)
}

func (s *stubTaskService) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	return domain.Dashboard{}, nil
}

type stubNotes struct{}

func (stubNotes) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return nil, nil
}
func (stubNotes) MarkRead(ctx context.Context, id, userID string) error    { return nil }
func (stubNotes) MarkAllRead(ctx context.Context, userID string) error     { return nil }
func (stubNotes) UnreadCount(ctx context.Context, userID string) (int64, error) { return 0, nil }

func newTestAPI(svc TaskService) (*echo.Echo, *Auth, *memUserStore) {
	auth := NewAuth([]byte("test-secret"), time.Hour)
	users := newMemUserStore()
	e := echo.New()
	Register(e, auth, users, svc, stubNotes{})
	return e, auth, users
}

func doJSON(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginFlow(t *testing.T) {
	e, _, _ := newTestAPI(&stubTaskService{})

	rec := doJSON(e, http.MethodPost, "/api/auth/register", "",
		`{"name":"Ann","email":"ann@example.com","password":"longenough"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body)
	}
	var reg authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if reg.Token == "" || reg.User.ID == "" {
		t.Fatalf("expected user and token, got %+v", reg)
	}
	if strings.Contains(rec.Body.String(), "passwordHash") {
		t.Fatal("password hash must never be serialized")
	}

	rec = doJSON(e, http.MethodPost, "/api/auth/register", "",
		`{"name":"Ann2","email":"ann@example.com","password":"longenough"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate email: expected 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/auth/login", "",
		`{"email":"ann@example.com","password":"longenough"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body)
	}

	rec = doJSON(e, http.MethodPost, "/api/auth/login", "",
		`{"email":"ann@example.com","password":"wrongpass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/auth/me", reg.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
}

func TestTaskEndpointsRequireAuth(t *testing.T) {
	e, _, _ := newTestAPI(&stubTaskService{})

	for _, path := range []string{"/api/tasks", "/api/dashboard", "/api/notifications"} {
		rec := doJSON(e, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestCreateTaskValidatesBody(t *testing.T) {
	svc := &stubTaskService{
		createFn: func(ctx context.Context, creatorID string, in tasks.CreateInput) (domain.Task, error) {
			return domain.Task{ID: "t1", Title: in.Title, CreatorID: creatorID, Status: domain.StatusTodo}, nil
		},
	}
	e, auth, _ := newTestAPI(svc)
	token, _ := auth.IssueToken("u1", "u@example.com")

	rec := doJSON(e, http.MethodPost, "/api/tasks", token, `{"title":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body fields: expected 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks", token,
		`{"title":"T","description":"d","dueDate":"not-a-date","assigneeId":"u2"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad dueDate: expected 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks", token,
		`{"title":"T","description":"d","dueDate":"2025-07-01T00:00:00Z","priority":"high","assigneeId":"u2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid create: expected 201, got %d (%s)", rec.Code, rec.Body)
	}
}

func TestDeleteTaskMapsAccessDenied(t *testing.T) {
	svc := &stubTaskService{
		deleteFn: func(ctx context.Context, actorID, taskID string) error {
			return fmt.Errorf("task %s: %w", taskID, domain.ErrAccessDenied)
		},
	}
	e, auth, _ := newTestAPI(svc)
	token, _ := auth.IssueToken("u1", "u@example.com")

	rec := doJSON(e, http.MethodDelete, "/api/tasks/t1", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestListTasksEnvelope(t *testing.T) {
	svc := &stubTaskService{
		listFn: func(ctx context.Context, userID string, filter domain.TaskFilter, opts domain.ListOptions) ([]domain.Task, int64, error) {
			if filter.Status != domain.StatusTodo || opts.Page != 2 {
				return nil, 0, fmt.Errorf("unexpected query: %+v %+v", filter, opts)
			}
			return []domain.Task{{ID: "t1"}}, 7, nil
		},
	}
	e, auth, _ := newTestAPI(svc)
	token, _ := auth.IssueToken("u1", "u@example.com")

	rec := doJSON(e, http.MethodGet, "/api/tasks?status=todo&page=2", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d (%s)", rec.Code, rec.Body)
	}
	var resp tasksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if resp.Total != 7 || len(resp.Tasks) != 1 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestListTasksRejectsBadPaging(t *testing.T) {
	e, auth, _ := newTestAPI(&stubTaskService{})
	token, _ := auth.IssueToken("u1", "u@example.com")

	for _, q := range []string{"page=0", "page=x", "limit=0", "limit=101", "sortBy=evil"} {
		rec := doJSON(e, http.MethodGet, "/api/tasks?"+q, token, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}
