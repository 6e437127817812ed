package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeTaskService implements handlers.TaskService; unset funcs return zero values.
type fakeTaskService struct {
	createFn func(ctx context.Context, p user.Principal, req task.CreateTaskRequest) (task.Task, error)
	listFn   func(ctx context.Context, p user.Principal, f task.Filter) ([]task.Task, error)
	getFn    func(ctx context.Context, p user.Principal, id string) (task.Task, error)
	updateFn func(ctx context.Context, p user.Principal, id string, req task.UpdateTaskRequest) (task.Task, error)
	deleteFn func(ctx context.Context, p user.Principal, id string) error
}

func (f *fakeTaskService) Create(ctx context.Context, p user.Principal, req task.CreateTaskRequest) (task.Task, error) {
	if f.createFn != nil {
		return f.createFn(ctx, p, req)
	}
	return task.Task{}, nil
}

func (f *fakeTaskService) List(ctx context.Context, p user.Principal, flt task.Filter) ([]task.Task, error) {
	if f.listFn != nil {
		return f.listFn(ctx, p, flt)
	}
	return []task.Task{}, nil
}

func (f *fakeTaskService) GetByID(ctx context.Context, p user.Principal, id string) (task.Task, error) {
	if f.getFn != nil {
		return f.getFn(ctx, p, id)
	}
	return task.Task{}, nil
}

func (f *fakeTaskService) Update(ctx context.Context, p user.Principal, id string, req task.UpdateTaskRequest) (task.Task, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, p, id, req)
	}
	return task.Task{}, nil
}

func (f *fakeTaskService) Delete(ctx context.Context, p user.Principal, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, p, id)
	}
	return nil
}

var member = user.Principal{ID: "user-1", Role: user.RoleMember}

// withPrincipal stands in for RequireAuth.
func withPrincipal(p user.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxPrincipal, p)
		c.Next()
	}
}

func tasksRouter(svc handlers.TaskService, p *user.Principal) *gin.Engine {
	h := handlers.NewTasksHandler(svc)

	r := gin.New()
	r.Use(middlewares.RequestID())
	if p != nil {
		r.Use(withPrincipal(*p))
	}
	r.POST("/tasks", h.Create)
	r.GET("/tasks", h.List)
	r.GET("/tasks/:id", h.Get)
	r.PUT("/tasks/:id", h.Update)
	r.PATCH("/tasks/:id", h.Update)
	r.DELETE("/tasks/:id", h.Delete)
	return r
}

func doJSON(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTask_IgnoresOwnerInPayload(t *testing.T) {
	var gotPrincipal user.Principal
	svc := &fakeTaskService{
		createFn: func(_ context.Context, p user.Principal, req task.CreateTaskRequest) (task.Task, error) {
			gotPrincipal = p
			return task.NewFromCreateRequest(p.ID, req, time.Now())
		},
	}
	r := tasksRouter(svc, &member)

	payloads := []map[string]any{
		{"title": "Write report", "userId": "someone-else"},
		{"title": "Write report", "ownerId": "someone-else", "owner": map[string]any{"id": "x"}},
	}

	for _, body := range payloads {
		w := doJSON(r, http.MethodPost, "/tasks", body, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
		}

		var created task.Task
		if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if created.OwnerID != member.ID || gotPrincipal.ID != member.ID {
			t.Fatalf("owner = %s, principal = %s, want %s", created.OwnerID, gotPrincipal.ID, member.ID)
		}
	}
}

func TestCreateTask_BindingFailureSkipsService(t *testing.T) {
	called := false
	svc := &fakeTaskService{
		createFn: func(context.Context, user.Principal, task.CreateTaskRequest) (task.Task, error) {
			called = true
			return task.Task{}, nil
		},
	}

	w := doJSON(tasksRouter(svc, &member), http.MethodPost, "/tasks", map[string]any{"title": "ab"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatalf("service must not run on invalid input")
	}
}

func TestTasks_MissingPrincipal(t *testing.T) {
	w := doJSON(tasksRouter(&fakeTaskService{}, nil), http.MethodGet, "/tasks", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestListTasks_FilterParsing(t *testing.T) {
	var gotFilter task.Filter
	svc := &fakeTaskService{
		listFn: func(_ context.Context, _ user.Principal, f task.Filter) ([]task.Task, error) {
			gotFilter = f
			return []task.Task{{ID: "t1", Title: "one"}}, nil
		},
	}
	r := tasksRouter(svc, &member)

	w := doJSON(r, http.MethodGet, "/tasks?status=completed&priority=high", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if gotFilter.Status == nil || *gotFilter.Status != task.StatusCompleted ||
		gotFilter.Priority == nil || *gotFilter.Priority != task.PriorityHigh {
		t.Fatalf("filter not passed through: %+v", gotFilter)
	}

	var body struct {
		Items []task.Task `json:"items"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || len(body.Items) != 1 {
		t.Fatalf("unexpected list body: %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/tasks?status=done", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter: got %d", w.Code)
	}
}

func TestListTasks_ETag(t *testing.T) {
	r := tasksRouter(&fakeTaskService{}, &member)

	w := doJSON(r, http.MethodGet, "/tasks", nil, nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	w = doJSON(r, http.MethodGet, "/tasks", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", w.Code)
	}
}

func TestTaskByID_ErrorMapping(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "not found", err: apperr.NotFound("Task not found"), wantCode: http.StatusNotFound, wantErr: "not_found"},
		{name: "forbidden", err: apperr.Forbidden("Not authorized to access this task"), wantCode: http.StatusForbidden, wantErr: "forbidden"},
		{name: "validation", err: apperr.Validation("Validation error", apperr.FieldError{Field: "title", Rule: "min"}), wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "plain error", err: errors.New("db exploded"), wantCode: http.StatusInternalServerError, wantErr: "internal_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeTaskService{
				getFn:    func(context.Context, user.Principal, string) (task.Task, error) { return task.Task{}, tc.err },
				updateFn: func(context.Context, user.Principal, string, task.UpdateTaskRequest) (task.Task, error) { return task.Task{}, tc.err },
				deleteFn: func(context.Context, user.Principal, string) error { return tc.err },
			}
			r := tasksRouter(svc, &member)

			for _, req := range []struct {
				method string
				body   any
			}{
				{http.MethodGet, nil},
				{http.MethodPut, map[string]any{"status": "completed"}},
				{http.MethodPatch, map[string]any{"status": "completed"}},
				{http.MethodDelete, nil},
			} {
				w := doJSON(r, req.method, "/tasks/"+id, req.body, nil)
				if w.Code != tc.wantCode {
					t.Fatalf("%s: status = %d, want %d", req.method, w.Code, tc.wantCode)
				}

				var body bindErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error.Code != tc.wantErr {
					t.Fatalf("%s: code = %q, want %q", req.method, body.Error.Code, tc.wantErr)
				}
			}
		})
	}
}

func TestUpdateTask_PassesOnlyPresentFields(t *testing.T) {
	var got task.UpdateTaskRequest
	svc := &fakeTaskService{
		updateFn: func(_ context.Context, _ user.Principal, _ string, req task.UpdateTaskRequest) (task.Task, error) {
			got = req
			return task.Task{ID: "t1"}, nil
		},
	}

	w := doJSON(tasksRouter(svc, &member), http.MethodPatch, "/tasks/"+uuid.NewString(), map[string]any{"priority": "high", "userId": "x"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	if got.Priority == nil || *got.Priority != task.PriorityHigh {
		t.Fatalf("priority not bound: %+v", got)
	}
	if got.Title != nil || got.Status != nil || got.Description != nil || got.DueDate != nil {
		t.Fatalf("absent fields must stay nil: %+v", got)
	}
}

func TestDeleteTask_Message(t *testing.T) {
	w := doJSON(tasksRouter(&fakeTaskService{}, &member), http.MethodDelete, "/tasks/"+uuid.NewString(), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["message"] != "Task deleted successfully" {
		t.Fatalf("body = %s", w.Body.String())
	}
}
