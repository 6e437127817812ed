package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TaskService interface {
	Create(ctx context.Context, p user.Principal, req task.CreateTaskRequest) (task.Task, error)
	List(ctx context.Context, p user.Principal, f task.Filter) ([]task.Task, error)
	GetByID(ctx context.Context, p user.Principal, id string) (task.Task, error)
	Update(ctx context.Context, p user.Principal, id string, req task.UpdateTaskRequest) (task.Task, error)
	Delete(ctx context.Context, p user.Principal, id string) error
}

const storeTimeout = 3 * time.Second

type TasksHandler struct {
	svc TaskService
}

func NewTasksHandler(svc TaskService) *TasksHandler {
	return &TasksHandler{svc: svc}
}

// principal reads the identity set by RequireAuth, answering 401 itself
// when it is missing.
func principal(ctx *gin.Context) (user.Principal, bool) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing identity context", nil)
	}
	return p, ok
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req task.CreateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	created, err := h.svc.Create(cctx, p, req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *TasksHandler) List(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	filter, err := task.ParseFilter(ctx.Query("status"), ctx.Query("priority"))
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	items, err := h.svc.List(cctx, p, filter)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *TasksHandler) Get(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	t, err := h.svc.GetByID(cctx, p, ctx.Param("id"))
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, t)
}

// Update serves both PUT and PATCH; either way only the fields present in
// the body change.
func (h *TasksHandler) Update(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	var req task.UpdateTaskRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	updated, err := h.svc.Update(cctx, p, ctx.Param("id"), req)
	if err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.svc.Delete(cctx, p, ctx.Param("id")); err != nil {
		RespondAppError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}
