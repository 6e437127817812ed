package task

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

var ErrNotFound = errors.New("task not found")

type OwnerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Task struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      Status        `json:"status"`
	Priority    Priority      `json:"priority"`
	OwnerID     string        `json:"userId"`
	DueDate     *time.Time    `json:"dueDate,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Owner       *OwnerSummary `json:"owner,omitempty"`
}

// Neither payload carries an owner; it is always the authenticated principal.
type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required,min=3,max=200"`
	Description string   `json:"description" binding:"omitempty,max=1000"`
	Status      Status   `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority    Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string  `json:"dueDate"`
}

// nil fields are left untouched by an update.
type UpdateTaskRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=3,max=200"`
	Description *string   `json:"description" binding:"omitempty,max=1000"`
	Status      *Status   `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Priority    *Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string   `json:"dueDate"`
}

// NewFromCreateRequest builds a validated task owned by ownerID.
func NewFromCreateRequest(ownerID string, req CreateTaskRequest, now time.Time) (Task, error) {
	now = now.UTC()

	t := Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		Priority:    req.Priority,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}

	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		due, err := ParseDueDate(*req.DueDate)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = &due
	}

	if err := Validate(t); err != nil {
		return Task{}, err
	}

	return t, nil
}

// ApplyUpdate merges the present fields of req into a copy of t and
// validates the result. OwnerID, ID and CreatedAt are carried over as-is.
func ApplyUpdate(t Task, req UpdateTaskRequest, now time.Time) (Task, error) {
	merged := t

	if req.Title != nil {
		merged.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		merged.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}
	if req.Priority != nil {
		merged.Priority = *req.Priority
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			merged.DueDate = nil
		} else {
			due, err := ParseDueDate(*req.DueDate)
			if err != nil {
				return Task{}, err
			}
			merged.DueDate = &due
		}
	}

	merged.OwnerID = t.OwnerID
	merged.UpdatedAt = now.UTC()

	if err := Validate(merged); err != nil {
		return Task{}, err
	}

	return merged, nil
}
