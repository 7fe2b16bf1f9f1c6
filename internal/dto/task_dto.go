package dto

import (
	"time"

	"github.com/noah-isme/syncboard-api/internal/models"
)

// TaskCreateRequest describes the payload for creating a new task.
type TaskCreateRequest struct {
	Title        string `json:"title" validate:"required,min=1,max=255"`
	Description  string `json:"description" validate:"max=4000"`
	AssignedUser uint   `json:"assignedUser" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=Todo 'In Progress' Done"`
	Priority     string `json:"priority" validate:"required,oneof=Low Medium High"`
}

// TaskUpdateRequest describes a partial task mutation. ClientVersion is the
// version the caller based its edit on; the server accepts the write only
// when it still matches the stored version.
type TaskUpdateRequest struct {
	Title                *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description          *string    `json:"description" validate:"omitempty,max=4000"`
	AssignedUser         *uint      `json:"assignedUser"`
	Status               *string    `json:"status" validate:"omitempty,oneof=Todo 'In Progress' Done"`
	Priority             *string    `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	Dragged              bool       `json:"dragged"`
	ClientVersion        int64      `json:"clientVersion" validate:"required,min=1"`
	ClientLastModifiedAt *time.Time `json:"clientLastModifiedAt"`
}

// Attempt extracts the field values the caller tried to write, for echoing
// back in conflict responses.
func (r TaskUpdateRequest) Attempt() TaskAttempt {
	return TaskAttempt{
		Title:        r.Title,
		Description:  r.Description,
		AssignedUser: r.AssignedUser,
		Status:       r.Status,
		Priority:     r.Priority,
	}
}

// TaskAttempt mirrors the mutable task fields as attempted by a caller.
type TaskAttempt struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	AssignedUser *uint   `json:"assignedUser,omitempty"`
	Status       *string `json:"status,omitempty"`
	Priority     *string `json:"priority,omitempty"`
}

// TaskResponse is the serialized representation returned to API clients.
type TaskResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	AssignedUser     uint      `json:"assignedUser"`
	AssignedUsername string    `json:"assignedUsername"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	CreatedBy        uint      `json:"createdBy"`
	LastModifiedBy   *uint     `json:"lastModifiedBy"`
	LastModifiedAt   time.Time `json:"lastModifiedAt"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NewTaskResponse converts a model into a DTO. The assignee username is
// denormalized at conversion time.
func NewTaskResponse(model models.Task, assignedUsername string) TaskResponse {
	return TaskResponse{
		ID:               model.ID,
		Title:            model.Title,
		Description:      model.Description,
		AssignedUser:     model.AssignedUser,
		AssignedUsername: assignedUsername,
		Status:           model.Status,
		Priority:         model.Priority,
		CreatedBy:        model.CreatedBy,
		LastModifiedBy:   model.LastModifiedBy,
		LastModifiedAt:   model.LastModifiedAt,
		Version:          model.Version,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// ConflictResponse is the 409 payload: the authoritative record plus the
// caller's attempted values, so the session can offer a resolution choice.
type ConflictResponse struct {
	Message       string       `json:"message"`
	ServerTask    TaskResponse `json:"serverTask"`
	ClientAttempt TaskAttempt  `json:"clientAttempt"`
}
