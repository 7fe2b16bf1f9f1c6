package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/syncboard-api/internal/models"
)

// ActionLogResponse is the serialized activity feed entry.
type ActionLogResponse struct {
	ID         uint                 `json:"id"`
	ActorID    uint                 `json:"actorId"`
	ActorName  string               `json:"actorName"`
	ActionType string               `json:"actionType"`
	TaskID     uint                 `json:"taskId"`
	TaskTitle  string               `json:"taskTitle"`
	Details    models.ActionDetails `json:"details"`
	Timestamp  time.Time            `json:"timestamp"`
}

// NewActionLogResponse converts a model into a DTO.
func NewActionLogResponse(model models.ActionLog) ActionLogResponse {
	var details models.ActionDetails
	if len(model.Details) > 0 {
		_ = json.Unmarshal(model.Details, &details)
	}

	return ActionLogResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorName:  model.ActorName,
		ActionType: model.ActionType,
		TaskID:     model.TaskID,
		TaskTitle:  model.TaskTitle,
		Details:    details,
		Timestamp:  model.CreatedAt,
	}
}

// NewActionLogResponseSlice converts a slice of models into DTOs.
func NewActionLogResponseSlice(entries []models.ActionLog) []ActionLogResponse {
	responses := make([]ActionLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, NewActionLogResponse(entry))
	}

	return responses
}
