package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Action types recorded in the board activity log.
const (
	ActionTaskCreated            = "TASK_CREATED"
	ActionTaskTitleUpdated       = "TASK_UPDATED_TITLE"
	ActionTaskDescriptionUpdated = "TASK_UPDATED_DESCRIPTION"
	ActionTaskStatusChanged      = "TASK_STATUS_CHANGED"
	ActionTaskPriorityChanged    = "TASK_PRIORITY_CHANGED"
	ActionTaskAssigned           = "TASK_ASSIGNED"
	ActionTaskDeleted            = "TASK_DELETED"
	ActionTaskDragged            = "TASK_DRAGGED"
)

// ActionDetails carries the old/new values for the single field category an
// activity entry describes. Only the fields relevant to the entry's action
// type are populated; everything else stays omitted on the wire.
type ActionDetails struct {
	OldTitle       string `json:"oldTitle,omitempty"`
	NewTitle       string `json:"newTitle,omitempty"`
	OldDescription string `json:"oldDescription,omitempty"`
	NewDescription string `json:"newDescription,omitempty"`
	OldStatus      string `json:"oldStatus,omitempty"`
	NewStatus      string `json:"newStatus,omitempty"`
	OldPriority    string `json:"oldPriority,omitempty"`
	NewPriority    string `json:"newPriority,omitempty"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	AssignedBy     string `json:"assignedBy,omitempty"`
	AssignedTo     string `json:"assignedTo,omitempty"`
}

// JSON serializes the details for storage in the log row.
func (d ActionDetails) JSON() datatypes.JSON {
	payload, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(payload)
}

// ActionLog is an immutable historical record of a board mutation.
// ActorName and TaskTitle are snapshots captured at log time, not live
// references: they must keep their values after later renames or deletions.
type ActionLog struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ActorID    uint           `gorm:"not null" json:"actor_id"`
	ActorName  string         `gorm:"size:64;not null" json:"actor_name"`
	ActionType string         `gorm:"size:64;not null" json:"action_type"`
	TaskID     uint           `gorm:"not null" json:"task_id"`
	TaskTitle  string         `gorm:"size:255;not null" json:"task_title"`
	Details    datatypes.JSON `gorm:"type:json" json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
