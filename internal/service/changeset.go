package service

import "github.com/noah-isme/syncboard-api/internal/models"

// FieldChange is one categorized field-level difference between two task
// snapshots, ready to become an activity log entry.
type FieldChange struct {
	Action  string
	Details models.ActionDetails
}

// ComputeChanges diffs the pre- and post-update snapshots into zero or more
// categorized changes, one per field group that actually moved. A single
// update touching status and priority therefore yields two entries. Assignee
// names are passed in by the caller so the log captures username snapshots
// rather than ids.
func ComputeChanges(before, after models.Task, beforeAssignee, afterAssignee string, dragged bool) []FieldChange {
	changes := make([]FieldChange, 0, 5)

	if before.Title != after.Title {
		changes = append(changes, FieldChange{
			Action:  models.ActionTaskTitleUpdated,
			Details: models.ActionDetails{OldTitle: before.Title, NewTitle: after.Title},
		})
	}

	if before.Description != after.Description {
		changes = append(changes, FieldChange{
			Action:  models.ActionTaskDescriptionUpdated,
			Details: models.ActionDetails{OldDescription: before.Description, NewDescription: after.Description},
		})
	}

	if before.Status != after.Status {
		action := models.ActionTaskStatusChanged
		if dragged {
			action = models.ActionTaskDragged
		}
		changes = append(changes, FieldChange{
			Action:  action,
			Details: models.ActionDetails{OldStatus: before.Status, NewStatus: after.Status},
		})
	}

	if before.Priority != after.Priority {
		changes = append(changes, FieldChange{
			Action:  models.ActionTaskPriorityChanged,
			Details: models.ActionDetails{OldPriority: before.Priority, NewPriority: after.Priority},
		})
	}

	if before.AssignedUser != after.AssignedUser {
		changes = append(changes, FieldChange{
			Action:  models.ActionTaskAssigned,
			Details: models.ActionDetails{From: beforeAssignee, To: afterAssignee},
		})
	}

	return changes
}
