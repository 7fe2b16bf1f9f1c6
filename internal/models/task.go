package models

import "time"

// Board column values. Task titles must never collide with these.
const (
	StatusTodo       = "Todo"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// Task priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// ColumnNames lists the reserved board column titles in display order.
var ColumnNames = []string{StatusTodo, StatusInProgress, StatusDone}

// ReservedTitle reports whether the given title collides with a board column name.
func ReservedTitle(title string) bool {
	for _, name := range ColumnNames {
		if title == name {
			return true
		}
	}
	return false
}

// Task is the mutable unit of work on the board. Version is the optimistic
// concurrency token: it moves by exactly one on every accepted mutation,
// together with LastModifiedAt.
type Task struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:255;uniqueIndex;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	AssignedUser   uint      `gorm:"not null;index" json:"assigned_user"`
	Status         string    `gorm:"size:32;not null;default:Todo" json:"status"`
	Priority       string    `gorm:"size:16;not null;default:Medium" json:"priority"`
	CreatedBy      uint      `gorm:"not null" json:"created_by"`
	LastModifiedBy *uint     `json:"last_modified_by"`
	LastModifiedAt time.Time `gorm:"not null" json:"last_modified_at"`
	Version        int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the task still counts toward its assignee's workload.
func (t Task) Active() bool {
	return t.Status != StatusDone
}
